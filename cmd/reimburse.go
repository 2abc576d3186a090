package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hsa-ledger/internal/model"
)

var (
	reimburseAmount float64
	reimburseDate   string
)

var reimburseCmd = &cobra.Command{
	Use:   "reimburse <id>",
	Short: "Mark a record as reimbursed from the HSA",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Wrapf(err, "cmd: bad record id %q", args[0])
		}

		date := reimburseDate
		if date == "" {
			date = time.Now().Format("2006-01-02")
		} else if _, err := time.Parse("2006-01-02", date); err != nil {
			return eris.Wrapf(err, "cmd: --date %q is not YYYY-MM-DD", date)
		}

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		rec, err := l.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("cmd: record #%d not found", id)
		}

		amount := reimburseAmount
		if amount == 0 {
			amount = rec.PatientResponsibility
		}

		ok, err := l.UpdateRecord(ctx, id, map[string]string{
			model.ColReimbursed:          "Yes",
			model.ColReimbursementDate:   date,
			model.ColReimbursementAmount: fmt.Sprintf("%.2f", amount),
		})
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("cmd: record #%d not found", id)
		}
		fmt.Printf("Marked #%d reimbursed: $%.2f on %s.\n", id, amount, date)
		return nil
	},
}

func init() {
	reimburseCmd.Flags().Float64Var(&reimburseAmount, "amount", 0, "reimbursed amount (default: patient responsibility)")
	reimburseCmd.Flags().StringVar(&reimburseDate, "date", "", "reimbursement date, YYYY-MM-DD (default: today)")
	rootCmd.AddCommand(reimburseCmd)
}
