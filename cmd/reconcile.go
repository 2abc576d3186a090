package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/hsa-ledger/internal/report"
)

var reconcileYear int

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Cross-match EOBs against statements for one year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		year := reconcileYear
		if year == 0 {
			year = time.Now().Year()
		}

		r, err := report.BuildReconciliation(ctx, l, year, cfg.HSA.OOPMax)
		if err != nil {
			return err
		}
		report.RenderReconciliation(os.Stdout, r)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().IntVar(&reconcileYear, "year", 0, "service year (default: current)")
	rootCmd.AddCommand(reconcileCmd)
}
