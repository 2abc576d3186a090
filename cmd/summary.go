package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/hsa-ledger/internal/report"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show spending totals by year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		s, err := report.BuildSummary(ctx, l)
		if err != nil {
			return err
		}
		report.RenderSummary(os.Stdout, s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
