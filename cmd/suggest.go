package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/hsa-ledger/internal/ledger"
	"github.com/sells-group/hsa-ledger/internal/report"
)

var (
	suggestYear      int
	suggestTolerance int
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest EOB/statement links for unmatched records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		set, err := l.Suggestions(ctx, suggestTolerance)
		if err != nil {
			return err
		}
		if suggestYear > 0 {
			set.EOBs = filterYear(set.EOBs, suggestYear)
			set.Statements = filterYear(set.Statements, suggestYear)
		}
		report.RenderSuggestions(os.Stdout, set)
		return nil
	},
}

func filterYear(matches []ledger.CandidateMatch, year int) []ledger.CandidateMatch {
	filtered := matches[:0]
	for _, m := range matches {
		if m.Record.ServiceYear() == year {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func init() {
	suggestCmd.Flags().IntVar(&suggestYear, "year", 0, "limit suggestions to one service year")
	suggestCmd.Flags().IntVar(&suggestTolerance, "days", ledger.DefaultDateTolerance, "widest service-date gap to consider")
	rootCmd.AddCommand(suggestCmd)
}
