package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the ledger store and inbox directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		if err := os.MkdirAll(cfg.Inbox.Dir, 0o755); err != nil {
			return eris.Wrapf(err, "cmd: create inbox %s", cfg.Inbox.Dir)
		}

		records, err := l.Records(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("setup complete",
			zap.String("driver", cfg.Store.Driver),
			zap.String("inbox", cfg.Inbox.Dir),
			zap.Int("existing_records", len(records)))
		fmt.Printf("Ledger ready (%s, %d records). Inbox: %s\n",
			storeLocation(), len(records), cfg.Inbox.Dir)
		return nil
	},
}

func storeLocation() string {
	if cfg.Store.Driver == "postgres" {
		return "postgres"
	}
	return fmt.Sprintf("%s %s", cfg.Store.Driver, cfg.Store.Path)
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
