package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/hsa-ledger/internal/watch"
)

var watchInterval int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox directory and process new documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		schedule := cfg.Inbox.Schedule
		if watchInterval > 0 {
			schedule = fmt.Sprintf("@every %ds", watchInterval)
		}

		w := watch.New(cfg.Inbox.Dir, cfg.Family, env.processFile)
		return w.Watch(ctx, schedule)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "poll interval in seconds (default from config schedule)")
	rootCmd.AddCommand(watchCmd)
}
