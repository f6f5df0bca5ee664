package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Nicolanasr/expenses-tracker/internal/config"
	"github.com/Nicolanasr/expenses-tracker/internal/connectivity"
	"github.com/Nicolanasr/expenses-tracker/internal/db"
	"github.com/Nicolanasr/expenses-tracker/internal/output"
)

var outboxFlags struct {
	clearFailed bool
	clearReview bool
	clearAll    bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued mutations against the server now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.drain(cmd.Context())
	},
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect mutations waiting to be synced",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if outboxFlags.clearAll || outboxFlags.clearFailed || outboxFlags.clearReview {
			return clearOutbox(a)
		}

		entries, err := a.store.ListOutboxEntries("")
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			output.Info("outbox is empty")
			return nil
		}
		for _, e := range entries {
			fmt.Println(output.OutboxEntry(e))
		}
		return nil
	},
}

func clearOutbox(a *appContext) error {
	var total int64
	clear := func(status db.OutboxStatus) error {
		n, err := a.store.ClearOutbox(status)
		if err != nil {
			return err
		}
		total += n
		return nil
	}

	if outboxFlags.clearAll {
		if err := clear(""); err != nil {
			return err
		}
	} else {
		if outboxFlags.clearFailed {
			if err := clear(db.StatusFailed); err != nil {
				return err
			}
		}
		if outboxFlags.clearReview {
			if err := clear(db.StatusNeedsReview); err != nil {
				return err
			}
		}
	}
	output.Success("removed %d outbox entries", total)
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch connectivity and sync automatically",
	Long: `Probes the server on an interval and replays the outbox whenever the
server is reachable. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := connectivity.NewWatcher(
			func(ctx context.Context) error {
				_, err := a.client.HealthCheck()
				return err
			},
			func(ctx context.Context) error {
				_, err := a.newEngine().Drain(ctx)
				return err
			},
		)
		w.Interval = config.GetProbeInterval()

		stopWatcher := w.Start(ctx)
		output.Info("watching %s every %s — press Ctrl-C to stop", config.GetServerURL(), w.Interval)
		<-ctx.Done()
		stopWatcher()
		return nil
	},
}

func init() {
	outboxCmd.Flags().BoolVar(&outboxFlags.clearFailed, "clear-failed", false, "remove failed entries")
	outboxCmd.Flags().BoolVar(&outboxFlags.clearReview, "clear-review", false, "remove needs_review entries")
	outboxCmd.Flags().BoolVar(&outboxFlags.clearAll, "clear", false, "remove every entry")

	rootCmd.AddCommand(syncCmd, outboxCmd, watchCmd)
}
