package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nicolanasr/expenses-tracker/internal/config"
	"github.com/Nicolanasr/expenses-tracker/internal/db"
	"github.com/Nicolanasr/expenses-tracker/internal/events"
	"github.com/Nicolanasr/expenses-tracker/internal/outbox"
	"github.com/Nicolanasr/expenses-tracker/internal/output"
	syncengine "github.com/Nicolanasr/expenses-tracker/internal/sync"
	"github.com/Nicolanasr/expenses-tracker/internal/syncclient"
)

var version string

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "expenses",
	Short: "Offline-first personal finance tracker",
	Long: `expenses — track transactions, categories, and budgets from the terminal.

Mutations made while the server is unreachable are captured in a durable
local outbox and replayed in order once connectivity returns.`,
}

// Execute runs the root command
func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// appContext bundles the pieces most commands need: the local store, the
// mutation queue, the API client, and the event bus with CLI indicators
// already subscribed.
type appContext struct {
	store  *db.DB
	queue  *outbox.Queue
	client *syncclient.Client
	bus    *events.Bus
}

// openApp opens the local store and wires the queue, client, and bus.
// The caller must Close it.
func openApp() (*appContext, error) {
	dir, err := db.DefaultDir()
	if err != nil {
		return nil, err
	}
	store, err := db.Open(dir)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	bus.SubscribeQueued(func(ev events.Queued) {
		output.Warning("offline — queued %s for later sync", ev.Type)
	})

	return &appContext{
		store:  store,
		queue:  outbox.New(store, bus),
		client: syncclient.New(config.GetServerURL(), config.GetAPIKey()),
		bus:    bus,
	}, nil
}

func (a *appContext) Close() {
	a.store.Close()
}

// newEngine builds a sync engine with CLI notifications attached.
func (a *appContext) newEngine() *syncengine.Engine {
	engine := syncengine.New(a.store, a.client, a.bus)
	engine.Notify = func(entry db.OutboxEntry, err error) {
		if err != nil {
			output.Error("sync %s: %v", entry.Mutation.Type, err)
			return
		}
		output.Success("synced %s", entry.Mutation.Type)
	}
	return engine
}

// drain runs one sync pass with a progress indicator.
func (a *appContext) drain(ctx context.Context) error {
	unsubscribe := a.bus.SubscribeSyncState(func(ev events.SyncState) {
		if ev.Phase == events.PhaseSyncing && ev.Total > 0 {
			output.Info("syncing %d/%d", ev.Current, ev.Total)
		}
	})
	defer unsubscribe()

	res, err := a.newEngine().Drain(ctx)
	if err != nil {
		return err
	}
	if res.Total == 0 {
		output.Info("nothing to sync")
	} else {
		output.Info("sync done: %d sent, %d failed, %d discarded", res.Sent, res.Failed, res.Discarded)
	}
	return nil
}
