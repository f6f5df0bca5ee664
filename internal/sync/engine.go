// Package sync drains the outbox against the remote mutation endpoint,
// preserving enqueue order and isolating per-entry failures.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Nicolanasr/expenses-tracker/internal/db"
	"github.com/Nicolanasr/expenses-tracker/internal/events"
	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// Poster sends a single mutation envelope to the server. Satisfied by
// *syncclient.Client.
type Poster interface {
	Mutate(m models.Mutation) error
}

// Notifier receives per-entry outcomes for user-facing toasts. err is nil on
// success. Never called concurrently.
type Notifier func(entry db.OutboxEntry, err error)

const (
	defaultMaxAttempts = 8
	defaultBackoffBase = 30 * time.Second
	defaultBackoffCap  = 30 * time.Minute
)

// Engine replays queued mutations one at a time, in storage order.
type Engine struct {
	store  *db.DB
	client Poster
	bus    *events.Bus

	// Notify, when set, is called after every entry attempt.
	Notify Notifier

	// MaxAttempts caps automatic retries; past it an entry is demoted to
	// needs_review and left for the user.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	now func() time.Time
}

// New creates an Engine over the given store, transport, and event bus.
func New(store *db.DB, client Poster, bus *events.Bus) *Engine {
	return &Engine{
		store:       store,
		client:      client,
		bus:         bus,
		MaxAttempts: defaultMaxAttempts,
		BackoffBase: defaultBackoffBase,
		BackoffCap:  defaultBackoffCap,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Result summarises one drain pass.
type Result struct {
	Total     int // entries eligible at the start of the pass
	Sent      int // delivered and removed from the queue
	Failed    int // marked failed (or needs_review) and retained
	Discarded int // temp-id orphans removed without contacting the server
}

// Drain sends every eligible outbox entry to the server, sequentially. A
// later entry is never sent before an earlier one completes, which is the
// system's only ordering guarantee. Per-entry failures mark the entry and
// move on; only a failure to read the queue itself is returned as an error.
func (e *Engine) Drain(ctx context.Context) (Result, error) {
	entries, err := e.eligible()
	if err != nil {
		return Result{}, err
	}

	var res Result
	res.Total = len(entries)
	current := 0

	e.bus.PublishSyncState(events.SyncState{Phase: events.PhaseSyncing, Total: res.Total, Current: 0})
	defer func() {
		e.bus.PublishSyncState(events.SyncState{Phase: events.PhaseIdle, Total: res.Total, Current: current})
	}()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		m := entry.Mutation
		entityID := m.EntityID()

		// An update or delete still referencing a temp id means the create
		// it depends on never synced. The enqueue short-circuit normally
		// prevents this; handle it here without contacting the server.
		if models.IsTempID(entityID) && m.Type != models.MutTransactionCreate {
			if err := e.store.PurgeCachedEntity(db.CollectionTransactions, entityID); err != nil {
				slog.Warn("sync: purge cached entity", "entity", entityID, "err", err)
			}
			if err := e.store.DeleteOutboxEntry(entry.ID); err != nil {
				slog.Warn("sync: drop orphan entry", "id", entry.ID, "err", err)
			}
			slog.Info("sync: discarded orphan entry for unsynced entity", "type", m.Type, "entity", entityID)
			res.Discarded++
			current++
			e.bus.PublishSyncState(events.SyncState{Phase: events.PhaseSyncing, Total: res.Total, Current: current})
			continue
		}

		// Creates carry a client-minted placeholder; the server assigns the
		// authoritative id, so strip ours before transmission.
		if m.Type == models.MutTransactionCreate && models.IsTempID(entityID) {
			data, err := m.WithoutID()
			if err != nil {
				e.markFailed(entry, fmt.Errorf("strip temp id: %w", err))
				res.Failed++
				continue
			}
			m.Data = data
		}

		if err := e.client.Mutate(m); err != nil {
			e.markFailed(entry, err)
			res.Failed++
			if e.Notify != nil {
				e.Notify(entry, err)
			}
			continue
		}

		if err := e.store.DeleteOutboxEntry(entry.ID); err != nil {
			// Entry was delivered but not dequeued; the server's concurrency
			// checks keep the inevitable retry from double-applying.
			slog.Error("sync: dequeue after send", "id", entry.ID, "err", err)
		}
		res.Sent++
		current++
		e.bus.PublishSyncState(events.SyncState{Phase: events.PhaseSyncing, Total: res.Total, Current: current})
		if e.Notify != nil {
			e.Notify(entry, nil)
		}
	}

	return res, nil
}

// eligible returns pending entries plus failed entries whose backoff window
// has elapsed, preserving storage order across both.
func (e *Engine) eligible() ([]db.OutboxEntry, error) {
	all, err := e.store.ListOutboxEntries("")
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	now := e.now()
	var out []db.OutboxEntry
	for _, entry := range all {
		switch entry.Status {
		case db.StatusPending:
			out = append(out, entry)
		case db.StatusFailed:
			if entry.NextRetryAt == nil || !entry.NextRetryAt.After(now) {
				out = append(out, entry)
			}
		}
	}
	return out, nil
}

// markFailed records the failure and schedules the next retry, demoting the
// entry once its attempt budget is spent.
func (e *Engine) markFailed(entry db.OutboxEntry, cause error) {
	attempts := entry.Attempts + 1
	if attempts >= e.MaxAttempts {
		if err := e.store.MarkOutboxNeedsReview(entry.ID, cause.Error()); err != nil {
			slog.Error("sync: mark needs review", "id", entry.ID, "err", err)
		}
		slog.Warn("sync: entry demoted to needs_review", "id", entry.ID, "type", entry.Mutation.Type, "attempts", attempts, "err", cause)
		return
	}
	nextRetry := e.now().Add(e.backoffFor(attempts))
	if err := e.store.MarkOutboxFailed(entry.ID, cause.Error(), nextRetry); err != nil {
		slog.Error("sync: mark failed", "id", entry.ID, "err", err)
	}
	slog.Warn("sync: entry failed", "id", entry.ID, "type", entry.Mutation.Type, "attempts", attempts, "next_retry", nextRetry, "err", cause)
}

// backoffFor returns the delay before retry number attempt (1-based),
// growing exponentially from BackoffBase up to BackoffCap.
func (e *Engine) backoffFor(attempt int) time.Duration {
	b := retry.WithCappedDuration(e.BackoffCap, retry.NewExponential(e.BackoffBase))
	var d time.Duration
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	return d
}
