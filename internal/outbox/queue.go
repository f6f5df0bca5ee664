// Package outbox translates user-intent mutations into durable outbox
// entries that survive restarts and are replayed once the server is
// reachable again.
package outbox

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Nicolanasr/expenses-tracker/internal/db"
	"github.com/Nicolanasr/expenses-tracker/internal/events"
	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// Queue is the mutation queue API over the local store's outbox collection.
type Queue struct {
	store *db.DB
	bus   *events.Bus
}

// New creates a Queue over the given store and event bus.
func New(store *db.DB, bus *events.Bus) *Queue {
	return &Queue{store: store, bus: bus}
}

// Enqueue validates the mutation and writes it to the outbox. It returns the
// id of the entity the mutation targets; for a transaction:create without an
// id, a temp id is minted and injected so the caller can display the entity
// immediately.
//
// Deleting an entity whose create never reached the server does not enqueue
// anything: the original queued create is discarded and the entity is purged
// from cached lists, so an impossible delete-before-create never goes out.
func (q *Queue) Enqueue(m models.Mutation) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	entityID := m.EntityID()

	switch m.Type {
	case models.MutTransactionCreate:
		if entityID == "" {
			tempID, err := models.NewTempID()
			if err != nil {
				return "", fmt.Errorf("mint temp id: %w", err)
			}
			data, err := m.WithID(tempID)
			if err != nil {
				return "", err
			}
			m.Data = data
			entityID = tempID
		}
	case models.MutTransactionDelete:
		if models.IsTempID(entityID) {
			if err := q.discardTempCreate(entityID); err != nil {
				return "", err
			}
			return entityID, nil
		}
	}

	entry := db.OutboxEntry{
		ID:       uuid.NewString(),
		Mutation: m,
		Status:   db.StatusPending,
	}
	if err := q.store.PutOutboxEntry(entry); err != nil {
		// Losing a queued mutation silently is a correctness bug; the caller
		// must tell the user the action was not saved.
		return "", fmt.Errorf("enqueue %s: %w", m.Type, err)
	}

	q.bus.PublishQueued(events.Queued{Type: m.Type, Payload: m.Data})
	return entityID, nil
}

// discardTempCreate removes the queued create for a temp id along with any
// dependent queued updates, and purges the entity from cached transaction
// lists.
func (q *Queue) discardTempCreate(tempID string) error {
	entries, err := q.store.ListOutboxEntries("")
	if err != nil {
		return fmt.Errorf("discard temp create: %w", err)
	}
	for _, e := range entries {
		if e.Mutation.EntityID() != tempID {
			continue
		}
		if err := q.store.DeleteOutboxEntry(e.ID); err != nil {
			return fmt.Errorf("discard temp create: %w", err)
		}
		slog.Debug("outbox: discarded entry for unsynced entity", "type", e.Mutation.Type, "entity", tempID)
	}
	if err := q.store.PurgeCachedEntity(db.CollectionTransactions, tempID); err != nil {
		// Cache is advisory; a failed purge only delays staleness.
		slog.Warn("outbox: purge cached entity", "entity", tempID, "err", err)
	}
	return nil
}

// Pending returns outbox entries awaiting replay, in drain order.
func (q *Queue) Pending() ([]db.OutboxEntry, error) {
	return q.store.ListOutboxEntries(db.StatusPending)
}

// Failed returns outbox entries whose last replay attempt failed.
func (q *Queue) Failed() ([]db.OutboxEntry, error) {
	return q.store.ListOutboxEntries(db.StatusFailed)
}
