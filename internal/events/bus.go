// Package events provides the typed publish/subscribe channel used for
// cross-component UI signaling (queued mutations, sync progress).
package events

import (
	"encoding/json"
	"sync"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// SyncPhase represents the state of a drain pass.
type SyncPhase string

const (
	PhaseSyncing SyncPhase = "syncing"
	PhaseIdle    SyncPhase = "idle"
)

// Queued is published on every successful enqueue.
type Queued struct {
	Type    models.MutationType
	Payload json.RawMessage
}

// SyncState is published throughout a drain pass.
type SyncState struct {
	Phase   SyncPhase
	Total   int
	Current int
}

// Bus is an in-process publish/subscribe channel. Handlers run synchronously
// on the publisher's goroutine, in subscription order.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	queued    map[int]func(Queued)
	syncState map[int]func(SyncState)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		queued:    make(map[int]func(Queued)),
		syncState: make(map[int]func(SyncState)),
	}
}

// SubscribeQueued registers a handler for Queued events.
// The returned func deregisters it.
func (b *Bus) SubscribeQueued(fn func(Queued)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.queued[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.queued, id)
	}
}

// SubscribeSyncState registers a handler for SyncState events.
// The returned func deregisters it.
func (b *Bus) SubscribeSyncState(fn func(SyncState)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.syncState[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.syncState, id)
	}
}

// PublishQueued delivers ev to all Queued subscribers.
func (b *Bus) PublishQueued(ev Queued) {
	for _, fn := range b.snapshotQueued() {
		fn(ev)
	}
}

// PublishSyncState delivers ev to all SyncState subscribers.
func (b *Bus) PublishSyncState(ev SyncState) {
	for _, fn := range b.snapshotSyncState() {
		fn(ev)
	}
}

func (b *Bus) snapshotQueued() []func(Queued) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(Queued), 0, len(b.queued))
	for id := 0; id < b.nextID; id++ {
		if fn, ok := b.queued[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (b *Bus) snapshotSyncState() []func(SyncState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(SyncState), 0, len(b.syncState))
	for id := 0; id < b.nextID; id++ {
		if fn, ok := b.syncState[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
