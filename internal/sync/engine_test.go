package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Nicolanasr/expenses-tracker/internal/db"
	"github.com/Nicolanasr/expenses-tracker/internal/events"
	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// fakePoster records every mutation it receives and fails the types listed
// in failTypes.
type fakePoster struct {
	sent      []models.Mutation
	failTypes map[models.MutationType]error
}

func (p *fakePoster) Mutate(m models.Mutation) error {
	if err, ok := p.failTypes[m.Type]; ok {
		return err
	}
	p.sent = append(p.sent, m)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *db.DB, *fakePoster) {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store, err := db.OpenConn(conn)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	poster := &fakePoster{failTypes: map[models.MutationType]error{}}
	engine := New(store, poster, events.NewBus())
	return engine, store, poster
}

func enqueue(t *testing.T, store *db.DB, id string, mt models.MutationType, payload string) {
	t.Helper()
	err := store.PutOutboxEntry(db.OutboxEntry{
		ID:       id,
		Mutation: models.Mutation{Type: mt, Data: json.RawMessage(payload)},
		Status:   db.StatusPending,
	})
	if err != nil {
		t.Fatalf("put entry %s: %v", id, err)
	}
}

func TestDrainEmptyQueue(t *testing.T) {
	engine, _, poster := newTestEngine(t)

	res, err := engine.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 || res.Sent != 0 {
		t.Errorf("result: %+v", res)
	}
	if len(poster.sent) != 0 {
		t.Error("poster called for empty queue")
	}
}

func TestDrainSendsInStorageOrder(t *testing.T) {
	engine, store, poster := newTestEngine(t)

	enqueue(t, store, "e1", models.MutTransactionCreate, `{"amount":"1","date":"2026-08-01"}`)
	enqueue(t, store, "e2", models.MutCategoryCreate, `{"name":"food"}`)
	enqueue(t, store, "e3", models.MutBudgetSave, `{"category_id":"c1","month":"2026-08","limit":"300"}`)

	res, err := engine.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 3 || res.Failed != 0 {
		t.Fatalf("result: %+v", res)
	}

	want := []models.MutationType{models.MutTransactionCreate, models.MutCategoryCreate, models.MutBudgetSave}
	if len(poster.sent) != len(want) {
		t.Fatalf("sent %d mutations, want %d", len(poster.sent), len(want))
	}
	for i, mt := range want {
		if poster.sent[i].Type != mt {
			t.Errorf("sent[%d] = %s, want %s", i, poster.sent[i].Type, mt)
		}
	}

	entries, _ := store.ListOutboxEntries("")
	if len(entries) != 0 {
		t.Errorf("queue not empty after full drain: %d entries", len(entries))
	}
}

func TestDrainStripsTempIDOnCreate(t *testing.T) {
	engine, store, poster := newTestEngine(t)

	enqueue(t, store, "e1", models.MutTransactionCreate, `{"id":"temp-aabbcc","amount":"5.00","date":"2026-08-01"}`)

	if _, err := engine.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(poster.sent) != 1 {
		t.Fatalf("sent %d, want 1", len(poster.sent))
	}

	var fields map[string]any
	if err := json.Unmarshal(poster.sent[0].Data, &fields); err != nil {
		t.Fatal(err)
	}
	if _, present := fields["id"]; present {
		t.Errorf("temp id transmitted to server: %s", poster.sent[0].Data)
	}
	if fields["amount"] != "5.00" {
		t.Errorf("payload mangled: %v", fields)
	}
}

func TestDrainFailureIsolation(t *testing.T) {
	engine, store, poster := newTestEngine(t)
	poster.failTypes[models.MutCategoryCreate] = errors.New("server said no")

	enqueue(t, store, "e1", models.MutTransactionCreate, `{"amount":"1","date":"2026-08-01"}`)
	enqueue(t, store, "e2", models.MutCategoryCreate, `{"name":"food"}`)
	enqueue(t, store, "e3", models.MutTransactionCreate, `{"amount":"2","date":"2026-08-02"}`)

	res, err := engine.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 2 || res.Failed != 1 {
		t.Fatalf("result: %+v", res)
	}

	// The failed entry stays, marked, with the error recorded; the rest are gone.
	entries, _ := store.ListOutboxEntries("")
	if len(entries) != 1 {
		t.Fatalf("got %d remaining entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != "e2" || e.Status != db.StatusFailed {
		t.Errorf("remaining entry: %+v", e)
	}
	if e.LastError != "server said no" {
		t.Errorf("last error: %q", e.LastError)
	}
	if e.Attempts != 1 {
		t.Errorf("attempts: %d", e.Attempts)
	}
}

func TestDrainIdempotentRerun(t *testing.T) {
	engine, store, poster := newTestEngine(t)
	poster.failTypes[models.MutCategoryCreate] = errors.New("down")

	enqueue(t, store, "e1", models.MutTransactionCreate, `{"amount":"1","date":"2026-08-01"}`)
	enqueue(t, store, "e2", models.MutCategoryCreate, `{"name":"food"}`)

	if _, err := engine.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}
	firstSent := len(poster.sent)

	// Second pass: e1 is gone, e2 is backing off. Nothing is re-sent.
	res, err := engine.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 0 {
		t.Errorf("second pass sent %d", res.Sent)
	}
	if len(poster.sent) != firstSent {
		t.Errorf("second pass re-sent delivered mutations: %d vs %d", len(poster.sent), firstSent)
	}
}

func TestFailedEntryRetriedAfterBackoff(t *testing.T) {
	engine, store, poster := newTestEngine(t)
	poster.failTypes[models.MutCategoryCreate] = errors.New("down")

	enqueue(t, store, "e1", models.MutCategoryCreate, `{"name":"food"}`)

	if _, err := engine.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Still inside the backoff window: not eligible.
	res, _ := engine.Drain(context.Background())
	if res.Total != 0 {
		t.Fatalf("entry eligible during backoff: %+v", res)
	}

	// Advance the clock past the retry time and recover the server.
	engine.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	delete(poster.failTypes, models.MutCategoryCreate)

	res, err := engine.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 {
		t.Fatalf("retry after backoff: %+v", res)
	}
}

func TestEntryDemotedToNeedsReview(t *testing.T) {
	engine, store, poster := newTestEngine(t)
	engine.MaxAttempts = 3
	poster.failTypes[models.MutCategoryCreate] = errors.New("always fails")

	enqueue(t, store, "e1", models.MutCategoryCreate, `{"name":"food"}`)

	for i := 0; i < 3; i++ {
		if _, err := engine.Drain(context.Background()); err != nil {
			t.Fatal(err)
		}
		// Step past whatever backoff was scheduled.
		offset := time.Duration(i+1) * 24 * time.Hour
		engine.now = func() time.Time { return time.Now().UTC().Add(offset) }
	}

	entries, _ := store.ListOutboxEntries(db.StatusNeedsReview)
	if len(entries) != 1 {
		t.Fatalf("needs_review entries: %d, want 1", len(entries))
	}
	if entries[0].Attempts != 3 {
		t.Errorf("attempts: %d, want 3", entries[0].Attempts)
	}

	// Terminal: never eligible again.
	res, _ := engine.Drain(context.Background())
	if res.Total != 0 {
		t.Errorf("needs_review entry still eligible: %+v", res)
	}
}

func TestDrainDiscardsOrphanTempReferences(t *testing.T) {
	engine, store, poster := newTestEngine(t)

	// An update referencing a temp id whose create never synced.
	enqueue(t, store, "e1", models.MutTransactionUpdate, `{"id":"temp-dead01","amount":"9","date":"2026-08-01","updated_at":"x"}`)
	enqueue(t, store, "e2", models.MutTransactionCreate, `{"amount":"1","date":"2026-08-01"}`)

	res, err := engine.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Discarded != 1 || res.Sent != 1 {
		t.Fatalf("result: %+v", res)
	}
	for _, m := range poster.sent {
		if m.Type == models.MutTransactionUpdate {
			t.Error("orphan update reached the server")
		}
	}
	entries, _ := store.ListOutboxEntries("")
	if len(entries) != 0 {
		t.Errorf("orphan entry not removed: %+v", entries)
	}
}

func TestDrainPublishesSyncState(t *testing.T) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store, err := db.OpenConn(conn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus()
	var states []events.SyncState
	bus.SubscribeSyncState(func(ev events.SyncState) { states = append(states, ev) })

	engine := New(store, &fakePoster{failTypes: map[models.MutationType]error{}}, bus)
	enqueue(t, store, "e1", models.MutCategoryCreate, `{"name":"food"}`)

	if _, err := engine.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(states) < 2 {
		t.Fatalf("got %d state events, want at least 2", len(states))
	}
	if states[0].Phase != events.PhaseSyncing || states[0].Current != 0 {
		t.Errorf("first state: %+v", states[0])
	}
	last := states[len(states)-1]
	if last.Phase != events.PhaseIdle || last.Current != 1 {
		t.Errorf("last state: %+v", last)
	}
}

func TestDrainStopsOnContextCancel(t *testing.T) {
	engine, store, poster := newTestEngine(t)

	for i := 0; i < 3; i++ {
		enqueue(t, store, fmt.Sprintf("e%d", i), models.MutCategoryCreate, `{"name":"food"}`)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Drain(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(poster.sent) != 0 {
		t.Errorf("sent %d mutations after cancel", len(poster.sent))
	}
}

func TestNotifierReceivesOutcomes(t *testing.T) {
	engine, store, poster := newTestEngine(t)
	poster.failTypes[models.MutCategoryCreate] = errors.New("nope")

	enqueue(t, store, "e1", models.MutTransactionCreate, `{"amount":"1","date":"2026-08-01"}`)
	enqueue(t, store, "e2", models.MutCategoryCreate, `{"name":"food"}`)

	type outcome struct {
		id  string
		err error
	}
	var outcomes []outcome
	engine.Notify = func(entry db.OutboxEntry, err error) {
		outcomes = append(outcomes, outcome{id: entry.ID, err: err})
	}

	if _, err := engine.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes: %d, want 2", len(outcomes))
	}
	if outcomes[0].id != "e1" || outcomes[0].err != nil {
		t.Errorf("first outcome: %+v", outcomes[0])
	}
	if outcomes[1].id != "e2" || outcomes[1].err == nil {
		t.Errorf("second outcome: %+v", outcomes[1])
	}
}
