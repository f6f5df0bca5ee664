package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// OutboxStatus is the lifecycle state of an outbox entry.
type OutboxStatus string

const (
	StatusPending OutboxStatus = "pending"
	StatusFailed  OutboxStatus = "failed"
	// StatusNeedsReview marks an entry that exhausted its retry budget and
	// will not be retried automatically.
	StatusNeedsReview OutboxStatus = "needs_review"
)

// OutboxEntry is one queued user action awaiting replay against the server.
type OutboxEntry struct {
	ID          string
	Mutation    models.Mutation
	Status      OutboxStatus
	CreatedAt   time.Time
	LastError   string
	Attempts    int
	NextRetryAt *time.Time
}

const timeFormat = "2006-01-02 15:04:05"

// PutOutboxEntry inserts or replaces an outbox entry. A failed write is a
// failed enqueue and must surface to the caller.
func (db *DB) PutOutboxEntry(e OutboxEntry) error {
	if e.ID == "" {
		return fmt.Errorf("put outbox entry: empty id")
	}
	payload, err := json.Marshal(e.Mutation)
	if err != nil {
		return fmt.Errorf("marshal mutation: %w", err)
	}
	status := e.Status
	if status == "" {
		status = StatusPending
	}
	_, err = db.conn.Exec(
		`INSERT OR REPLACE INTO outbox (id, type, payload, status, last_error, attempts, next_retry_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Mutation.Type), string(payload), string(status),
		nullString(e.LastError), e.Attempts, nullTime(e.NextRetryAt),
	)
	if err != nil {
		return fmt.Errorf("put outbox entry: %w", err)
	}
	return nil
}

// DeleteOutboxEntry removes an entry by id. Missing ids are not an error.
func (db *DB) DeleteOutboxEntry(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete outbox entry: %w", err)
	}
	return nil
}

// ListOutboxEntries returns entries in storage (rowid) order, which is the
// drain order. An empty status returns every entry.
func (db *DB) ListOutboxEntries(status OutboxStatus) ([]OutboxEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = db.conn.Query(
			`SELECT id, payload, status, created_at, COALESCE(last_error,''), attempts, next_retry_at
			 FROM outbox ORDER BY rowid ASC`)
	} else {
		rows, err = db.conn.Query(
			`SELECT id, payload, status, created_at, COALESCE(last_error,''), attempts, next_retry_at
			 FROM outbox WHERE status = ? ORDER BY rowid ASC`, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var (
			e          OutboxEntry
			payload    string
			createdAt  string
			nextRetry  sql.NullString
		)
		if err := rows.Scan(&e.ID, &payload, (*string)(&e.Status), &createdAt, &e.LastError, &e.Attempts, &nextRetry); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Mutation); err != nil {
			return nil, fmt.Errorf("decode mutation %s: %w", e.ID, err)
		}
		if ts, err := time.Parse(timeFormat, createdAt); err == nil {
			e.CreatedAt = ts
		}
		if nextRetry.Valid && nextRetry.String != "" {
			if ts, err := time.Parse(timeFormat, nextRetry.String); err == nil {
				e.NextRetryAt = &ts
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkOutboxFailed marks an entry failed with the given reason, bumps its
// attempt counter, and schedules the next retry.
func (db *DB) MarkOutboxFailed(id, lastError string, nextRetryAt time.Time) error {
	_, err := db.conn.Exec(
		`UPDATE outbox SET status = ?, last_error = ?, attempts = attempts + 1, next_retry_at = ? WHERE id = ?`,
		string(StatusFailed), lastError, nextRetryAt.UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

// MarkOutboxNeedsReview demotes an entry out of automatic retry.
func (db *DB) MarkOutboxNeedsReview(id, lastError string) error {
	_, err := db.conn.Exec(
		`UPDATE outbox SET status = ?, last_error = ?, attempts = attempts + 1, next_retry_at = NULL WHERE id = ?`,
		string(StatusNeedsReview), lastError, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox needs review: %w", err)
	}
	return nil
}

// ClearOutbox deletes entries with the given status ("" clears everything)
// and returns the number removed.
func (db *DB) ClearOutbox(status OutboxStatus) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if status == "" {
		res, err = db.conn.Exec(`DELETE FROM outbox`)
	} else {
		res, err = db.conn.Exec(`DELETE FROM outbox WHERE status = ?`, string(status))
	}
	if err != nil {
		return 0, fmt.Errorf("clear outbox: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}
