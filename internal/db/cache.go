package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Cache collections. Each collection holds last-known-good server responses
// keyed by a query fingerprint. The cache is advisory: it is overwritten on
// each successful online fetch and is allowed to go stale in between.
const (
	CollectionTransactions = "transactions"
	CollectionCategories   = "categories"
	CollectionBudgets      = "budgets"
)

// Fingerprint returns a deterministic key for a query filter value. Struct
// fields marshal in declaration order, so identical filters always map to
// the same key.
func Fingerprint(filter any) string {
	data, err := json.Marshal(filter)
	if err != nil {
		return "invalid"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// PutCacheEntry overwrites the cached value for (collection, key).
func (db *DB) PutCacheEntry(collection, key string, value []byte) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO cache (collection, key, value, fetched_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		collection, key, string(value),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry returns the cached value for (collection, key), or ok=false
// when absent.
func (db *DB) GetCacheEntry(collection, key string) ([]byte, bool, error) {
	var value string
	err := db.conn.QueryRow(
		`SELECT value FROM cache WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}
	return []byte(value), true, nil
}

// DeleteCacheEntry removes a single cached value. Missing keys are not an error.
func (db *DB) DeleteCacheEntry(collection, key string) error {
	if _, err := db.conn.Exec(`DELETE FROM cache WHERE collection = ? AND key = ?`, collection, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// FindCachedEntity scans the collection's cached lists for an entity with
// the given id and returns its raw JSON object.
func (db *DB) FindCachedEntity(collection, entityID string) (json.RawMessage, bool, error) {
	rows, err := db.conn.Query(`SELECT value FROM cache WHERE collection = ?`, collection)
	if err != nil {
		return nil, false, fmt.Errorf("find cached entity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, false, fmt.Errorf("scan cache row: %w", err)
		}
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(value), &items); err != nil {
			continue
		}
		for _, item := range items {
			var probe struct {
				ID string `json:"id"`
			}
			if json.Unmarshal(item, &probe) == nil && probe.ID == entityID {
				return item, true, rows.Err()
			}
		}
	}
	return nil, false, rows.Err()
}

// PurgeCachedEntity removes the entity with the given id from every cached
// list in the collection. Values that are not JSON arrays of objects are
// left untouched.
func (db *DB) PurgeCachedEntity(collection, entityID string) error {
	rows, err := db.conn.Query(`SELECT key, value FROM cache WHERE collection = ?`, collection)
	if err != nil {
		return fmt.Errorf("purge cached entity: %w", err)
	}
	defer rows.Close()

	type rewrite struct {
		key   string
		value []byte
	}
	var rewrites []rewrite

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan cache row: %w", err)
		}

		var items []map[string]any
		if err := json.Unmarshal([]byte(value), &items); err != nil {
			continue
		}

		filtered := items[:0]
		removed := false
		for _, item := range items {
			if id, _ := item["id"].(string); id == entityID {
				removed = true
				continue
			}
			filtered = append(filtered, item)
		}
		if !removed {
			continue
		}

		data, err := json.Marshal(filtered)
		if err != nil {
			return fmt.Errorf("re-encode cache value: %w", err)
		}
		rewrites = append(rewrites, rewrite{key: key, value: data})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("cache rows: %w", err)
	}

	for _, rw := range rewrites {
		if err := db.PutCacheEntry(collection, rw.key, rw.value); err != nil {
			return err
		}
	}
	return nil
}
