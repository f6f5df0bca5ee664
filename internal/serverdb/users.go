package serverdb

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// User is a registered account.
type User struct {
	ID    string
	Email string
}

// CreateUser inserts a new user and returns it.
func (db *ServerDB) CreateUser(email string) (*User, error) {
	if email == "" {
		return nil, Validationf("email is required")
	}
	u := &User{ID: uuid.NewString(), Email: email}
	_, err := db.conn.Exec(
		`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Email, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks up a user by email.
func (db *ServerDB) GetUserByEmail(email string) (*User, error) {
	var u User
	err := db.conn.QueryRow(`SELECT id, email FROM users WHERE email = ?`, email).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateAPIKey mints a new API key for the user and returns the plaintext
// key. Only its hash is stored.
func (db *ServerDB) CreateAPIKey(userID string) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	key := "xk_" + hex.EncodeToString(raw)

	_, err := db.conn.Exec(
		`INSERT INTO api_keys (id, user_id, key_hash, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), userID, hashKey(key), now(),
	)
	if err != nil {
		return "", fmt.Errorf("store api key: %w", err)
	}
	return key, nil
}

// GetUserByAPIKey resolves an API key to its owner. Returns ErrNotFound for
// unknown keys.
func (db *ServerDB) GetUserByAPIKey(key string) (*User, error) {
	var u User
	err := db.conn.QueryRow(
		`SELECT u.id, u.email FROM api_keys k JOIN users u ON u.id = k.user_id WHERE k.key_hash = ?`,
		hashKey(key),
	).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve api key: %w", err)
	}

	// Best-effort usage tracking
	db.conn.Exec(`UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, now(), hashKey(key))
	return &u, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
