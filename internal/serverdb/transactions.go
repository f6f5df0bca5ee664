package serverdb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// TransactionQuery filters a transaction listing.
type TransactionQuery struct {
	From       string // inclusive YYYY-MM-DD
	To         string // inclusive YYYY-MM-DD
	CategoryID string
	AccountID  string
	Payment    string
	Sort       string // "date_asc" or default date desc
}

// validateTransactionInput enforces the business rules shared by the
// interactive endpoints and the offline-replay dispatcher.
func (db *ServerDB) validateTransactionInput(userID string, in models.TransactionInput) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		return decimal.Zero, Validationf("invalid amount %q", in.Amount)
	}
	if in.Date == "" {
		return decimal.Zero, Validationf("date is required")
	}
	if in.CategoryID != "" {
		var exists int
		err := db.conn.QueryRow(
			`SELECT 1 FROM categories WHERE id = ? AND user_id = ?`,
			in.CategoryID, userID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, Validationf("category %s not found", in.CategoryID)
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("check category: %w", err)
		}
	}
	return amount, nil
}

// CreateTransaction inserts a transaction for the user. The server assigns
// the authoritative id; any client-supplied id is ignored.
func (db *ServerDB) CreateTransaction(userID string, in models.TransactionInput) (*models.Transaction, error) {
	amount, err := db.validateTransactionInput(userID, in)
	if err != nil {
		return nil, err
	}

	t := models.Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		AccountID:     in.AccountID,
		CategoryID:    in.CategoryID,
		Amount:        amount,
		Description:   in.Description,
		PaymentMethod: models.PaymentMethod(in.PaymentMethod),
		Date:          in.Date,
	}
	ts := now()
	_, err = db.conn.Exec(
		`INSERT INTO transactions (id, user_id, account_id, category_id, amount, description, payment_method, date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, t.CategoryID, amount.String(), t.Description, string(t.PaymentMethod), t.Date, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	t.CreatedAt = parseTime(ts)
	t.UpdatedAt = parseTime(ts)
	return &t, nil
}

// UpdateTransaction rewrites a transaction under the updated_at
// compare-and-swap. in.UpdatedAt must be the version token the client last
// read; a mismatch returns ErrChangedElsewhere.
func (db *ServerDB) UpdateTransaction(userID, id string, in models.TransactionInput) (*models.Transaction, error) {
	if in.UpdatedAt == "" {
		return nil, Validationf("updated_at is required")
	}
	amount, err := db.validateTransactionInput(userID, in)
	if err != nil {
		return nil, err
	}

	ts := now()
	res, err := db.conn.Exec(
		`UPDATE transactions
		 SET account_id = ?, category_id = ?, amount = ?, description = ?, payment_method = ?, date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ? AND updated_at = ?`,
		in.AccountID, in.CategoryID, amount.String(), in.Description, in.PaymentMethod, in.Date, ts,
		id, userID, in.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	if err := db.checkCAS(res, "transactions", id, userID); err != nil {
		return nil, err
	}
	return db.GetTransaction(userID, id)
}

// DeleteTransaction removes a transaction under the updated_at compare-and-swap.
func (db *ServerDB) DeleteTransaction(userID, id, updatedAt string) error {
	if updatedAt == "" {
		return Validationf("updated_at is required")
	}
	res, err := db.conn.Exec(
		`DELETE FROM transactions WHERE id = ? AND user_id = ? AND updated_at = ?`,
		id, userID, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return db.checkCAS(res, "transactions", id, userID)
}

// GetTransaction returns a single transaction owned by the user.
func (db *ServerDB) GetTransaction(userID, id string) (*models.Transaction, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, account_id, category_id, amount, description, payment_method, date, created_at, updated_at
		 FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListTransactions returns the user's transactions matching the query,
// newest first unless the query asks otherwise.
func (db *ServerDB) ListTransactions(userID string, q TransactionQuery) ([]models.Transaction, error) {
	query := `SELECT id, user_id, account_id, category_id, amount, description, payment_method, date, created_at, updated_at
		 FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if q.From != "" {
		query += ` AND date >= ?`
		args = append(args, q.From)
	}
	if q.To != "" {
		query += ` AND date <= ?`
		args = append(args, q.To)
	}
	if q.CategoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, q.CategoryID)
	}
	if q.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, q.AccountID)
	}
	if q.Payment != "" {
		query += ` AND payment_method = ?`
		args = append(args, q.Payment)
	}
	if q.Sort == "date_asc" {
		query += ` ORDER BY date ASC, created_at ASC`
	} else {
		query += ` ORDER BY date DESC, created_at DESC`
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t                    models.Transaction
		amount               string
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &amount, &t.Description,
		(*string)(&t.PaymentMethod), &t.Date, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	t.Amount = d
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// checkCAS distinguishes "row changed elsewhere" from "row gone" after a
// zero-row compare-and-swap write.
func (db *ServerDB) checkCAS(res sql.Result, table, id, userID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = db.conn.QueryRow(
		fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ? AND user_id = ?`, table), id, userID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check row: %w", err)
	}
	return ErrChangedElsewhere
}
