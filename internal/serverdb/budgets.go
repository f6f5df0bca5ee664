package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// SaveBudget upserts the budget for a (category, month) pair. Budgets have
// no version token; last save wins.
func (db *ServerDB) SaveBudget(userID string, in models.BudgetSaveInput) (*models.Budget, error) {
	if !monthPattern.MatchString(in.Month) {
		return nil, Validationf("invalid month %q, want YYYY-MM", in.Month)
	}
	limit, err := decimal.NewFromString(in.Limit)
	if err != nil || limit.IsNegative() {
		return nil, Validationf("invalid limit %q", in.Limit)
	}
	if _, err := db.GetCategory(userID, in.CategoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, Validationf("category %s not found", in.CategoryID)
		}
		return nil, err
	}

	ts := now()
	_, err = db.conn.Exec(
		`INSERT INTO budgets (id, user_id, category_id, month, limit_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, category_id, month)
		 DO UPDATE SET limit_amount = excluded.limit_amount, updated_at = excluded.updated_at`,
		uuid.NewString(), userID, in.CategoryID, in.Month, limit.String(), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("save budget: %w", err)
	}
	return db.getBudget(userID, in.CategoryID, in.Month)
}

func (db *ServerDB) getBudget(userID, categoryID, month string) (*models.Budget, error) {
	var (
		b                    models.Budget
		limit                string
		createdAt, updatedAt string
	)
	err := db.conn.QueryRow(
		`SELECT id, user_id, category_id, month, limit_amount, created_at, updated_at
		 FROM budgets WHERE user_id = ? AND category_id = ? AND month = ?`,
		userID, categoryID, month,
	).Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Month, &limit, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	b.Limit, err = decimal.NewFromString(limit)
	if err != nil {
		return nil, fmt.Errorf("decode limit %q: %w", limit, err)
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

// MonthSpend sums the user's expense transactions in a category for a month.
func (db *ServerDB) MonthSpend(userID, categoryID, month string) (decimal.Decimal, error) {
	rows, err := db.conn.Query(
		`SELECT amount FROM transactions WHERE user_id = ? AND category_id = ? AND date LIKE ?`,
		userID, categoryID, month+"-%",
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("month spend: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("decode amount %q: %w", amount, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

// BudgetSummary returns the per-category budget/spend aggregation for a month.
func (db *ServerDB) BudgetSummary(userID, month string) ([]models.BudgetSummary, error) {
	if !monthPattern.MatchString(month) {
		return nil, Validationf("invalid month %q, want YYYY-MM", month)
	}
	rows, err := db.conn.Query(
		`SELECT b.category_id, c.name, b.month, b.limit_amount
		 FROM budgets b JOIN categories c ON c.id = b.category_id
		 WHERE b.user_id = ? AND b.month = ?
		 ORDER BY c.name ASC`,
		userID, month,
	)
	if err != nil {
		return nil, fmt.Errorf("budget summary: %w", err)
	}
	defer rows.Close()

	var out []models.BudgetSummary
	for rows.Next() {
		var (
			s     models.BudgetSummary
			limit string
		)
		if err := rows.Scan(&s.CategoryID, &s.CategoryName, &s.Month, &limit); err != nil {
			return nil, err
		}
		s.Limit, err = decimal.NewFromString(limit)
		if err != nil {
			return nil, fmt.Errorf("decode limit %q: %w", limit, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		spent, err := db.MonthSpend(userID, out[i].CategoryID, month)
		if err != nil {
			return nil, err
		}
		out[i].Spent = spent
	}
	return out, nil
}

// CheckBudgetThreshold recomputes a category's month spend after a
// transaction write and logs a crossing. Email delivery happens out of band.
func (db *ServerDB) CheckBudgetThreshold(userID, categoryID, date string) {
	if categoryID == "" || len(date) < 7 {
		return
	}
	month := date[:7]
	budget, err := db.getBudget(userID, categoryID, month)
	if err != nil {
		return // no budget for this category/month
	}
	spent, err := db.MonthSpend(userID, categoryID, month)
	if err != nil {
		slog.Warn("budget threshold check", "err", err)
		return
	}
	if spent.GreaterThanOrEqual(budget.Limit) {
		slog.Info("budget threshold crossed",
			"user", userID, "category", categoryID, "month", month,
			"limit", budget.Limit.String(), "spent", spent.String())
	}
}
