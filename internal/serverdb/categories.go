package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// CreateCategory inserts a category for the user.
func (db *ServerDB) CreateCategory(userID string, in models.CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Validationf("name is required")
	}
	catType := in.Type
	if catType == "" {
		catType = string(models.CategoryExpense)
	}
	if catType != string(models.CategoryExpense) && catType != string(models.CategoryIncome) {
		return nil, Validationf("invalid category type %q", catType)
	}

	c := models.Category{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
		Type:   models.CategoryType(catType),
		Color:  in.Color,
	}
	ts := now()
	_, err := db.conn.Exec(
		`INSERT INTO categories (id, user_id, name, type, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.Color, ts, ts,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, Validationf("category %q already exists", name)
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	c.CreatedAt = parseTime(ts)
	c.UpdatedAt = parseTime(ts)
	return &c, nil
}

// UpdateCategory rewrites a category under the updated_at compare-and-swap.
func (db *ServerDB) UpdateCategory(userID, id string, in models.CategoryInput) (*models.Category, error) {
	if in.UpdatedAt == "" {
		return nil, Validationf("updated_at is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Validationf("name is required")
	}

	ts := now()
	res, err := db.conn.Exec(
		`UPDATE categories SET name = ?, color = ?, updated_at = ? WHERE id = ? AND user_id = ? AND updated_at = ?`,
		name, in.Color, ts, id, userID, in.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	if err := db.checkCAS(res, "categories", id, userID); err != nil {
		return nil, err
	}
	return db.GetCategory(userID, id)
}

// DeleteCategory removes a category under the updated_at compare-and-swap.
// Categories still referenced by transactions cannot be deleted.
func (db *ServerDB) DeleteCategory(userID, id, updatedAt string) error {
	if updatedAt == "" {
		return Validationf("updated_at is required")
	}

	var inUse int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE user_id = ? AND category_id = ?`, userID, id,
	).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("check category use: %w", err)
	}
	if inUse > 0 {
		return Validationf("category is used by %d transactions", inUse)
	}

	res, err := db.conn.Exec(
		`DELETE FROM categories WHERE id = ? AND user_id = ? AND updated_at = ?`,
		id, userID, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return db.checkCAS(res, "categories", id, userID)
}

// GetCategory returns a single category owned by the user.
func (db *ServerDB) GetCategory(userID, id string) (*models.Category, error) {
	var (
		c                    models.Category
		createdAt, updatedAt string
	)
	err := db.conn.QueryRow(
		`SELECT id, user_id, name, type, color, created_at, updated_at FROM categories WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&c.ID, &c.UserID, &c.Name, (*string)(&c.Type), &c.Color, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// ListCategories returns the user's categories ordered by name.
func (db *ServerDB) ListCategories(userID string) ([]models.Category, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, name, type, color, created_at, updated_at FROM categories WHERE user_id = ? ORDER BY name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var (
			c                    models.Category
			createdAt, updatedAt string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, (*string)(&c.Type), &c.Color, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
