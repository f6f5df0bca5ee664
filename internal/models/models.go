package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a transaction was paid
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

// CategoryType distinguishes income categories from expense categories
type CategoryType string

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

// Transaction represents a single income or expense entry
type Transaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id,omitempty"`
	AccountID     string          `json:"account_id,omitempty"`
	CategoryID    string          `json:"category_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	Date          string          `json:"date"` // YYYY-MM-DD
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Category represents a user-defined transaction category
type Category struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id,omitempty"`
	Name      string       `json:"name"`
	Type      CategoryType `json:"type"`
	Color     string       `json:"color,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Budget represents a monthly spending limit for a category.
// A budget is keyed by (user, category, month); saving is an upsert.
type Budget struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	CategoryID string          `json:"category_id"`
	Month      string          `json:"month"` // YYYY-MM
	Limit      decimal.Decimal `json:"limit"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// BudgetSummary is one row of the monthly budget aggregation
type BudgetSummary struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Month        string          `json:"month"`
	Limit        decimal.Decimal `json:"limit"`
	Spent        decimal.Decimal `json:"spent"`
}
