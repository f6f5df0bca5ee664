package models

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// MutationType tags the payload shape of a queued mutation.
type MutationType string

const (
	MutTransactionCreate MutationType = "transaction:create"
	MutTransactionUpdate MutationType = "transaction:update"
	MutTransactionDelete MutationType = "transaction:delete"
	MutCategoryCreate    MutationType = "category:create"
	MutCategoryUpdate    MutationType = "category:update"
	MutCategoryDelete    MutationType = "category:delete"
	MutBudgetSave        MutationType = "budget:save"
)

// AllMutationTypes returns the valid mutation type set.
func AllMutationTypes() map[MutationType]bool {
	return map[MutationType]bool{
		MutTransactionCreate: true,
		MutTransactionUpdate: true,
		MutTransactionDelete: true,
		MutCategoryCreate:    true,
		MutCategoryUpdate:    true,
		MutCategoryDelete:    true,
		MutBudgetSave:        true,
	}
}

// IsValidMutationType checks if the given mutation type string is valid.
func IsValidMutationType(mt string) bool {
	return AllMutationTypes()[MutationType(mt)]
}

// RequiresVersion reports whether mutations of this type must carry an
// updated_at version token for the server's compare-and-swap.
func (mt MutationType) RequiresVersion() bool {
	switch mt {
	case MutTransactionUpdate, MutTransactionDelete, MutCategoryUpdate, MutCategoryDelete:
		return true
	}
	return false
}

// Mutation is the envelope queued in the outbox and sent to the server.
type Mutation struct {
	Type MutationType    `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TransactionInput is the payload for transaction:create and transaction:update.
type TransactionInput struct {
	ID            string `json:"id,omitempty"`
	AccountID     string `json:"account_id,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
	Amount        string `json:"amount"`
	Description   string `json:"description,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Date          string `json:"date"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// CategoryInput is the payload for category:create and category:update.
type CategoryInput struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Color     string `json:"color,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// DeleteInput is the payload for transaction:delete and category:delete.
type DeleteInput struct {
	ID        string `json:"id"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// BudgetSaveInput is the payload for budget:save. Saving is an upsert keyed
// by (category, month), so no version token is required.
type BudgetSaveInput struct {
	CategoryID string `json:"category_id"`
	Month      string `json:"month"`
	Limit      string `json:"limit"`
}

// Validate checks that the payload matches the declared type and that
// update/delete mutations carry their version token. Malformed mutations are
// rejected here, before they ever reach durable storage.
func (m Mutation) Validate() error {
	if !IsValidMutationType(string(m.Type)) {
		return fmt.Errorf("unknown mutation type: %q", m.Type)
	}
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}

	switch m.Type {
	case MutTransactionCreate, MutTransactionUpdate:
		var in TransactionInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return fmt.Errorf("%s: decode payload: %w", m.Type, err)
		}
		if in.Amount == "" {
			return fmt.Errorf("%s: amount is required", m.Type)
		}
		if in.Date == "" {
			return fmt.Errorf("%s: date is required", m.Type)
		}
		if m.Type == MutTransactionUpdate {
			if in.ID == "" {
				return fmt.Errorf("%s: id is required", m.Type)
			}
			if in.UpdatedAt == "" {
				return fmt.Errorf("%s: updated_at version token is required", m.Type)
			}
		}
	case MutCategoryCreate, MutCategoryUpdate:
		var in CategoryInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return fmt.Errorf("%s: decode payload: %w", m.Type, err)
		}
		if in.Name == "" {
			return fmt.Errorf("%s: name is required", m.Type)
		}
		if m.Type == MutCategoryUpdate {
			if in.ID == "" {
				return fmt.Errorf("%s: id is required", m.Type)
			}
			if in.UpdatedAt == "" {
				return fmt.Errorf("%s: updated_at version token is required", m.Type)
			}
		}
	case MutTransactionDelete, MutCategoryDelete:
		var in DeleteInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return fmt.Errorf("%s: decode payload: %w", m.Type, err)
		}
		if in.ID == "" {
			return fmt.Errorf("%s: id is required", m.Type)
		}
		// Deleting an offline-created entity never reaches the server, so a
		// temp id is allowed through without a version token.
		if in.UpdatedAt == "" && !IsTempID(in.ID) {
			return fmt.Errorf("%s: updated_at version token is required", m.Type)
		}
	case MutBudgetSave:
		var in BudgetSaveInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return fmt.Errorf("%s: decode payload: %w", m.Type, err)
		}
		if in.CategoryID == "" {
			return fmt.Errorf("%s: category_id is required", m.Type)
		}
		if in.Month == "" {
			return fmt.Errorf("%s: month is required", m.Type)
		}
		if in.Limit == "" {
			return fmt.Errorf("%s: limit is required", m.Type)
		}
	}
	return nil
}

// EntityID extracts the target entity id from the payload, or "" when the
// payload carries none.
func (m Mutation) EntityID() string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(m.Data, &probe); err != nil {
		return ""
	}
	return probe.ID
}

// WithID returns a copy of the payload with the id field set.
func (m Mutation) WithID(id string) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(m.Data, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	fields["id"] = id
	return json.Marshal(fields)
}

// WithoutID returns a copy of the payload with the id field removed. Used to
// strip client-minted temp ids before transmission.
func (m Mutation) WithoutID() (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(m.Data, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	delete(fields, "id")
	return json.Marshal(fields)
}

const tempIDPrefix = "temp-"

// IsTempID reports whether the id is a client-minted placeholder for an
// entity created offline, before the server has assigned a real id.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// NewTempID generates a placeholder id for an offline-created entity
func NewTempID() (string, error) {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return tempIDPrefix + hex.EncodeToString(bytes), nil
}
