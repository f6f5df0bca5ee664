package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
	"github.com/Nicolanasr/expenses-tracker/internal/serverdb"
)

// MutateResponse is the success body for POST /v1/sync/mutate.
type MutateResponse struct {
	OK bool `json:"ok"`
}

// handleMutate handles POST /v1/sync/mutate: the single entry point for
// offline-replayed mutations. The envelope is dispatched to the same store
// operations the interactive endpoints use, so replayed writes get identical
// ownership, validation, and concurrency checks.
func (s *Server) handleMutate(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	var m models.Mutation
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := m.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.applyMutation(user.ID, m); err != nil {
		if errors.Is(err, serverdb.ErrChangedElsewhere) {
			s.metrics.RecordConflict()
		}
		writeStoreError(w, r, err)
		return
	}

	s.metrics.RecordMutation()
	writeJSON(w, http.StatusOK, MutateResponse{OK: true})
}

// applyMutation dispatches one envelope to the appropriate store operation.
func (s *Server) applyMutation(userID string, m models.Mutation) error {
	switch m.Type {
	case models.MutTransactionCreate:
		var in models.TransactionInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return serverdb.Validationf("decode payload: %v", err)
		}
		t, err := s.store.CreateTransaction(userID, in)
		if err != nil {
			return err
		}
		s.store.CheckBudgetThreshold(userID, t.CategoryID, t.Date)
		return nil

	case models.MutTransactionUpdate:
		var in models.TransactionInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return serverdb.Validationf("decode payload: %v", err)
		}
		t, err := s.store.UpdateTransaction(userID, in.ID, in)
		if err != nil {
			return err
		}
		s.store.CheckBudgetThreshold(userID, t.CategoryID, t.Date)
		return nil

	case models.MutTransactionDelete:
		var in models.DeleteInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return serverdb.Validationf("decode payload: %v", err)
		}
		return s.store.DeleteTransaction(userID, in.ID, in.UpdatedAt)

	case models.MutCategoryCreate:
		var in models.CategoryInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return serverdb.Validationf("decode payload: %v", err)
		}
		_, err := s.store.CreateCategory(userID, in)
		return err

	case models.MutCategoryUpdate:
		var in models.CategoryInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return serverdb.Validationf("decode payload: %v", err)
		}
		_, err := s.store.UpdateCategory(userID, in.ID, in)
		return err

	case models.MutCategoryDelete:
		var in models.DeleteInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return serverdb.Validationf("decode payload: %v", err)
		}
		return s.store.DeleteCategory(userID, in.ID, in.UpdatedAt)

	case models.MutBudgetSave:
		var in models.BudgetSaveInput
		if err := json.Unmarshal(m.Data, &in); err != nil {
			return serverdb.Validationf("decode payload: %v", err)
		}
		_, err := s.store.SaveBudget(userID, in)
		return err

	default:
		return serverdb.Validationf("unknown mutation type %q", m.Type)
	}
}
