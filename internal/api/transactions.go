package api

import (
	"encoding/json"
	"net/http"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
	"github.com/Nicolanasr/expenses-tracker/internal/serverdb"
)

// handleListTransactions handles GET /v1/transactions.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	q := serverdb.TransactionQuery{
		From:       r.URL.Query().Get("from"),
		To:         r.URL.Query().Get("to"),
		CategoryID: r.URL.Query().Get("category_id"),
		AccountID:  r.URL.Query().Get("account_id"),
		Payment:    r.URL.Query().Get("payment"),
		Sort:       r.URL.Query().Get("sort"),
	}

	txns, err := s.store.ListTransactions(user.ID, q)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

// handleCreateTransaction handles POST /v1/transactions.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	var in models.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	t, err := s.store.CreateTransaction(user.ID, in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.store.CheckBudgetThreshold(user.ID, t.CategoryID, t.Date)
	s.metrics.RecordMutation()
	writeJSON(w, http.StatusCreated, t)
}

// handleUpdateTransaction handles PATCH /v1/transactions/{id}.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	id := r.PathValue("id")

	var in models.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	t, err := s.store.UpdateTransaction(user.ID, id, in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.store.CheckBudgetThreshold(user.ID, t.CategoryID, t.Date)
	s.metrics.RecordMutation()
	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTransaction handles DELETE /v1/transactions/{id}.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	id := r.PathValue("id")

	var in models.DeleteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := s.store.DeleteTransaction(user.ID, id, in.UpdatedAt); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.metrics.RecordMutation()
	writeJSON(w, http.StatusOK, MutateResponse{OK: true})
}
