package api

import (
	"encoding/json"
	"net/http"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// handleSaveBudget handles PUT /v1/budgets.
func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	var in models.BudgetSaveInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	b, err := s.store.SaveBudget(user.ID, in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.metrics.RecordMutation()
	writeJSON(w, http.StatusOK, b)
}

// handleBudgetSummary handles GET /v1/budgets/summary?month=YYYY-MM.
func (s *Server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	month := r.URL.Query().Get("month")
	if month == "" {
		writeError(w, http.StatusBadRequest, "month is required")
		return
	}

	summary, err := s.store.BudgetSummary(user.ID, month)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if summary == nil {
		summary = []models.BudgetSummary{}
	}
	writeJSON(w, http.StatusOK, summary)
}
