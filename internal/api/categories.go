package api

import (
	"encoding/json"
	"net/http"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// handleListCategories handles GET /v1/categories.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	cats, err := s.store.ListCategories(user.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// handleCreateCategory handles POST /v1/categories.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	var in models.CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	c, err := s.store.CreateCategory(user.ID, in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.metrics.RecordMutation()
	writeJSON(w, http.StatusCreated, c)
}

// handleUpdateCategory handles PATCH /v1/categories/{id}.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	id := r.PathValue("id")

	var in models.CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	c, err := s.store.UpdateCategory(user.ID, id, in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.metrics.RecordMutation()
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCategory handles DELETE /v1/categories/{id}.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	id := r.PathValue("id")

	var in models.DeleteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := s.store.DeleteCategory(user.ID, id, in.UpdatedAt); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.metrics.RecordMutation()
	writeJSON(w, http.StatusOK, MutateResponse{OK: true})
}
