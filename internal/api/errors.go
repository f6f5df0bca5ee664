package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Nicolanasr/expenses-tracker/internal/serverdb"
)

// ErrorResponse is the error body returned on any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("write error response", "err", err)
	}
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "err", err)
	}
}

// writeStoreError maps serverdb errors onto HTTP statuses: validation → 400,
// not found → 404, compare-and-swap miss → 409, anything else → 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *serverdb.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, serverdb.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, serverdb.ErrChangedElsewhere):
		writeError(w, http.StatusConflict, "changed elsewhere")
	default:
		logFor(r.Context()).Error("store error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
