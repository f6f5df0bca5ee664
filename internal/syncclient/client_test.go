package syncclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

func TestMutateSendsEnvelope(t *testing.T) {
	var gotPath, gotAuth string
	var gotEnvelope models.Mutation

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotEnvelope); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		json.NewEncoder(w).Encode(MutateResponse{OK: true})
	}))
	defer srv.Close()

	c := New(srv.URL, "xk_testkey")
	m := models.Mutation{Type: models.MutCategoryCreate, Data: json.RawMessage(`{"name":"food"}`)}
	if err := c.Mutate(m); err != nil {
		t.Fatalf("mutate: %v", err)
	}

	if gotPath != "/v1/sync/mutate" {
		t.Errorf("path: %s", gotPath)
	}
	if gotAuth != "Bearer xk_testkey" {
		t.Errorf("auth header: %s", gotAuth)
	}
	if gotEnvelope.Type != models.MutCategoryCreate {
		t.Errorf("envelope type: %s", gotEnvelope.Type)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
		}))

		c := New(srv.URL, "k")
		err := c.Mutate(models.Mutation{Type: models.MutCategoryCreate, Data: json.RawMessage(`{"name":"x"}`)})
		srv.Close()

		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
		if IsNetworkError(err) {
			t.Errorf("status %d treated as network error", tc.status)
		}
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	// A server that is already closed stands in for an unreachable host.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "k")
	_, err := c.HealthCheck()
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if !IsNetworkError(err) {
		t.Errorf("transport failure not classified as network error: %v", err)
	}
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}

func TestServerRejectionIsNotNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "amount is required"})
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	err := c.Mutate(models.Mutation{Type: models.MutTransactionCreate, Data: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsNetworkError(err) {
		t.Error("400 rejection classified as network error")
	}
}

func TestListTransactionsEncodesFilter(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]models.Transaction{})
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.ListTransactions(TransactionFilter{From: "2026-08-01", Payment: "cash"})
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "from=2026-08-01&payment=cash" {
		t.Errorf("query: %s", gotQuery)
	}
}

func TestFilterValuesOmitEmpty(t *testing.T) {
	v := TransactionFilter{}.Values()
	if len(v) != 0 {
		t.Errorf("empty filter produced params: %v", v)
	}
}
