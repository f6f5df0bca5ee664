package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nicolanasr/expenses-tracker/internal/serverdb"
)

// testHarness wraps a full Server behind an httptest listener.
type testHarness struct {
	t       *testing.T
	Server  *Server
	Store   *serverdb.ServerDB
	BaseURL string
	APIKey  string
	UserID  string
	client  *http.Client
}

// newTestHarness builds a server over an in-memory store with one signed-up
// user ready to authenticate.
func newTestHarness(t *testing.T, opts ...func(*Config)) *testHarness {
	t.Helper()

	store, err := serverdb.Open(":memory:")
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}

	cfg := LoadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := NewServer(cfg, store)
	httpSrv := httptest.NewServer(srv.Handler())

	h := &testHarness{
		t:       t,
		Server:  srv,
		Store:   store,
		BaseURL: httpSrv.URL,
		client:  &http.Client{},
	}

	t.Cleanup(func() {
		httpSrv.Close()
		store.Close()
	})

	user, err := store.CreateUser("harness@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	key, err := store.CreateAPIKey(user.ID)
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	h.UserID = user.ID
	h.APIKey = key
	return h
}

// do sends an authenticated request and returns the response.
func (h *testHarness) do(method, path string, body any) *http.Response {
	h.t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, h.BaseURL+path, buf)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// decode unmarshals the response body into v.
func (h *testHarness) decode(resp *http.Response, v any) {
	h.t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		h.t.Fatalf("decode response: %v", err)
	}
}

// wantStatus fails the test when the response status differs.
func (h *testHarness) wantStatus(resp *http.Response, want int) {
	h.t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		h.t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}
