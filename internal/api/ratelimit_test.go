package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := &RateLimiter{buckets: make(map[string]*bucket)}

	for i := 0; i < 2; i++ {
		if !rl.Allow("k1", 2) {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}
	if rl.Allow("k1", 2) {
		t.Error("third request should be limited")
	}
	if !rl.Allow("k2", 2) {
		t.Error("separate key should have its own budget")
	}
}

func TestSignupRateLimited(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config) { cfg.RateLimitAuth = 2 })

	post := func(email string) *http.Response {
		t.Helper()
		resp, err := http.Post(h.BaseURL+"/v1/auth/signup", "application/json",
			strings.NewReader(fmt.Sprintf(`{"email":%q}`, email)))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	for i := 0; i < 2; i++ {
		resp := post(fmt.Sprintf("u%d@example.com", i))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("signup %d: status = %d", i+1, resp.StatusCode)
		}
	}

	resp := post("u2@example.com")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	var body ErrorResponse
	h.decode(resp, &body)
	if body.Error != "rate limit exceeded" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestMutateRateLimited(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config) { cfg.RateLimitMutate = 1 })

	mutate := func() *http.Response {
		return h.do(http.MethodPost, "/v1/sync/mutate", map[string]any{
			"type": "category:create",
			"data": map[string]string{"name": "food"},
		})
	}

	h.wantStatus(mutate(), http.StatusOK)

	resp := mutate()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}

	// Interactive endpoints draw from a separate budget.
	h.wantStatus(h.do(http.MethodGet, "/v1/transactions", nil), http.StatusOK)
}
