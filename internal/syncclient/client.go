package syncclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	// ErrConflict is the optimistic-concurrency failure: the row changed
	// elsewhere since the client last read it.
	ErrConflict = errors.New("changed elsewhere")
	// ErrUnreachable wraps transport-level failures (server down, no network).
	ErrUnreachable = errors.New("server unreachable")
)

// IsNetworkError reports whether the error is a transport failure rather
// than a server-side rejection. Callers use it to decide between queueing a
// mutation for later and surfacing a validation error immediately.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// Client is an HTTP client for the expenses-server API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// MutateResponse is the response from POST /v1/sync/mutate.
type MutateResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// TransactionFilter describes a transaction list query. Field order is part
// of the cache fingerprint, so new filters are appended, never reordered.
type TransactionFilter struct {
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
	Payment    string `json:"payment,omitempty"`
	Sort       string `json:"sort,omitempty"`
}

// Values encodes the filter as URL query parameters.
func (f TransactionFilter) Values() url.Values {
	params := url.Values{}
	if f.From != "" {
		params.Set("from", f.From)
	}
	if f.To != "" {
		params.Set("to", f.To)
	}
	if f.CategoryID != "" {
		params.Set("category_id", f.CategoryID)
	}
	if f.AccountID != "" {
		params.Set("account_id", f.AccountID)
	}
	if f.Payment != "" {
		params.Set("payment", f.Payment)
	}
	if f.Sort != "" {
		params.Set("sort", f.Sort)
	}
	return params
}

// SignupResponse is the response from POST /v1/auth/signup.
type SignupResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
}

// Signup registers a new account and returns its first API key.
func (c *Client) Signup(email string) (*SignupResponse, error) {
	body := map[string]string{"email": email}
	var resp SignupResponse
	if err := c.do("POST", "/v1/auth/signup", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do("GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Mutate replays a single outbox envelope against the mutation endpoint.
// One round trip per entry, so failures stay isolated and attributable.
func (c *Client) Mutate(m models.Mutation) error {
	var resp MutateResponse
	return c.do("POST", "/v1/sync/mutate", m, &resp)
}

// --- Interactive (online-path) methods ---

// ListTransactions fetches transactions matching the filter.
func (c *Client) ListTransactions(filter TransactionFilter) ([]models.Transaction, error) {
	path := "/v1/transactions"
	if params := filter.Values(); len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp []models.Transaction
	if err := c.do("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateTransaction creates a transaction and returns the server's copy.
func (c *Client) CreateTransaction(in models.TransactionInput) (*models.Transaction, error) {
	var resp models.Transaction
	if err := c.do("POST", "/v1/transactions", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateTransaction updates a transaction under optimistic concurrency.
func (c *Client) UpdateTransaction(id string, in models.TransactionInput) (*models.Transaction, error) {
	var resp models.Transaction
	if err := c.do("PATCH", "/v1/transactions/"+url.PathEscape(id), in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteTransaction deletes a transaction under optimistic concurrency.
func (c *Client) DeleteTransaction(id, updatedAt string) error {
	in := models.DeleteInput{ID: id, UpdatedAt: updatedAt}
	return c.do("DELETE", "/v1/transactions/"+url.PathEscape(id), in, nil)
}

// ListCategories fetches all categories for the authenticated user.
func (c *Client) ListCategories() ([]models.Category, error) {
	var resp []models.Category
	if err := c.do("GET", "/v1/categories", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(in models.CategoryInput) (*models.Category, error) {
	var resp models.Category
	if err := c.do("POST", "/v1/categories", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteCategory deletes a category under optimistic concurrency.
func (c *Client) DeleteCategory(id, updatedAt string) error {
	in := models.DeleteInput{ID: id, UpdatedAt: updatedAt}
	return c.do("DELETE", "/v1/categories/"+url.PathEscape(id), in, nil)
}

// SaveBudget upserts the budget for a (category, month) pair.
func (c *Client) SaveBudget(in models.BudgetSaveInput) (*models.Budget, error) {
	var resp models.Budget
	if err := c.do("PUT", "/v1/budgets", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BudgetSummary fetches the per-category budget/spend aggregation for a month.
func (c *Client) BudgetSummary(month string) ([]models.BudgetSummary, error) {
	var resp []models.BudgetSummary
	if err := c.do("GET", "/v1/budgets/summary?month="+url.QueryEscape(month), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Message string `json:"error"`
}

// do executes an authenticated HTTP request against the API.
func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(respBody)
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrConflict, msg)
		default:
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
