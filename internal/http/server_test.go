package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/log"
	"expenses/internal/services"
	"expenses/internal/storage"
)

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type expense struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("database is closed") }

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()

	if opts.Service == nil {
		repo, err := storage.Open(context.Background(), storage.Options{
			Driver: storage.DriverSQLite,
			DSN:    filepath.Join(t.TempDir(), "expenses.db"),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })

		opts.Service = services.NewExpenseService(repo, nil)
		if opts.Store == nil {
			opts.Store = repo
		}
	}
	opts.Logger = log.New(log.Config{Output: &bytes.Buffer{}})

	srv, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, query string, variables map[string]any) gqlResponse {
	t.Helper()

	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+GraphQLPath, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func field[T any](t *testing.T, r gqlResponse, name string) T {
	t.Helper()
	require.Empty(t, r.Errors)
	var v T
	require.NoError(t, json.Unmarshal(r.Data[name], &v))
	return v
}

func TestLunchScenario(t *testing.T) {
	ts := newTestServer(t, Options{})

	created := field[expense](t, post(t, ts, `
		mutation Create($amount: Float!, $description: String!, $date: String!, $category: String!) {
			createExpense(amount: $amount, description: $description, date: $date, category: $category) {
				id amount description date category
			}
		}`, map[string]any{"amount": 12.5, "description": "Lunch", "date": "2024-03-01", "category": "2"}),
		"createExpense")

	assert.Equal(t, expense{ID: 1, Amount: 12.5, Description: "Lunch", Date: "2024-03-01", Category: "2"}, created)

	listed := field[[]expense](t, post(t, ts, `{ listExpenses(limit: 10, offset: 0) { id description } }`, nil), "listExpenses")
	require.Len(t, listed, 1)
	assert.Equal(t, int64(1), listed[0].ID)

	status := field[string](t, post(t, ts, `mutation { deleteExpense(id: 1) }`, nil), "deleteExpense")
	assert.Equal(t, "Expense deleted successfully", status)

	resp := post(t, ts, `{ getExpense(id: 1) { id } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, "null", string(resp.Data["getExpense"]))

	status = field[string](t, post(t, ts, `mutation { deleteExpense(id: 1) }`, nil), "deleteExpense")
	assert.Equal(t, "Expense not found", status)
}

func TestSearchAndUpdateOverHTTP(t *testing.T) {
	ts := newTestServer(t, Options{})

	for _, m := range []string{
		`mutation { createExpense(amount: 3.2, description: "Morning Coffee", date: "2024-01-02", category: "3") { id } }`,
		`mutation { createExpense(amount: 40, description: "Groceries", date: "2024-01-03", category: "31") { id } }`,
	} {
		require.Empty(t, post(t, ts, m, nil).Errors)
	}

	byDesc := field[[]expense](t, post(t, ts, `{ searchExpenses(description: "cof") { description } }`, nil), "searchExpenses")
	require.Len(t, byDesc, 1)
	assert.Equal(t, "Morning Coffee", byDesc[0].Description)

	byCat := field[[]expense](t, post(t, ts, `{ searchExpenses(category: "3") { id category } }`, nil), "searchExpenses")
	require.Len(t, byCat, 1)
	assert.Equal(t, "3", byCat[0].Category)

	updated := field[expense](t, post(t, ts, `mutation { updateExpense(id: 2, amount: 42.5) { amount description date category } }`, nil), "updateExpense")
	assert.Equal(t, expense{Amount: 42.5, Description: "Groceries", Date: "2024-01-03", Category: "31"}, updated)

	missing := post(t, ts, `mutation { updateExpense(id: 99, amount: 1) { id } }`, nil)
	require.Len(t, missing.Errors, 1)
	assert.Equal(t, "Expense not found", missing.Errors[0].Message)
}

func TestValidationErrorsUseGraphQLEnvelope(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp := post(t, ts, `mutation { createExpense(amount: 1, description: "x", date: "2024-13-01", category: "2") { id } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "invalid date")

	resp = post(t, ts, `{ searchExpenses(category: "food") { id } }`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0].Message, "invalid category")
}

func TestGraphQLOverGET(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + GraphQLPath + "?query=" + url.QueryEscape(`{ listExpenses { id } }`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Errors)
	assert.JSONEq(t, "[]", string(out.Data["listExpenses"]))
}

func TestProbes(t *testing.T) {
	ts := newTestServer(t, Options{})

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, buf.String(), path)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(buf.String(), "expenses_http_requests_total"))
}

func TestReadyFailsWhenStoreIsDown(t *testing.T) {
	ts := newTestServer(t, Options{Store: failingPinger{}})

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitPerMinute: 1})

	post(t, ts, `{ listExpenses { id } }`, nil)

	resp, err := http.Post(ts.URL+GraphQLPath, "application/json", strings.NewReader(`{"query":"{ listExpenses { id } }"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode, "probes are not rate limited")
}
