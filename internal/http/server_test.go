package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welth/internal/auth"
	"welth/internal/core"
	"welth/internal/log"
	"welth/internal/receipt"
	"welth/internal/services"
	"welth/internal/storage"
)

type fakeScanner struct {
	result   *receipt.ScannedReceipt
	err      error
	gotMime  string
	gotBytes int
}

func (f *fakeScanner) Scan(_ context.Context, image []byte, mimeType string) (*receipt.ScannedReceipt, error) {
	f.gotMime, f.gotBytes = mimeType, len(image)
	return f.result, f.err
}

type testEnv struct {
	srv     *Server
	repo    *storage.SQLiteRepository
	scanner *fakeScanner
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "welth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	if opts.SignInURL == "" {
		opts.SignInURL = "https://auth.example.com/sign-in"
	}
	opts.Store = repo

	scanner := &fakeScanner{}
	budgets := services.NewBudgetService(repo)
	srv := NewServer(":0", Services{
		Users:        services.NewUserService(repo),
		Accounts:     services.NewAccountService(repo),
		Transactions: services.NewTransactionService(repo, nil, nil, nil),
		Budgets:      budgets,
		Dashboard:    services.NewDashboard(repo, repo, budgets),
		Scanner:      scanner,
	}, opts)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	return &testEnv{srv: srv, repo: repo, scanner: scanner}
}

func (e *testEnv) request(t *testing.T, r *http.Request, signedIn bool) *httptest.ResponseRecorder {
	t.Helper()
	r.RemoteAddr = "127.0.0.1:40000"
	if signedIn {
		r.Header.Set(auth.HeaderUserID, "user_ada")
		r.Header.Set(auth.HeaderEmail, "ada@example.com")
		r.Header.Set(auth.HeaderFirstName, "Ada")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	return e.request(t, r, true)
}

func data[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	return env.Data
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestHealthChecksBypassPerimeter(t *testing.T) {
	env := newTestEnv(t, Options{})

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set("User-Agent", "curl/8.4")
	rec := env.request(t, r, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.request(t, httptest.NewRequest(http.MethodGet, "/readyz", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
}

func TestAnonymousRedirectsToSignIn(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.request(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil), false)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://auth.example.com/sign-in?redirect_url=%2Fdashboard", rec.Header().Get("Location"))

	rec = env.request(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code, "metrics is public")
}

func TestPerimeterBlocksSuspiciousRequests(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.request(t, httptest.NewRequest(http.MethodGet, "/.env", nil), true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Request blocked", errorMessage(t, rec))

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("User-Agent", "sqlmap/1.7")
	rec = env.request(t, r, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPerimeterRateLimits(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/account", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/account", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests. Please try again later.", errorMessage(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTransactionLifecycleKeepsBalance(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/account", map[string]any{"name": "Main", "type": "current"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	acc := data[core.Account](t, rec)
	assert.True(t, acc.IsDefault, "first account becomes default")

	rec = env.do(t, http.MethodPost, "/transaction", map[string]any{
		"type": "EXPENSE", "amount": "12,50", "date": "2024-03-10",
		"accountId": acc.ID, "description": "Groceries", "category": "food",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := data[core.Transaction](t, rec)
	assertAmount(t, "12.50", tx.Amount)

	rec = env.do(t, http.MethodGet, "/account/"+acc.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := data[core.AccountWithTransactions](t, rec)
	assertAmount(t, "-12.50", got.Balance)
	assert.Len(t, got.Transactions, 1)

	rec = env.do(t, http.MethodPut, "/transaction/"+tx.ID, map[string]any{
		"type": "INCOME", "amount": 20, "date": "2024-03-11T08:00:00Z", "accountId": acc.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/account", nil)
	accounts := data[[]core.Account](t, rec)
	require.Len(t, accounts, 1)
	assertAmount(t, "20", accounts[0].Balance)

	rec = env.do(t, http.MethodGet, "/transaction?type=income&accountId="+acc.ID, nil)
	assert.Len(t, data[[]core.Transaction](t, rec), 1)
	rec = env.do(t, http.MethodGet, "/transaction?type=expense", nil)
	assert.Empty(t, data[[]core.Transaction](t, rec))

	rec = env.do(t, http.MethodDelete, "/transaction/"+tx.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/transaction/"+tx.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/account/"+acc.ID, nil)
	assertAmount(t, "0", data[core.AccountWithTransactions](t, rec).Balance)
}

func TestTransactionInputErrors(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/account", map[string]any{"name": "Main", "type": "CURRENT"})
	acc := data[core.Account](t, rec)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed json", `{"type":`, http.StatusBadRequest},
		{"unknown field", map[string]any{"type": "EXPENSE", "amount": 1, "date": "2024-01-01", "accountId": acc.ID, "bogus": true}, http.StatusBadRequest},
		{"negative amount", map[string]any{"type": "EXPENSE", "amount": "-5", "date": "2024-01-01", "accountId": acc.ID}, http.StatusUnprocessableEntity},
		{"missing amount", map[string]any{"type": "EXPENSE", "date": "2024-01-01", "accountId": acc.ID}, http.StatusUnprocessableEntity},
		{"bad type", map[string]any{"type": "TRANSFER", "amount": 5, "date": "2024-01-01", "accountId": acc.ID}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"type": "EXPENSE", "amount": 5, "date": "10/03/2024", "accountId": acc.ID}, http.StatusUnprocessableEntity},
		{"recurring without interval", map[string]any{"type": "EXPENSE", "amount": 5, "date": "2024-01-01", "accountId": acc.ID, "isRecurring": true}, http.StatusUnprocessableEntity},
		{"amount too large", map[string]any{"type": "EXPENSE", "amount": "10000000000000", "date": "2024-01-01", "accountId": acc.ID}, http.StatusUnprocessableEntity},
		{"foreign account", map[string]any{"type": "EXPENSE", "amount": 5, "date": "2024-01-01", "accountId": "nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/transaction", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec = env.do(t, http.MethodGet, "/account/"+acc.ID, nil)
	assertAmount(t, "0", data[core.AccountWithTransactions](t, rec).Balance)
}

func TestBulkDelete(t *testing.T) {
	env := newTestEnv(t, Options{})
	acc := data[core.Account](t, env.do(t, http.MethodPost, "/account", map[string]any{"name": "Main", "type": "CURRENT"}))

	var ids []string
	for _, amt := range []string{"10", "5.25", "1"} {
		rec := env.do(t, http.MethodPost, "/transaction", map[string]any{
			"type": "EXPENSE", "amount": amt, "date": "2024-02-01", "accountId": acc.ID,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids = append(ids, data[core.Transaction](t, rec).ID)
	}

	rec := env.do(t, http.MethodPost, "/transaction/bulk-delete", map[string]any{"ids": ids[:2]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, data[map[string]int](t, rec)["deleted"])

	rec = env.do(t, http.MethodGet, "/account/"+acc.ID, nil)
	assertAmount(t, "-1", data[core.AccountWithTransactions](t, rec).Balance)
}

func TestBudgetAndDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})
	acc := data[core.Account](t, env.do(t, http.MethodPost, "/account", map[string]any{"name": "Main", "type": "CURRENT"}))

	rec := env.do(t, http.MethodPut, "/budget", map[string]any{"amount": "500"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assertAmount(t, "500", data[core.Budget](t, rec).Amount)

	rec = env.do(t, http.MethodPost, "/transaction", map[string]any{
		"type": "EXPENSE", "amount": "42.10", "date": time.Now().UTC().Format(time.RFC3339), "accountId": acc.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/budget?accountId="+acc.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := data[core.BudgetStatus](t, rec)
	require.NotNil(t, status.Budget)
	assertAmount(t, "42.10", status.CurrentExpenses)

	rec = env.do(t, http.MethodGet, "/budget", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dash := data[services.DashboardData](t, rec)
	assert.Len(t, dash.Accounts, 1)
	assert.Len(t, dash.Transactions, 1)
	require.NotNil(t, dash.Budget)
}

func scanRequest(t *testing.T, contentType string, payload []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="receipt"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/transaction/scan", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestScanReceipt(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.scanner.result = &receipt.ScannedReceipt{
		Amount:       decimal.RequireFromString("18.40"),
		Date:         time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		MerchantName: "Coop",
		Category:     "groceries",
	}

	rec := env.request(t, scanRequest(t, "image/png", []byte("\x89PNG fake")), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := data[receipt.ScannedReceipt](t, rec)
	assertAmount(t, "18.40", got.Amount)
	assert.Equal(t, "Coop", got.MerchantName)
	assert.Equal(t, "image/png", env.scanner.gotMime)

	env.scanner.result, env.scanner.err = nil, core.ErrReceiptUnreadable
	rec = env.request(t, scanRequest(t, "image/jpeg", []byte("jpeg")), true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to scan receipt", errorMessage(t, rec))

	rec = env.request(t, scanRequest(t, "text/plain", []byte("hello")), true)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = env.request(t, scanRequest(t, "image/jpeg", bytes.Repeat([]byte{1}, maxReceiptSize+1)), true)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	env.srv.svc.Scanner = nil
	rec = env.request(t, scanRequest(t, "image/jpeg", []byte("jpeg")), true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsReportCounters(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.request(t, httptest.NewRequest(http.MethodGet, "/.env", nil), false)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "security_suspicious_requests_total 1")
	assert.True(t, strings.Contains(body, "# TYPE http_requests_total counter"))
}

func TestRouteFamiliesTagLogComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Component: log.ComponentApp, Handler: slog.NewTextHandler(&buf, nil)})
	env := newTestEnv(t, Options{Logger: logger})

	tests := []struct {
		method, path string
		component    string
	}{
		{http.MethodGet, "/account/missing", "component=account"},
		{http.MethodGet, "/transaction/missing", "component=transaction"},
		{http.MethodGet, "/budget", "component=budget"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			rec := env.do(t, tt.method, tt.path, nil)
			assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)

			var line string
			for _, l := range strings.Split(buf.String(), "\n") {
				if strings.Contains(l, `msg="Request rejected"`) {
					line = l
				}
			}
			require.NotEmpty(t, line, buf.String())
			assert.Contains(t, line, tt.component)
		})
	}
}

func TestConfiguredTrustedProxyForwardsIdentity(t *testing.T) {
	viaProxy := func(env *testEnv) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/account", nil)
		r.Header.Set(auth.HeaderUserID, "user_ada")
		r.Header.Set(auth.HeaderEmail, "ada@example.com")
		rec := httptest.NewRecorder()
		r.RemoteAddr = "198.51.100.7:40000"
		env.srv.Handler.ServeHTTP(rec, r)
		return rec
	}

	rec := viaProxy(newTestEnv(t, Options{}))
	assert.Equal(t, http.StatusFound, rec.Code, "public peers cannot assert identity")

	rec = viaProxy(newTestEnv(t, Options{TrustedProxies: []string{"198.51.100.0/24", "not-a-cidr"}}))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
