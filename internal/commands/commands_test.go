package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welth/internal/core"
	"welth/internal/storage"
)

func runWelthctl(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AMQP_URL", "")
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nested", "welth.db")
	out, err := runWelthctl(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1 (clean)")

	_, err = os.Stat(db)
	assert.NoError(t, err)
}

func TestRecurringRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "welth.db")
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(db)
	require.NoError(t, err)
	u, err := repo.CreateUser(ctx, core.User{ExternalID: "ext-1", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	acc, err := repo.CreateAccount(ctx, u.ID, core.Account{Name: "Main", Type: core.CurrentAccount})
	require.NoError(t, err)
	_, err = repo.CreateTransaction(ctx, u.ID, core.Transaction{
		AccountID:         acc.ID,
		Type:              core.Expense,
		Amount:            decimal.RequireFromString("9.99"),
		Date:              time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Description:       "Streaming",
		IsRecurring:       true,
		RecurringInterval: core.Monthly,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	out, err := runWelthctl(t, "recurring", "run", "--db", db, "--at", "2024-02-20")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 1 recurring transaction(s)")

	out, err = runWelthctl(t, "recurring", "run", "--db", db, "--at", "2024-02-20")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 0 recurring transaction(s)", "already advanced past --at")

	repo, err = storage.NewSQLiteRepository(db)
	require.NoError(t, err)
	defer repo.Close()
	got, err := repo.GetAccountWithTransactions(ctx, u.ID, acc.ID)
	require.NoError(t, err)
	assert.Len(t, got.Transactions, 2)
	assert.True(t, decimal.RequireFromString("-19.98").Equal(got.Balance), got.Balance.String())
}

func TestRecurringRunRejectsBadInstant(t *testing.T) {
	_, err := runWelthctl(t, "recurring", "run", "--db", filepath.Join(t.TempDir(), "w.db"), "--at", "tomorrow")
	assert.ErrorContains(t, err, "invalid --at value")
}

func TestScan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := json.Marshal(map[string]any{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "m",
			"choices": []map[string]any{{
				"index": 0, "finish_reason": "stop",
				"message": map[string]any{"role": "assistant", "content": `{"amount":"4.20","merchantName":"Bakery","date":"2024-06-01"}`},
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	img := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\nfake"), 0o644))

	t.Setenv("GEMINI_API_KEY", "test-key")
	out, err := runWelthctl(t, "scan", img, "--base-url", srv.URL+"/v1")
	require.NoError(t, err)
	assert.Contains(t, out, `"merchantName": "Bakery"`)
	assert.Contains(t, out, `"amount": "4.2"`)
}

func TestScanRequiresAPIKey(t *testing.T) {
	img := filepath.Join(t.TempDir(), "receipt.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xff, 0xd8, 0xff}, 0o644))

	t.Setenv("GEMINI_API_KEY", "")
	_, err := runWelthctl(t, "scan", img)
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
