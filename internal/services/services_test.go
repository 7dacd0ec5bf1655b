package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welth/internal/amqp"
	"welth/internal/core"
	"welth/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, evt *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type denyAfter struct{ n int }

func (d *denyAfter) Allow(string) bool {
	d.n--
	return d.n >= 0
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "welth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *storage.SQLiteRepository) (*core.User, *core.Account) {
	t.Helper()
	ctx := context.Background()
	u, err := repo.CreateUser(ctx, core.User{ExternalID: "ext-1", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	acc, err := NewAccountService(repo).Create(ctx, u.ID, core.Account{Name: "  Main  ", Type: core.CurrentAccount})
	require.NoError(t, err)
	return u, acc
}

func expense(accountID, amt string) core.Transaction {
	return core.Transaction{
		AccountID: accountID,
		Type:      core.Expense,
		Amount:    decimal.RequireFromString(amt),
		Date:      time.Now().UTC(),
	}
}

func TestUserServiceCheckUser(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := NewUserService(repo)

	assert.Nil(t, svc.CheckUser(ctx, nil))
	assert.Nil(t, svc.CheckUser(ctx, &core.Identity{ExternalID: "no-email"}), "cannot provision without email")

	created := svc.CheckUser(ctx, &core.Identity{ExternalID: "ext-1", Email: "ada@example.com", FirstName: "Ada", LastName: ""})
	require.NotNil(t, created)
	assert.Equal(t, "Ada", created.Name)

	again := svc.CheckUser(ctx, &core.Identity{ExternalID: "ext-1"})
	require.NotNil(t, again)
	assert.Equal(t, created.ID, again.ID)

	// A new provider id with a known email resolves to the existing user.
	byEmail := svc.CheckUser(ctx, &core.Identity{ExternalID: "ext-2", Email: "ada@example.com"})
	require.NotNil(t, byEmail)
	assert.Equal(t, created.ID, byEmail.ID)
}

type failingUserStore struct{}

func (failingUserStore) GetUserByExternalID(context.Context, string) (*core.User, error) {
	return nil, errors.New("database is locked")
}
func (failingUserStore) GetUserByEmail(context.Context, string) (*core.User, error) {
	return nil, errors.New("database is locked")
}
func (failingUserStore) CreateUser(context.Context, core.User) (*core.User, error) {
	return nil, errors.New("database is locked")
}

func TestUserServiceStoreFailureYieldsNil(t *testing.T) {
	svc := NewUserService(failingUserStore{})
	assert.Nil(t, svc.CheckUser(context.Background(), &core.Identity{ExternalID: "x", Email: "x@example.com"}))
}

func TestAccountServiceValidates(t *testing.T) {
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	assert.Equal(t, "Main", acc.Name)

	_, err := NewAccountService(repo).Create(context.Background(), u.ID, core.Account{Name: " ", Type: core.SavingsAccount})
	assert.ErrorIs(t, err, core.ErrEmptyName)
}

func TestTransactionServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, pub, nil, nil)

	created, err := svc.Create(ctx, u.ID, expense(acc.ID, "12.00"))
	require.NoError(t, err)

	upd := expense(acc.ID, "20.00")
	upd.Description = "groceries"
	updated, err := svc.Update(ctx, u.ID, created.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "groceries", updated.Description)

	got, err := svc.Get(ctx, u.ID, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(20)))

	require.NoError(t, svc.Delete(ctx, u.ID, created.ID))
	err = svc.Delete(ctx, u.ID, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, []amqp.EventKind{amqp.EventCreated, amqp.EventUpdated, amqp.EventDeleted}, pub.kinds())
}

func TestTransactionServiceValidation(t *testing.T) {
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, pub, nil, nil)

	bad := expense(acc.ID, "1")
	bad.Type = "REFUND"
	_, err := svc.Create(context.Background(), u.ID, bad)
	assert.ErrorIs(t, err, core.ErrInvalidType)
	assert.True(t, core.IsValidationError(err))
	assert.Empty(t, pub.kinds())
}

func TestTransactionServiceRateLimit(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	svc := NewTransactionService(repo, nil, &denyAfter{n: 2}, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, u.ID, expense(acc.ID, "1"))
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, u.ID, expense(acc.ID, "1"))
	require.ErrorIs(t, err, core.ErrRateLimited)

	txs, err := svc.List(ctx, u.ID, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 2, "denied request writes nothing")
}

func TestTransactionServicePublishFailureIsSwallowed(t *testing.T) {
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	svc := NewTransactionService(repo, &recordingPublisher{err: errors.New("broker down")}, nil, nil)

	created, err := svc.Create(context.Background(), u.ID, expense(acc.ID, "5"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestTransactionServiceBulkDelete(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, pub, nil, nil)

	var ids []string
	for _, amt := range []string{"1", "2", "3"} {
		tx, err := svc.Create(ctx, u.ID, expense(acc.ID, amt))
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}

	n, err := svc.BulkDelete(ctx, u.ID, append(ids[:2:2], "missing"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.BulkDelete(ctx, u.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	awt, err := repo.GetAccountWithTransactions(ctx, u.ID, acc.ID)
	require.NoError(t, err)
	assert.True(t, awt.Balance.Equal(decimal.NewFromInt(-3)))
	assert.Len(t, pub.kinds(), 5)
}

func TestBudgetServiceCurrent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	budgets := NewBudgetService(repo)
	budgets.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }

	txs := NewTransactionService(repo, nil, nil, nil)
	for _, d := range []time.Time{
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC),
	} {
		tx := expense(acc.ID, "10")
		tx.Date = d
		_, err := txs.Create(ctx, u.ID, tx)
		require.NoError(t, err)
	}

	status, err := budgets.Current(ctx, u.ID, acc.ID)
	require.NoError(t, err)
	assert.Nil(t, status.Budget)
	assert.True(t, status.CurrentExpenses.Equal(decimal.NewFromInt(20)), "got %s", status.CurrentExpenses)

	_, err = budgets.Update(ctx, u.ID, decimal.Zero)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = budgets.Update(ctx, u.ID, decimal.NewFromInt(400))
	require.NoError(t, err)
	status, err = budgets.Current(ctx, u.ID, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Budget)
	assert.True(t, status.Budget.Amount.Equal(decimal.NewFromInt(400)))
}

func TestRecurringProcessor(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	pub := &recordingPublisher{}

	tx := expense(acc.ID, "15")
	tx.Date = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	tx.IsRecurring = true
	tx.RecurringInterval = core.Weekly
	_, err := NewTransactionService(repo, nil, nil, nil).Create(ctx, u.ID, tx)
	require.NoError(t, err)

	proc := NewRecurringProcessor(repo, pub)

	n, err := proc.ProcessDue(ctx, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = proc.ProcessDue(ctx, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []amqp.EventKind{amqp.EventCreated}, pub.kinds())

	// Same instant again: the parent was advanced to Jan 24.
	n, err = proc.ProcessDue(ctx, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

type failingBudgetStore struct{ BudgetStore }

func (failingBudgetStore) GetBudget(context.Context, string) (*core.Budget, error) {
	return nil, errors.New("budget table unavailable")
}

func TestDashboardLoad(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u, acc := seedUser(t, repo)
	_, err := NewTransactionService(repo, nil, nil, nil).Create(ctx, u.ID, expense(acc.ID, "7"))
	require.NoError(t, err)
	_, err = repo.UpsertBudget(ctx, u.ID, decimal.NewFromInt(100))
	require.NoError(t, err)

	data, err := NewDashboard(repo, repo, NewBudgetService(repo)).Load(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, data.Accounts, 1)
	assert.Len(t, data.Transactions, 1)
	require.NotNil(t, data.Budget)
	assert.True(t, data.Budget.CurrentExpenses.Equal(decimal.NewFromInt(7)))

	degraded, err := NewDashboard(repo, repo, NewBudgetService(failingBudgetStore{repo})).Load(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, degraded.Budget)
	assert.Len(t, degraded.Accounts, 1)
}
