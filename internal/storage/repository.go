package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"welth/internal/core"

	_ "modernc.org/sqlite"
)

// DSN builds the connection string used for every handle on dbPath.
// Transactions start with BEGIN IMMEDIATE so read-modify-write units take the
// database write lock up front instead of failing on upgrade.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn inside one database transaction. Any error rolls back
// every statement fn issued.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) stamp() string {
	return formatTime(r.now())
}

func notFound(err error, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}

// Users

func (r *SQLiteRepository) GetUserByExternalID(ctx context.Context, externalID string) (*core.User, error) {
	u, err := r.queries.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get user by external id: %w", notFound(err, core.ErrUserNotFound))
	}
	return userOut(u)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", notFound(err, core.ErrUserNotFound))
	}
	return userOut(u)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (*core.User, error) {
	row, err := r.queries.CreateUser(ctx, CreateUserParams{
		ID:         uuid.NewString(),
		ExternalID: u.ExternalID,
		Email:      u.Email,
		Name:       u.Name,
		ImageUrl:   u.ImageURL,
		CreatedAt:  r.stamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", row.ID, "external_id", row.ExternalID)
	return userOut(row)
}

func userOut(u User) (*core.User, error) {
	out, err := u.toCore()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Accounts

// CreateAccount inserts a zero-balance account. The first account of a user
// is always the default; a new default clears the previous one.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, userID string, a core.Account) (*core.Account, error) {
	var created Account
	err := r.withTx(ctx, func(q *Queries) error {
		n, err := q.CountAccountsByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}
		isDefault := n == 0 || a.IsDefault
		now := r.stamp()
		if isDefault && n > 0 {
			if err := q.ClearDefaultAccounts(ctx, userID, now); err != nil {
				return fmt.Errorf("clear default accounts: %w", err)
			}
		}
		created, err = q.CreateAccount(ctx, CreateAccountParams{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      a.Name,
			Type:      string(a.Type),
			IsDefault: boolInt(isDefault),
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Account created", "account_id", created.ID, "user_id", userID, "is_default", created.IsDefault == 1)
	return accountOut(created, 0)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.queries.ListAccountsWithCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, 0, len(rows))
	for _, row := range rows {
		a, err := accountOut(row.Account, row.TransactionCount)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, id string) (*core.Account, error) {
	a, err := r.queries.GetAccountForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", notFound(err, core.ErrAccountNotFound))
	}
	n, err := r.queries.CountTransactionsByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	return accountOut(a, n)
}

func (r *SQLiteRepository) GetDefaultAccount(ctx context.Context, userID string) (*core.Account, error) {
	a, err := r.queries.GetDefaultAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get default account: %w", notFound(err, core.ErrAccountNotFound))
	}
	return accountOut(a, 0)
}

// GetAccountWithTransactions returns the account and its history, newest first.
func (r *SQLiteRepository) GetAccountWithTransactions(ctx context.Context, userID, id string) (*core.AccountWithTransactions, error) {
	a, err := r.queries.GetAccountForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", notFound(err, core.ErrAccountNotFound))
	}
	rows, err := r.queries.ListTransactionsByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list account transactions: %w", err)
	}
	acc, err := accountOut(a, int64(len(rows)))
	if err != nil {
		return nil, err
	}
	txs, err := transactionsOut(rows)
	if err != nil {
		return nil, err
	}
	return &core.AccountWithTransactions{Account: *acc, Transactions: txs}, nil
}

// SetDefaultAccount makes id the single default account of the user.
func (r *SQLiteRepository) SetDefaultAccount(ctx context.Context, userID, id string) (*core.Account, error) {
	var updated Account
	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetAccountForUser(ctx, id, userID); err != nil {
			return fmt.Errorf("get account: %w", notFound(err, core.ErrAccountNotFound))
		}
		now := r.stamp()
		if err := q.ClearDefaultAccounts(ctx, userID, now); err != nil {
			return fmt.Errorf("clear default accounts: %w", err)
		}
		if _, err := q.SetAccountDefault(ctx, id, userID, now); err != nil {
			return fmt.Errorf("set default account: %w", err)
		}
		var err error
		updated, err = q.GetAccountForUser(ctx, id, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return accountOut(updated, 0)
}

func accountOut(a Account, count int64) (*core.Account, error) {
	out, err := a.toCore()
	if err != nil {
		return nil, err
	}
	out.TransactionCount = int(count)
	return &out, nil
}

// Transactions

func transactionRow(userID string, t core.Transaction) Transaction {
	row := Transaction{
		ID:                t.ID,
		UserID:            userID,
		AccountID:         t.AccountID,
		Type:              string(t.Type),
		AmountCents:       core.ToCents(t.Amount),
		Description:       t.Description,
		Date:              formatTime(t.Date),
		Category:          t.Category,
		ReceiptUrl:        t.ReceiptURL,
		IsRecurring:       boolInt(t.IsRecurring),
		NextRecurringDate: nullTime(t.NextRecurringDate),
		LastProcessed:     nullTime(t.LastProcessed),
		Status:            string(t.Status),
	}
	if t.IsRecurring {
		row.RecurringInterval = nullString(string(t.RecurringInterval))
	}
	if row.Status == "" {
		row.Status = string(core.Completed)
	}
	return row
}

// CreateTransaction inserts tx and applies its signed amount to the owning
// account in the same unit. Nothing is written when the account is not owned
// by userID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (*core.Transaction, error) {
	if !core.AmountInRange(tx.Amount) {
		return nil, core.ErrInvalidAmount
	}
	if err := tx.ScheduleNext(); err != nil {
		return nil, err
	}
	var created Transaction
	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetAccountForUser(ctx, tx.AccountID, userID); err != nil {
			return fmt.Errorf("get account: %w", notFound(err, core.ErrAccountNotFound))
		}
		row := transactionRow(userID, tx)
		row.ID = uuid.NewString()
		row.CreatedAt = r.stamp()
		row.UpdatedAt = row.CreatedAt

		var err error
		created, err = q.CreateTransaction(ctx, row)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return applyDelta(ctx, q, created.AccountID, signedCents(created), row.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return transactionOut(created)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	t, err := r.queries.GetTransactionForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", notFound(err, core.ErrTransactionNotFound))
	}
	return transactionOut(t)
}

// UpdateTransaction replaces the transaction's fields and moves the balance
// by the difference between the new and the old signed amounts. When the
// account changes the old account gives back the old amount and the new one
// takes the new amount. A recurring schedule keeps its progress unless the
// date or interval changed.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID, id string, tx core.Transaction) (*core.Transaction, error) {
	if !core.AmountInRange(tx.Amount) {
		return nil, core.ErrInvalidAmount
	}
	var updated Transaction
	err := r.withTx(ctx, func(q *Queries) error {
		original, err := q.GetTransactionForUser(ctx, id, userID)
		if err != nil {
			return fmt.Errorf("get transaction: %w", notFound(err, core.ErrTransactionNotFound))
		}
		prev, err := original.toCore()
		if err != nil {
			return err
		}
		if err := tx.Reschedule(prev); err != nil {
			return err
		}
		if _, err := q.GetAccountForUser(ctx, tx.AccountID, userID); err != nil {
			return fmt.Errorf("get account: %w", notFound(err, core.ErrAccountNotFound))
		}

		row := transactionRow(userID, tx)
		row.ID = id
		row.UpdatedAt = r.stamp()
		updated, err = q.UpdateTransaction(ctx, row)
		if err != nil {
			return fmt.Errorf("update transaction: %w", notFound(err, core.ErrTransactionNotFound))
		}

		oldSigned, newSigned := signedCents(original), signedCents(updated)
		if original.AccountID == updated.AccountID {
			return applyDelta(ctx, q, updated.AccountID, newSigned-oldSigned, row.UpdatedAt)
		}
		if err := applyDelta(ctx, q, original.AccountID, -oldSigned, row.UpdatedAt); err != nil {
			return err
		}
		return applyDelta(ctx, q, updated.AccountID, newSigned, row.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return transactionOut(updated)
}

// DeleteTransaction removes the row and reverses its effect on the balance.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	var deleted Transaction
	err := r.withTx(ctx, func(q *Queries) error {
		var err error
		deleted, err = q.GetTransactionForUser(ctx, id, userID)
		if err != nil {
			return fmt.Errorf("get transaction: %w", notFound(err, core.ErrTransactionNotFound))
		}
		n, err := q.DeleteTransactionForUser(ctx, id, userID)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if n == 0 {
			return core.ErrTransactionNotFound
		}
		return applyDelta(ctx, q, deleted.AccountID, -signedCents(deleted), r.stamp())
	})
	if err != nil {
		return nil, err
	}
	return transactionOut(deleted)
}

// BulkDeleteTransactions deletes the user's transactions among ids. Balance
// reversals are summed per account and applied with one update each. Ids
// that do not exist or belong to someone else are ignored.
func (r *SQLiteRepository) BulkDeleteTransactions(ctx context.Context, userID string, ids []string) ([]core.Transaction, error) {
	var found []Transaction
	err := r.withTx(ctx, func(q *Queries) error {
		var err error
		found, err = q.ListTransactionsByIDs(ctx, userID, ids)
		if err != nil {
			return fmt.Errorf("select transactions: %w", err)
		}
		if len(found) == 0 {
			return nil
		}

		deltas := make(map[string]int64)
		var order []string
		for _, t := range found {
			if _, ok := deltas[t.AccountID]; !ok {
				order = append(order, t.AccountID)
			}
			deltas[t.AccountID] -= signedCents(t)
		}

		if _, err := q.DeleteTransactionsByIDs(ctx, userID, ids); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		now := r.stamp()
		for _, accountID := range order {
			if err := applyDelta(ctx, q, accountID, deltas[accountID], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Transactions bulk deleted", "user_id", userID, "requested", len(ids), "deleted", len(found))
	return transactionsOut(found)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	filter := ListTransactionsFilter{
		UserID:    userID,
		AccountID: f.AccountID,
		Type:      string(f.Type),
		Recurring: f.Recurring,
	}
	if !f.From.IsZero() {
		filter.From = formatTime(f.From)
	}
	if !f.To.IsZero() {
		filter.To = formatTime(f.To)
	}
	rows, err := r.queries.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.Transaction.toCore()
		if err != nil {
			return nil, err
		}
		acc, err := accountOut(row.Account, 0)
		if err != nil {
			return nil, err
		}
		t.Account = acc
		out = append(out, t)
	}
	return out, nil
}

// DueRecurringTransactions returns recurring parents whose next date is not
// after now, across all users.
func (r *SQLiteRepository) DueRecurringTransactions(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	rows, err := r.queries.ListDueRecurring(ctx, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("list due recurring: %w", err)
	}
	return transactionsOut(rows)
}

// ProcessRecurringTransaction materialises one occurrence of a recurring
// parent: a non-recurring child dated at the parent's next date is inserted,
// the balance adjusted, and the parent advanced. It returns nil when the
// parent is no longer due.
func (r *SQLiteRepository) ProcessRecurringTransaction(ctx context.Context, parentID string, now time.Time) (*core.Transaction, error) {
	var child Transaction
	var processed bool
	err := r.withTx(ctx, func(q *Queries) error {
		row, err := q.GetTransaction(ctx, parentID)
		if err != nil {
			return fmt.Errorf("get recurring transaction: %w", notFound(err, core.ErrTransactionNotFound))
		}
		parent, err := row.toCore()
		if err != nil {
			return err
		}
		if !parent.IsRecurring || parent.NextRecurringDate == nil || parent.NextRecurringDate.After(now) {
			return nil
		}
		occurrence := *parent.NextRecurringDate
		next, err := core.NextRecurringDate(occurrence, parent.RecurringInterval)
		if err != nil {
			return err
		}

		stamp := formatTime(now)
		childRow := Transaction{
			ID:          uuid.NewString(),
			UserID:      row.UserID,
			AccountID:   row.AccountID,
			Type:        row.Type,
			AmountCents: row.AmountCents,
			Description: row.Description,
			Date:        formatTime(occurrence),
			Category:    row.Category,
			Status:      string(core.Completed),
			CreatedAt:   stamp,
			UpdatedAt:   stamp,
		}
		if child, err = q.CreateTransaction(ctx, childRow); err != nil {
			return fmt.Errorf("insert recurring occurrence: %w", err)
		}
		if err := applyDelta(ctx, q, child.AccountID, signedCents(child), stamp); err != nil {
			return err
		}
		if err := q.AdvanceRecurring(ctx, parentID, formatTime(next), stamp); err != nil {
			return fmt.Errorf("advance recurring transaction: %w", err)
		}
		processed = true
		return nil
	})
	if err != nil || !processed {
		return nil, err
	}
	return transactionOut(child)
}

func signedCents(t Transaction) int64 {
	if core.TransactionType(t.Type) == core.Expense {
		return -t.AmountCents
	}
	return t.AmountCents
}

func applyDelta(ctx context.Context, q *Queries, accountID string, delta int64, now string) error {
	if delta == 0 {
		return nil
	}
	n, err := q.AddAccountBalance(ctx, accountID, delta, core.MaxBalanceCents, now)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if n > 0 {
		return nil
	}
	exists, err := q.AccountExists(ctx, accountID)
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if exists {
		return core.ErrBalanceOutOfRange
	}
	return core.ErrAccountNotFound
}

func transactionOut(t Transaction) (*core.Transaction, error) {
	out, err := t.toCore()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func transactionsOut(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Budgets

// GetBudget returns the user's budget, or nil when none is set.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string) (*core.Budget, error) {
	b, err := r.queries.GetBudgetByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	out, err := b.toCore()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, userID string, amount decimal.Decimal) (*core.Budget, error) {
	b, err := r.queries.UpsertBudget(ctx, UpsertBudgetParams{
		ID:          uuid.NewString(),
		UserID:      userID,
		AmountCents: core.ToCents(amount),
		Now:         r.stamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert budget: %w", err)
	}
	out, err := b.toCore()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SumExpenses totals the account's expenses dated in [from, to).
func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID, accountID string, from, to time.Time) (decimal.Decimal, error) {
	cents, err := r.queries.SumExpenses(ctx, userID, accountID, formatTime(from), formatTime(to))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return core.FromCents(cents), nil
}
