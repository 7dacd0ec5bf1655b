package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"welth/internal/amqp"
	"welth/internal/core"
)

type UserStore interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*core.User, error)
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	CreateUser(ctx context.Context, u core.User) (*core.User, error)
}

type AccountStore interface {
	CreateAccount(ctx context.Context, userID string, a core.Account) (*core.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	GetAccountWithTransactions(ctx context.Context, userID, id string) (*core.AccountWithTransactions, error)
	SetDefaultAccount(ctx context.Context, userID, id string) (*core.Account, error)
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (*core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id string, tx core.Transaction) (*core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) (*core.Transaction, error)
	BulkDeleteTransactions(ctx context.Context, userID string, ids []string) ([]core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error)
}

type RecurringStore interface {
	DueRecurringTransactions(ctx context.Context, now time.Time) ([]core.Transaction, error)
	ProcessRecurringTransaction(ctx context.Context, parentID string, now time.Time) (*core.Transaction, error)
}

type BudgetStore interface {
	GetBudget(ctx context.Context, userID string) (*core.Budget, error)
	UpsertBudget(ctx context.Context, userID string, amount decimal.Decimal) (*core.Budget, error)
	SumExpenses(ctx context.Context, userID, accountID string, from, to time.Time) (decimal.Decimal, error)
}

// EventPublisher receives committed transaction writes. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, evt *amqp.TransactionEvent) error
}

// Allower is a per-key admission check such as ratelimit.Limiter.
type Allower interface {
	Allow(key string) bool
}
