package services

import (
	"context"
	"fmt"
	"log/slog"

	"welth/internal/amqp"
	"welth/internal/core"
	"welth/internal/log"
)

// TransactionService validates transaction writes, runs them through the
// store's atomic units and announces what was committed.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
	limiter   Allower
	logger    *log.StructuredLogger
}

// NewTransactionService wires the service. publisher and limiter may be nil.
func NewTransactionService(store TransactionStore, publisher EventPublisher, limiter Allower, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &TransactionService{
		store:     store,
		publisher: publisher,
		limiter:   limiter,
		logger:    log.NewStructuredLogger(logger),
	}
}

func (s *TransactionService) Create(ctx context.Context, userID string, tx core.Transaction) (*core.Transaction, error) {
	if s.limiter != nil && !s.limiter.Allow(userID) {
		return nil, core.ErrRateLimited
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	created, err := s.store.CreateTransaction(ctx, userID, tx)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	s.committed(ctx, log.OpCreate, amqp.EventCreated, *created)
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (*core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

func (s *TransactionService) Update(ctx context.Context, userID, id string, tx core.Transaction) (*core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateTransaction(ctx, userID, id, tx)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	s.committed(ctx, log.OpUpdate, amqp.EventUpdated, *updated)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	deleted, err := s.store.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.committed(ctx, log.OpDelete, amqp.EventDeleted, *deleted)
	return nil
}

// BulkDelete removes the caller's transactions among ids and returns how
// many were deleted.
func (s *TransactionService) BulkDelete(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	deleted, err := s.store.BulkDeleteTransactions(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("bulk delete transactions: %w", err)
	}
	for _, tx := range deleted {
		s.committed(ctx, log.OpBulkDelete, amqp.EventDeleted, tx)
	}
	return len(deleted), nil
}

func (s *TransactionService) List(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) committed(ctx context.Context, op string, kind amqp.EventKind, tx core.Transaction) {
	s.logger.LogTransactionWrite(ctx, op, tx.UserID, tx.ID, tx.AccountID, string(tx.Type), tx.Amount.StringFixed(core.MoneyScale))
	s.publish(ctx, kind, tx)
}

// publish is best effort: the write is already committed, so a broker
// failure is logged and swallowed.
func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, tx core.Transaction) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping transaction event")
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(kind, tx)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"kind", kind, "transaction_id", tx.ID, "error", err)
	}
}
