package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"welth/internal/amqp"
)

// RecurringProcessor materialises due occurrences of recurring transactions.
type RecurringProcessor struct {
	store     RecurringStore
	publisher EventPublisher
}

func NewRecurringProcessor(store RecurringStore, publisher EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{store: store, publisher: publisher}
}

// ProcessDue handles every recurring transaction due at now, each in its own
// atomic unit. Failures are logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.store.DueRecurringTransactions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to get due recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"due", len(due),
		"processing_date", now.Format(time.DateOnly))

	processed := 0
	for _, parent := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		child, err := p.store.ProcessRecurringTransaction(ctx, parent.ID, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring transaction",
				"recurring_id", parent.ID,
				"error", err)
			continue
		}
		if child == nil {
			continue
		}
		processed++

		if p.publisher != nil {
			if err := p.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(amqp.EventCreated, *child)); err != nil {
				slog.ErrorContext(ctx, "Failed to publish transaction event", "transaction_id", child.ID, "error", err)
			}
		}
		slog.InfoContext(ctx, "Created transaction from recurring template",
			"recurring_id", parent.ID,
			"transaction_id", child.ID,
			"amount", child.Amount.StringFixed(2),
			"interval", parent.RecurringInterval)
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", processed,
		"total_checked", len(due))

	return processed, nil
}
