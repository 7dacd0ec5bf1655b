package worker

import (
	"context"
	"errors"
	"fmt"

	"welth/internal/amqp"
	"welth/internal/log"
	"welth/internal/sheets"
)

// EventSource delivers transaction events to a handler until ctx ends.
type EventSource interface {
	ConsumeTransactionEvents(ctx context.Context, handler func(context.Context, *amqp.TransactionEvent) error) error
}

// ExportWorker copies every transaction event into the activity exporter.
type ExportWorker struct {
	exporter sheets.Exporter
	logger   *log.Logger
}

func NewExportWorker(exporter sheets.Exporter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &ExportWorker{exporter: exporter, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleEvent exports one event. A returned error asks the source to
// redeliver.
func (w *ExportWorker) HandleEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	ref, err := w.exporter.ExportEvent(ctx, evt)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to export transaction event",
			log.FieldOperation, log.OpExport,
			log.FieldTransactionID, evt.TransactionID,
			"kind", evt.Kind,
			log.FieldError, err)
		return fmt.Errorf("export %s event for %s: %w", evt.Kind, evt.TransactionID, err)
	}

	w.logger.InfoContext(ctx, "Exported transaction event",
		log.FieldOperation, log.OpExport,
		log.FieldTransactionID, evt.TransactionID,
		log.FieldUserID, evt.UserID,
		"kind", evt.Kind,
		log.FieldExportRef, ref)
	return nil
}

// Run consumes from src until ctx is cancelled. Cancellation is not an error.
func (w *ExportWorker) Run(ctx context.Context, src EventSource) error {
	w.logger.InfoContext(ctx, "Export worker started")
	err := src.ConsumeTransactionEvents(ctx, w.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume transaction events: %w", err)
	}
	w.logger.InfoContext(ctx, "Export worker stopped")
	return nil
}
