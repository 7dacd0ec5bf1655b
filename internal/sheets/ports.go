package sheets

import (
	"context"
	"time"

	"welth/internal/amqp"
)

// Exporter records transaction activity somewhere outside the database.
// It returns a reference to the written row.
type Exporter interface {
	ExportEvent(ctx context.Context, evt *amqp.TransactionEvent) (rowRef string, err error)
}

// Header names the columns written by Row, in order.
var Header = []any{
	"Timestamp", "Event", "Transaction", "User", "Account",
	"Type", "Amount", "Date", "Description", "Category",
}

// Row flattens an event into one activity row.
func Row(evt *amqp.TransactionEvent) []any {
	return []any{
		evt.Timestamp.UTC().Format(time.RFC3339),
		string(evt.Kind),
		evt.TransactionID,
		evt.UserID,
		evt.AccountID,
		evt.Type,
		evt.Amount,
		evt.Date.UTC().Format(time.DateOnly),
		evt.Description,
		evt.Category,
	}
}
