package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"welth/internal/core"
)

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// TransactionEvent announces a committed transaction write. It carries a
// snapshot of the row so consumers never read back from the database.
type TransactionEvent struct {
	Kind          EventKind `json:"kind"`
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	AccountID     string    `json:"accountId"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(kind EventKind, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Kind:          kind,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		AccountID:     tx.AccountID,
		Type:          string(tx.Type),
		Amount:        tx.Amount.StringFixed(core.MoneyScale),
		Date:          tx.Date,
		Description:   tx.Description,
		Category:      tx.Category,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

var errMissingEventFields = errors.New("event is missing kind or transaction id")

// TransactionEventFromJSON decodes an event and rejects ones that cannot be routed.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" || msg.TransactionID == "" {
		return nil, errMissingEventFields
	}
	return &msg, nil
}
