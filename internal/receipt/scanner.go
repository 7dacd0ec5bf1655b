// Package receipt extracts transaction fields from receipt images.
package receipt

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Scanner turns a receipt image into transaction fields.
type Scanner interface {
	Scan(ctx context.Context, image []byte, mimeType string) (*ScannedReceipt, error)
}

// ScannedReceipt holds what the model could read. Fields it could not parse
// keep their zero value.
type ScannedReceipt struct {
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	MerchantName string          `json:"merchantName"`
	Category     string          `json:"category"`
}

var ErrEmptyImage = errors.New("receipt image is empty")
