// Package http provides the JSON API server and its handlers.
//
// This file implements decoding and validation helpers shared by handlers:
// bounded JSON bodies, amount and date fields, and list filters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"welth/internal/core"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case core.IsValidationError(err):
			return err
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		default:
			return badRequest("invalid JSON: " + err.Error())
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// AmountField accepts a JSON number or a decimal string with either dot or
// comma separator.
type AmountField struct {
	Value decimal.Decimal
	Set   bool
}

func (a *AmountField) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if s, err := strconv.Unquote(raw); err == nil {
		raw = s
	}
	d, err := core.ParseAmount(raw)
	if err != nil {
		return err
	}
	a.Value, a.Set = d, true
	return nil
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

type transactionRequest struct {
	Type              string      `json:"type"`
	Amount            AmountField `json:"amount"`
	Description       string      `json:"description"`
	Date              string      `json:"date"`
	AccountID         string      `json:"accountId"`
	Category          string      `json:"category"`
	ReceiptURL        string      `json:"receiptUrl"`
	IsRecurring       bool        `json:"isRecurring"`
	RecurringInterval string      `json:"recurringInterval"`
	Status            string      `json:"status"`
}

// toTransaction converts the request into a domain transaction. Semantic
// checks are left to core.Transaction.Validate.
func (req transactionRequest) toTransaction() (core.Transaction, error) {
	if !req.Amount.Set {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		Type:        core.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Amount:      req.Amount.Value,
		Description: sanitizeInput(req.Description),
		Date:        date,
		AccountID:   strings.TrimSpace(req.AccountID),
		Category:    sanitizeInput(req.Category),
		ReceiptURL:  strings.TrimSpace(req.ReceiptURL),
		IsRecurring: req.IsRecurring,
		Status:      core.TransactionStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
	}
	if req.IsRecurring {
		tx.RecurringInterval = core.RecurringInterval(strings.ToUpper(strings.TrimSpace(req.RecurringInterval)))
	}
	return tx, nil
}

func decodeTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, error) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return core.Transaction{}, err
	}
	return req.toTransaction()
}

// ParseTransactionFilter reads accountId, type, from, to and recurring from
// the query string.
func ParseTransactionFilter(q url.Values) (core.TransactionFilter, error) {
	f := core.TransactionFilter{AccountID: strings.TrimSpace(q.Get("accountId"))}

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		f.Type = core.TransactionType(strings.ToUpper(v))
		if !f.Type.Valid() {
			return f, core.ErrInvalidType
		}
	}
	if v := q.Get("from"); v != "" {
		t, err := ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = t
	}
	if v := strings.TrimSpace(q.Get("recurring")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, badRequest("recurring must be true or false")
		}
		f.Recurring = &b
	}
	return f, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
