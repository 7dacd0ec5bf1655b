package storage

import (
	"database/sql"

	"welth/internal/core"
)

type User struct {
	ID         string
	ExternalID string
	Email      string
	Name       string
	ImageUrl   string
	CreatedAt  string
	UpdatedAt  string
}

type Account struct {
	ID           string
	UserID       string
	Name         string
	Type         string
	BalanceCents int64
	IsDefault    int64
	CreatedAt    string
	UpdatedAt    string
}

type Transaction struct {
	ID                string
	UserID            string
	AccountID         string
	Type              string
	AmountCents       int64
	Description       string
	Date              string
	Category          string
	ReceiptUrl        string
	IsRecurring       int64
	RecurringInterval sql.NullString
	NextRecurringDate sql.NullString
	LastProcessed     sql.NullString
	Status            string
	CreatedAt         string
	UpdatedAt         string
}

type Budget struct {
	ID            string
	UserID        string
	AmountCents   int64
	LastAlertSent sql.NullString
	CreatedAt     string
	UpdatedAt     string
}

func (u User) toCore() (core.User, error) {
	out := core.User{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Email:      u.Email,
		Name:       u.Name,
		ImageURL:   u.ImageUrl,
	}
	var err error
	if out.CreatedAt, err = parseTime(u.CreatedAt); err != nil {
		return core.User{}, err
	}
	if out.UpdatedAt, err = parseTime(u.UpdatedAt); err != nil {
		return core.User{}, err
	}
	return out, nil
}

func (a Account) toCore() (core.Account, error) {
	out := core.Account{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name,
		Type:      core.AccountType(a.Type),
		Balance:   core.FromCents(a.BalanceCents),
		IsDefault: a.IsDefault != 0,
	}
	var err error
	if out.CreatedAt, err = parseTime(a.CreatedAt); err != nil {
		return core.Account{}, err
	}
	if out.UpdatedAt, err = parseTime(a.UpdatedAt); err != nil {
		return core.Account{}, err
	}
	return out, nil
}

func (t Transaction) toCore() (core.Transaction, error) {
	out := core.Transaction{
		ID:                t.ID,
		UserID:            t.UserID,
		AccountID:         t.AccountID,
		Type:              core.TransactionType(t.Type),
		Amount:            core.FromCents(t.AmountCents),
		Description:       t.Description,
		Category:          t.Category,
		ReceiptURL:        t.ReceiptUrl,
		IsRecurring:       t.IsRecurring != 0,
		RecurringInterval: core.RecurringInterval(t.RecurringInterval.String),
		Status:            core.TransactionStatus(t.Status),
	}
	var err error
	if out.Date, err = parseTime(t.Date); err != nil {
		return core.Transaction{}, err
	}
	if out.NextRecurringDate, err = parseNullTime(t.NextRecurringDate); err != nil {
		return core.Transaction{}, err
	}
	if out.LastProcessed, err = parseNullTime(t.LastProcessed); err != nil {
		return core.Transaction{}, err
	}
	if out.CreatedAt, err = parseTime(t.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	if out.UpdatedAt, err = parseTime(t.UpdatedAt); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (b Budget) toCore() (core.Budget, error) {
	out := core.Budget{
		ID:     b.ID,
		UserID: b.UserID,
		Amount: core.FromCents(b.AmountCents),
	}
	var err error
	if out.LastAlertSent, err = parseNullTime(b.LastAlertSent); err != nil {
		return core.Budget{}, err
	}
	if out.CreatedAt, err = parseTime(b.CreatedAt); err != nil {
		return core.Budget{}, err
	}
	if out.UpdatedAt, err = parseTime(b.UpdatedAt); err != nil {
		return core.Budget{}, err
	}
	return out, nil
}
