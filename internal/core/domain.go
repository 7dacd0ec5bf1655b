package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	Pending   TransactionStatus = "PENDING"
	Completed TransactionStatus = "COMPLETED"
	Failed    TransactionStatus = "FAILED"

	CurrentAccount AccountType = "CURRENT"
	SavingsAccount AccountType = "SAVINGS"
)

type (
	TransactionType   string
	TransactionStatus string
	AccountType       string

	// User is keyed by the identifier issued by the external auth provider.
	User struct {
		ID         string    `json:"id"`
		ExternalID string    `json:"externalId"`
		Email      string    `json:"email"`
		Name       string    `json:"name"`
		ImageURL   string    `json:"imageUrl,omitempty"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// Identity is what the external auth provider asserts about the caller.
	Identity struct {
		ExternalID string
		Email      string
		FirstName  string
		LastName   string
		ImageURL   string
	}

	Account struct {
		ID               string          `json:"id"`
		UserID           string          `json:"userId"`
		Name             string          `json:"name"`
		Type             AccountType     `json:"type"`
		Balance          decimal.Decimal `json:"balance"`
		IsDefault        bool            `json:"isDefault"`
		TransactionCount int             `json:"transactionCount"`
		CreatedAt        time.Time       `json:"createdAt"`
		UpdatedAt        time.Time       `json:"updatedAt"`
	}

	Transaction struct {
		ID                string            `json:"id"`
		UserID            string            `json:"userId"`
		AccountID         string            `json:"accountId"`
		Type              TransactionType   `json:"type"`
		Amount            decimal.Decimal   `json:"amount"`
		Description       string            `json:"description"`
		Date              time.Time         `json:"date"`
		Category          string            `json:"category"`
		ReceiptURL        string            `json:"receiptUrl,omitempty"`
		IsRecurring       bool              `json:"isRecurring"`
		RecurringInterval RecurringInterval `json:"recurringInterval,omitempty"`
		NextRecurringDate *time.Time        `json:"nextRecurringDate"`
		LastProcessed     *time.Time        `json:"lastProcessed"`
		Status            TransactionStatus `json:"status"`
		CreatedAt         time.Time         `json:"createdAt"`
		UpdatedAt         time.Time         `json:"updatedAt"`

		// Account is populated by list queries that join the owning account.
		Account *Account `json:"account,omitempty"`
	}

	// AccountWithTransactions is an account together with its full history, newest first.
	AccountWithTransactions struct {
		Account
		Transactions []Transaction `json:"transactions"`
	}

	Budget struct {
		ID            string          `json:"id"`
		UserID        string          `json:"userId"`
		Amount        decimal.Decimal `json:"amount"`
		LastAlertSent *time.Time      `json:"lastAlertSent"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}

	// BudgetStatus pairs the user's budget with the current month's expenses
	// of one account. Budget is nil when the user has none.
	BudgetStatus struct {
		Budget          *Budget         `json:"budget"`
		CurrentExpenses decimal.Decimal `json:"currentExpenses"`
	}

	// TransactionFilter narrows ListTransactions. Zero values mean "any".
	TransactionFilter struct {
		AccountID string
		Type      TransactionType
		From      time.Time
		To        time.Time
		Recurring *bool
	}
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)

	ErrBlocked     = errors.New("request blocked")
	ErrRateLimited = errors.New("too many requests, please try again later")

	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidInterval    = errors.New("invalid recurring interval")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidStatus      = errors.New("invalid transaction status")
	ErrMissingAccount     = errors.New("missing account")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrTooLong            = errors.New("text too long")
	ErrBalanceOutOfRange  = fmt.Errorf("%w: account balance out of range", ErrInvalidAmount)

	ErrReceiptUnreadable = errors.New("failed to scan receipt")
)

// IsValidationError reports whether err comes from input validation.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidType, ErrInvalidInterval, ErrInvalidDate,
		ErrInvalidStatus, ErrMissingAccount, ErrEmptyName, ErrInvalidAccountType,
		ErrTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case Pending, Completed, Failed:
		return true
	}
	return false
}

func (t AccountType) Valid() bool {
	return t == CurrentAccount || t == SavingsAccount
}

// SignedAmount is the effect of the transaction on its account balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	return SignedAmount(t.Type, t.Amount)
}

// SignedAmount returns amount for income and -amount for expenses.
func SignedAmount(typ TransactionType, amount decimal.Decimal) decimal.Decimal {
	if typ == Expense {
		return amount.Neg()
	}
	return amount
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !AmountInRange(t.Amount) {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrMissingAccount
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("description: %w (max 200 characters)", ErrTooLong)
	}
	if t.Status != "" && !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.IsRecurring {
		if _, err := stepperFor(t.RecurringInterval); err != nil {
			return err
		}
	}
	return nil
}

func (a Account) Validate() error {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return fmt.Errorf("name: %w (max 100 characters)", ErrTooLong)
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}
