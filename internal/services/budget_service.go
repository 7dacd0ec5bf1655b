package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"welth/internal/core"
)

type BudgetService struct {
	store BudgetStore
	now   func() time.Time
}

func NewBudgetService(store BudgetStore) *BudgetService {
	return &BudgetService{store: store, now: time.Now}
}

// Current returns the user's budget with the account's expenses for the
// current calendar month (UTC).
func (s *BudgetService) Current(ctx context.Context, userID, accountID string) (*core.BudgetStatus, error) {
	budget, err := s.store.GetBudget(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}

	now := s.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	spent, err := s.store.SumExpenses(ctx, userID, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum current month expenses: %w", err)
	}

	return &core.BudgetStatus{Budget: budget, CurrentExpenses: spent}, nil
}

func (s *BudgetService) Update(ctx context.Context, userID string, amount decimal.Decimal) (*core.Budget, error) {
	if core.ToCents(amount) <= 0 {
		return nil, core.ErrInvalidAmount
	}
	b, err := s.store.UpsertBudget(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}
