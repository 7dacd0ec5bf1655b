package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"welth/internal/core"
)

type DashboardData struct {
	Accounts     []core.Account     `json:"accounts"`
	Transactions []core.Transaction `json:"transactions"`
	Budget       *core.BudgetStatus `json:"budget"`
}

type Dashboard struct {
	accounts     AccountStore
	transactions TransactionStore
	budgets      *BudgetService
}

func NewDashboard(accounts AccountStore, transactions TransactionStore, budgets *BudgetService) *Dashboard {
	return &Dashboard{accounts: accounts, transactions: transactions, budgets: budgets}
}

// Load fetches accounts and transactions concurrently, then the budget of the
// default account. A budget failure degrades to no budget.
func (d *Dashboard) Load(ctx context.Context, userID string) (*DashboardData, error) {
	var data DashboardData

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := d.accounts.ListAccounts(gctx, userID)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		data.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		txs, err := d.transactions.ListTransactions(gctx, userID, core.TransactionFilter{})
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		data.Transactions = txs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, a := range data.Accounts {
		if !a.IsDefault || d.budgets == nil {
			continue
		}
		status, err := d.budgets.Current(ctx, userID, a.ID)
		if err != nil {
			slog.WarnContext(ctx, "Budget unavailable for dashboard", "user_id", userID, "error", err)
			break
		}
		data.Budget = status
		break
	}

	return &data, nil
}
