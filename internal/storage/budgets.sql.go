package storage

import "context"

const budgetColumns = `id, user_id, amount_cents, last_alert_sent, created_at, updated_at`

func scanBudget(row rowScanner) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.UserID, &b.AmountCents, &b.LastAlertSent, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

const getBudgetByUser = `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ?`

func (q *Queries) GetBudgetByUser(ctx context.Context, userID string) (Budget, error) {
	return scanBudget(q.db.QueryRowContext(ctx, getBudgetByUser, userID))
}

const upsertBudget = `INSERT INTO budgets (id, user_id, amount_cents, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = excluded.updated_at
RETURNING ` + budgetColumns

type UpsertBudgetParams struct {
	ID          string
	UserID      string
	AmountCents int64
	Now         string
}

func (q *Queries) UpsertBudget(ctx context.Context, arg UpsertBudgetParams) (Budget, error) {
	return scanBudget(q.db.QueryRowContext(ctx, upsertBudget, arg.ID, arg.UserID, arg.AmountCents, arg.Now, arg.Now))
}
