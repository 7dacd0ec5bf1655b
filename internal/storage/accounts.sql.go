package storage

import "context"

const accountColumns = `id, user_id, name, type, balance_cents, is_default, created_at, updated_at`

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.BalanceCents, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

const createAccount = `INSERT INTO accounts (id, user_id, name, type, balance_cents, is_default, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

type CreateAccountParams struct {
	ID           string
	UserID       string
	Name         string
	Type         string
	BalanceCents int64
	IsDefault    int64
	CreatedAt    string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, createAccount,
		arg.ID, arg.UserID, arg.Name, arg.Type, arg.BalanceCents, arg.IsDefault, arg.CreatedAt, arg.CreatedAt))
}

const countAccountsByUser = `SELECT COUNT(*) FROM accounts WHERE user_id = ?`

func (q *Queries) CountAccountsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAccountsByUser, userID).Scan(&n)
	return n, err
}

const getAccountForUser = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ? AND user_id = ?`

func (q *Queries) GetAccountForUser(ctx context.Context, id, userID string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountForUser, id, userID))
}

const getDefaultAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = ? AND is_default = 1 LIMIT 1`

func (q *Queries) GetDefaultAccount(ctx context.Context, userID string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getDefaultAccount, userID))
}

const listAccountsWithCounts = `SELECT a.id, a.user_id, a.name, a.type, a.balance_cents, a.is_default, a.created_at, a.updated_at,
       (SELECT COUNT(*) FROM transactions t WHERE t.account_id = a.id) AS transaction_count
FROM accounts a
WHERE a.user_id = ?
ORDER BY a.created_at DESC`

type ListAccountsWithCountsRow struct {
	Account
	TransactionCount int64
}

func (q *Queries) ListAccountsWithCounts(ctx context.Context, userID string) ([]ListAccountsWithCountsRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccountsWithCounts, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListAccountsWithCountsRow
	for rows.Next() {
		var i ListAccountsWithCountsRow
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Type, &i.BalanceCents, &i.IsDefault,
			&i.CreatedAt, &i.UpdatedAt, &i.TransactionCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countTransactionsByAccount = `SELECT COUNT(*) FROM transactions WHERE account_id = ?`

func (q *Queries) CountTransactionsByAccount(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactionsByAccount, accountID).Scan(&n)
	return n, err
}

const clearDefaultAccounts = `UPDATE accounts SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`

func (q *Queries) ClearDefaultAccounts(ctx context.Context, userID, updatedAt string) error {
	_, err := q.db.ExecContext(ctx, clearDefaultAccounts, updatedAt, userID)
	return err
}

const setAccountDefault = `UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ? AND user_id = ?`

func (q *Queries) SetAccountDefault(ctx context.Context, id, userID, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setAccountDefault, updatedAt, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// The increment happens in SQL so concurrent writers never lose an update.
// Rows whose new balance would leave [-limit, limit] are not touched.
const addAccountBalance = `UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = ?
WHERE id = ? AND balance_cents + ? BETWEEN ? AND ?`

func (q *Queries) AddAccountBalance(ctx context.Context, id string, deltaCents, limitCents int64, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, addAccountBalance, deltaCents, updatedAt, id, deltaCents, -limitCents, limitCents)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const accountExists = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = ?)`

func (q *Queries) AccountExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, accountExists, id).Scan(&exists)
	return exists, err
}
