package storage

import (
	"context"
	"strings"
)

const transactionColumns = `id, user_id, account_id, type, amount_cents, description, date, category, receipt_url,
is_recurring, recurring_interval, next_recurring_date, last_processed, status, created_at, updated_at`

func transactionDest(t *Transaction) []interface{} {
	return []interface{}{
		&t.ID, &t.UserID, &t.AccountID, &t.Type, &t.AmountCents, &t.Description, &t.Date, &t.Category,
		&t.ReceiptUrl, &t.IsRecurring, &t.RecurringInterval, &t.NextRecurringDate, &t.LastProcessed,
		&t.Status, &t.CreatedAt, &t.UpdatedAt,
	}
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	err := row.Scan(transactionDest(&t)...)
	return t, err
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

func (q *Queries) CreateTransaction(ctx context.Context, arg Transaction) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, createTransaction,
		arg.ID, arg.UserID, arg.AccountID, arg.Type, arg.AmountCents, arg.Description, arg.Date, arg.Category,
		arg.ReceiptUrl, arg.IsRecurring, arg.RecurringInterval, arg.NextRecurringDate, arg.LastProcessed,
		arg.Status, arg.CreatedAt, arg.UpdatedAt))
}

const getTransactionForUser = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND user_id = ?`

func (q *Queries) GetTransactionForUser(ctx context.Context, id, userID string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransactionForUser, id, userID))
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const updateTransaction = `UPDATE transactions
SET account_id = ?, type = ?, amount_cents = ?, description = ?, date = ?, category = ?, receipt_url = ?,
    is_recurring = ?, recurring_interval = ?, next_recurring_date = ?, status = ?, updated_at = ?
WHERE id = ? AND user_id = ?
RETURNING ` + transactionColumns

func (q *Queries) UpdateTransaction(ctx context.Context, arg Transaction) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, updateTransaction,
		arg.AccountID, arg.Type, arg.AmountCents, arg.Description, arg.Date, arg.Category, arg.ReceiptUrl,
		arg.IsRecurring, arg.RecurringInterval, arg.NextRecurringDate, arg.Status, arg.UpdatedAt,
		arg.ID, arg.UserID))
}

const deleteTransactionForUser = `DELETE FROM transactions WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteTransactionForUser(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransactionForUser, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func inClause(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

func idArgs(userID string, ids []string) []interface{} {
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

func (q *Queries) ListTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? AND id IN ` + inClause(len(ids)) + ` ORDER BY rowid`
	return q.queryTransactions(ctx, query, idArgs(userID, ids)...)
}

func (q *Queries) DeleteTransactionsByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM transactions WHERE user_id = ? AND id IN ` + inClause(len(ids))
	res, err := q.db.ExecContext(ctx, query, idArgs(userID, ids)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listTransactionsByAccount = `SELECT ` + transactionColumns + ` FROM transactions
WHERE account_id = ? ORDER BY date DESC, created_at DESC`

func (q *Queries) ListTransactionsByAccount(ctx context.Context, accountID string) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactionsByAccount, accountID)
}

const listDueRecurring = `SELECT ` + transactionColumns + ` FROM transactions
WHERE is_recurring = 1 AND next_recurring_date IS NOT NULL AND next_recurring_date <= ?
ORDER BY next_recurring_date`

func (q *Queries) ListDueRecurring(ctx context.Context, now string) ([]Transaction, error) {
	return q.queryTransactions(ctx, listDueRecurring, now)
}

const advanceRecurring = `UPDATE transactions SET next_recurring_date = ?, last_processed = ?, updated_at = ? WHERE id = ?`

func (q *Queries) AdvanceRecurring(ctx context.Context, id, next, processed string) error {
	_, err := q.db.ExecContext(ctx, advanceRecurring, next, processed, processed, id)
	return err
}

const sumExpenses = `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
WHERE user_id = ? AND account_id = ? AND type = 'EXPENSE' AND date >= ? AND date < ?`

func (q *Queries) SumExpenses(ctx context.Context, userID, accountID, from, to string) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, sumExpenses, userID, accountID, from, to).Scan(&total)
	return total, err
}

func prefixColumns(alias, columns string) string {
	names := strings.Fields(strings.ReplaceAll(columns, ",", " "))
	return alias + "." + strings.Join(names, ", "+alias+".")
}

// ListTransactionsFilter mirrors core.TransactionFilter with storage encodings.
type ListTransactionsFilter struct {
	UserID    string
	AccountID string
	Type      string
	From      string
	To        string
	Recurring *bool
}

type ListTransactionsRow struct {
	Transaction Transaction
	Account     Account
}

func (q *Queries) ListTransactions(ctx context.Context, f ListTransactionsFilter) ([]ListTransactionsRow, error) {
	var (
		where = []string{"t.user_id = ?"}
		args  = []interface{}{f.UserID}
	)
	if f.AccountID != "" {
		where = append(where, "t.account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		where = append(where, "t.type = ?")
		args = append(args, f.Type)
	}
	if f.From != "" {
		where = append(where, "t.date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "t.date <= ?")
		args = append(args, f.To)
	}
	if f.Recurring != nil {
		where = append(where, "t.is_recurring = ?")
		args = append(args, boolInt(*f.Recurring))
	}

	query := `SELECT ` + prefixColumns("t", transactionColumns) + `, ` + prefixColumns("a", accountColumns) + `
FROM transactions t JOIN accounts a ON a.id = t.account_id
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY t.date DESC, t.created_at DESC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListTransactionsRow
	for rows.Next() {
		var i ListTransactionsRow
		dest := append(transactionDest(&i.Transaction),
			&i.Account.ID, &i.Account.UserID, &i.Account.Name, &i.Account.Type, &i.Account.BalanceCents,
			&i.Account.IsDefault, &i.Account.CreatedAt, &i.Account.UpdatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
