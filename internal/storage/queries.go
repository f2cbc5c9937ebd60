package storage

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Transaction is a row of the transactions table.
type Transaction struct {
	ID              int64
	Amount          decimal.Decimal
	Currency        string
	ConvertedAmount decimal.NullDecimal
	Type            string
	Category        string
	Account         string
	ToAccount       string
	Note            string
	Date            string
	LastModified    string
}

const transactionColumns = `id, amount, currency, converted_amount, type, category, account, to_account, note, date, last_modified`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.Amount,
		&t.Currency,
		&t.ConvertedAmount,
		&t.Type,
		&t.Category,
		&t.Account,
		&t.ToAccount,
		&t.Note,
		&t.Date,
		&t.LastModified,
	)
	return t, err
}

const createTransaction = `
INSERT INTO transactions (amount, currency, converted_amount, type, category, account, to_account, note, date, last_modified)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateTransactionParams struct {
	Amount          decimal.Decimal
	Currency        string
	ConvertedAmount decimal.NullDecimal
	Type            string
	Category        string
	Account         string
	ToAccount       string
	Note            string
	Date            string
	LastModified    string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Amount.StringFixed(2),
		arg.Currency,
		nullAmount(arg.ConvertedAmount),
		arg.Type,
		arg.Category,
		arg.Account,
		arg.ToAccount,
		arg.Note,
		arg.Date,
		arg.LastModified,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createTransactionWithID = `
INSERT INTO transactions (id, amount, currency, converted_amount, type, category, account, to_account, note, date, last_modified)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransactionWithID(ctx context.Context, id int64, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransactionWithID,
		id,
		arg.Amount.StringFixed(2),
		arg.Currency,
		nullAmount(arg.ConvertedAmount),
		arg.Type,
		arg.Category,
		arg.Account,
		arg.ToAccount,
		arg.Note,
		arg.Date,
		arg.LastModified,
	)
	return err
}

const updateTransaction = `
UPDATE transactions
SET amount = ?, currency = ?, converted_amount = ?, type = ?, category = ?, account = ?,
    to_account = ?, note = ?, date = ?, last_modified = ?
WHERE id = ?`

type UpdateTransactionParams struct {
	ID int64
	CreateTransactionParams
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Amount.StringFixed(2),
		arg.Currency,
		nullAmount(arg.ConvertedAmount),
		arg.Type,
		arg.Category,
		arg.Account,
		arg.ToAccount,
		arg.Note,
		arg.Date,
		arg.LastModified,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAllTransactions = `DELETE FROM transactions`

func (q *Queries) DeleteAllTransactions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllTransactions)
	return err
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY date DESC, id DESC`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return q.list(ctx, listTransactions)
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]Transaction, error) {
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
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func nullAmount(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.StringFixed(2)
}
