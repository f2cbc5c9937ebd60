package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/log"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("transaction not found")

// dateLayout is fixed-width so that text comparison orders like time.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert writes a new row. A zero ID lets the table assign one; the
// resulting ID is returned either way.
func (r *SQLiteRepository) Insert(ctx context.Context, tx core.Transaction) (int64, error) {
	params := toParams(tx)
	id := tx.ID
	var err error
	if id == 0 {
		id, err = r.queries.CreateTransaction(ctx, params)
	} else {
		err = r.queries.CreateTransactionWithID(ctx, id, params)
	}
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		log.NewFields().WithTransaction(id, tx.Type.String(), tx.Amount, tx.Currency).ToSlice()...)
	return id, nil
}

// Update replaces the row with tx.ID.
func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) error {
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{ID: tx.ID, CreateTransactionParams: toParams(tx)})
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update transaction %d: %w", tx.ID, ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Transaction updated in SQLite", log.FieldTransactionID, tx.ID)
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete transaction %d: %w", id, ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Transaction deleted from SQLite", log.FieldTransactionID, id)
	return nil
}

// Clear removes every row.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if err := r.queries.DeleteAllTransactions(ctx); err != nil {
		return fmt.Errorf("delete all transactions: %w", err)
	}
	r.logger.WarnContext(ctx, "All transactions deleted from SQLite")
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return fromRow(row)
}

// List returns every row, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return fromRows(rows)
}

func toParams(tx core.Transaction) CreateTransactionParams {
	var converted decimal.NullDecimal
	if tx.ConvertedAmount != nil {
		converted = decimal.NewNullDecimal(*tx.ConvertedAmount)
	}
	return CreateTransactionParams{
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		ConvertedAmount: converted,
		Type:            tx.Type.String(),
		Category:        tx.Category,
		Account:         tx.Account,
		ToAccount:       tx.ToAccount,
		Note:            tx.Note,
		Date:            formatDate(tx.Date),
		LastModified:    formatDate(tx.LastModified),
	}
}

func fromRows(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func fromRow(row Transaction) (core.Transaction, error) {
	date, err := parseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: bad date %q: %w", row.ID, row.Date, err)
	}
	tx := core.Transaction{
		ID:        row.ID,
		Amount:    core.Round(row.Amount),
		Currency:  row.Currency,
		Type:      core.TransactionType(row.Type),
		Category:  row.Category,
		Account:   row.Account,
		ToAccount: row.ToAccount,
		Note:      row.Note,
		Date:      date,
	}
	if row.ConvertedAmount.Valid {
		converted := core.Round(row.ConvertedAmount.Decimal)
		tx.ConvertedAmount = &converted
	}
	// Rows written before last_modified existed carry an empty string.
	if row.LastModified != "" {
		if tx.LastModified, err = parseDate(row.LastModified); err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %d: bad last_modified %q: %w", row.ID, row.LastModified, err)
		}
	}
	return tx, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
