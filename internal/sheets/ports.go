// Package sheets defines the spreadsheet mirror that the worker keeps in
// step with the transaction table.
package sheets

import (
	"context"

	"moneytracker/internal/core"
)

// Ports for outbound adapters. Rows are keyed by transaction ID.
type (
	TransactionWriter interface {
		// Upsert writes tx, replacing the row with the same ID if present.
		Upsert(ctx context.Context, tx core.Transaction) error
	}

	TransactionDeleter interface {
		// Delete removes the row with id. Missing rows are not an error.
		Delete(ctx context.Context, id int64) error
	}

	TransactionLister interface {
		// ListIDs returns the IDs of every mirrored row.
		ListIDs(ctx context.Context) ([]int64, error)
	}

	Exporter interface {
		TransactionWriter
		TransactionDeleter
		TransactionLister
	}
)
