package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income   TransactionType = "INCOME"
	Expense  TransactionType = "EXPENSE"
	Transfer TransactionType = "TRANSFER"
)

// TransferCategory is stored as the category of every transfer.
const TransferCategory = "Transfer"

type (
	TransactionType string

	Transaction struct {
		ID              int64            `json:"id"`
		Amount          decimal.Decimal  `json:"amount"`
		Currency        string           `json:"currency"`
		ConvertedAmount *decimal.Decimal `json:"convertedAmount,omitempty"`
		Type            TransactionType  `json:"type"`
		Category        string           `json:"category"`
		Account         string           `json:"account"`             // source account for transfers
		ToAccount       string           `json:"toAccount,omitempty"` // transfers only
		Note            string           `json:"note,omitempty"`
		Date            time.Time        `json:"date"`
		LastModified    time.Time        `json:"lastModified"`
	}
)

var (
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAmountTooLarge     = errors.New("amount too large")
	ErrEmptyAccount       = errors.New("empty account")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyToAccount     = errors.New("empty destination account")
	ErrSameAccount        = errors.New("source and destination account are the same")
	ErrUnexpectedTransfer = errors.New("destination account set on a non-transfer")
	ErrZeroDate           = errors.New("date cannot be zero")
	ErrMissingCurrency    = errors.New("missing currency")
)

// IsValid reports whether t is one of the three known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType accepts any casing of the three type names.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (tx Transaction) Validate() error {
	if !tx.Type.IsValid() {
		return ErrInvalidType
	}
	if err := ValidateAmount(tx.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(tx.Currency) == "" {
		return ErrMissingCurrency
	}
	if tx.Date.IsZero() {
		return ErrZeroDate
	}
	if strings.TrimSpace(tx.Account) == "" {
		return ErrEmptyAccount
	}

	if tx.Type == Transfer {
		if strings.TrimSpace(tx.ToAccount) == "" {
			return ErrEmptyToAccount
		}
		if tx.Account == tx.ToAccount {
			return ErrSameAccount
		}
		return nil
	}

	if strings.TrimSpace(tx.Category) == "" {
		return ErrEmptyCategory
	}
	if tx.ToAccount != "" {
		return ErrUnexpectedTransfer
	}
	return nil
}

// Counts reports whether the transaction takes part in income/expense accounting.
func (tx Transaction) Counts() bool {
	return tx.Type == Income || tx.Type == Expense
}

// Matches reports whether term occurs, case-insensitively, in the note,
// category or account. An empty term matches everything.
func (tx Transaction) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(tx.Note), term) ||
		strings.Contains(strings.ToLower(tx.Category), term) ||
		strings.Contains(strings.ToLower(tx.Account), term)
}
