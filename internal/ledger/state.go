// Package ledger holds the authoritative set of saved transactions and the
// summaries derived from it.
//
// State only changes through Reduce, a pure function of the previous state
// and one Action. Store wraps Reduce with locking, durable row writes and a
// background snapshot writer.
package ledger

import (
	"time"

	"moneytracker/internal/core"

	"github.com/shopspring/decimal"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultLanguage is used until a language is chosen.
const DefaultLanguage = "en"

// Budget caps the monthly spending of one category. Spent is derived from
// the transactions of the current month.
type Budget struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
	Spent    decimal.Decimal `json:"spent"`
}

// Remaining is Limit minus Spent and may be negative.
func (b Budget) Remaining() decimal.Decimal {
	return b.Limit.Sub(b.Spent)
}

// Exceeded reports whether the budget is overspent.
func (b Budget) Exceeded() bool {
	return b.Spent.GreaterThan(b.Limit)
}

type State struct {
	Transactions    []core.Transaction         `json:"transactions"`
	Summary         core.Summary               `json:"summary"`
	CurrentMonth    time.Time                  `json:"currentMonth"`
	DefaultCurrency string                     `json:"defaultCurrency"`
	Rates           core.RateTable             `json:"rates,omitempty"`
	Language        string                     `json:"language"`
	Theme           Theme                      `json:"theme"`
	Budgets         []Budget                   `json:"budgets"`
	CategoryBudgets map[string]decimal.Decimal `json:"categoryBudgets"`
}

// NewState returns an empty ledger positioned on the month containing now.
func NewState(defaultCurrency string, now time.Time) State {
	currency := core.NormalizeCurrency(defaultCurrency)
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return State{
		Transactions:    []core.Transaction{},
		Summary:         zeroSummary(),
		CurrentMonth:    core.StartOfMonth(now),
		DefaultCurrency: currency,
		Language:        DefaultLanguage,
		Theme:           ThemeLight,
		Budgets:         []Budget{},
		CategoryBudgets: map[string]decimal.Decimal{},
	}
}

// Find returns the transaction with the given id.
func (s State) Find(id int64) (core.Transaction, bool) {
	if i := indexOf(s.Transactions, id); i >= 0 {
		return s.Transactions[i], true
	}
	return core.Transaction{}, false
}

func indexOf(txs []core.Transaction, id int64) int {
	for i, tx := range txs {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func zeroSummary() core.Summary {
	return core.Summary{Expense: decimal.Zero, Income: decimal.Zero, Total: decimal.Zero}
}

// Filter selects transactions for listing. A zero Month means the current
// month. Search matches note, category or account, ignoring case.
type Filter struct {
	Month  time.Time
	Search string
}

// Select returns the transactions matching f, newest first.
func (s State) Select(f Filter) []core.Transaction {
	month := f.Month
	if month.IsZero() {
		month = s.CurrentMonth
	}
	w := core.WindowFor(month)
	out := make([]core.Transaction, 0)
	for _, tx := range s.Transactions {
		if w.Contains(tx.Date.In(month.Location())) && tx.Matches(f.Search) {
			out = append(out, tx)
		}
	}
	core.SortNewestFirst(out)
	return out
}

// SpentByCategory sums the current month's expenses per category in the
// default currency.
func (s State) SpentByCategory() []core.CategoryAmount {
	return core.SpentByCategory(s.Transactions, s.CurrentMonth, s.DefaultCurrency, s.Rates)
}
