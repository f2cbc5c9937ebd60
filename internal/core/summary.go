package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Summary holds the income/expense totals of a month window.
type Summary struct {
	Expense decimal.Decimal `json:"expense"`
	Income  decimal.Decimal `json:"income"`
	Total   decimal.Decimal `json:"total"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthWindow is the inclusive range from the first to the last instant of
// a calendar month.
type MonthWindow struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns the month window containing t, in t's location.
func WindowFor(t time.Time) MonthWindow {
	start := StartOfMonth(t)
	return MonthWindow{
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}

// Contains reports whether t lies within the window, bounds included.
func (w MonthWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// StartOfMonth truncates t to midnight on the first day of its month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// AddMonths moves t by n calendar months and clamps to the first of the
// month, so month navigation never skips a short month.
func AddMonths(t time.Time, n int) time.Time {
	return StartOfMonth(t).AddDate(0, n, 0)
}

// Summarize computes the summary of txs for the month window containing
// month. Transfers never count, and a transaction whose amount cannot be
// converted to the default currency is left out entirely.
func Summarize(txs []Transaction, month time.Time, defaultCurrency string, rates RateTable) Summary {
	w := WindowFor(month)
	s := Summary{Expense: decimal.Zero, Income: decimal.Zero}
	for _, tx := range txs {
		if !tx.Counts() || !w.Contains(tx.Date.In(month.Location())) {
			continue
		}
		amount, ok := tx.InDefault(defaultCurrency, rates)
		if !ok {
			continue
		}
		switch tx.Type {
		case Expense:
			s.Expense = s.Expense.Add(amount)
		case Income:
			s.Income = s.Income.Add(amount)
		}
	}
	s.Expense = Round(s.Expense)
	s.Income = Round(s.Income)
	s.Total = s.Income.Sub(s.Expense)
	return s
}

// SpentByCategory sums the expenses of the month containing month per
// category, in the default currency, sorted by category name. Expenses
// without a usable rate are left out.
func SpentByCategory(txs []Transaction, month time.Time, defaultCurrency string, rates RateTable) []CategoryAmount {
	w := WindowFor(month)
	totals := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Type != Expense || !w.Contains(tx.Date.In(month.Location())) {
			continue
		}
		amount, ok := tx.InDefault(defaultCurrency, rates)
		if !ok {
			continue
		}
		totals[tx.Category] = totals[tx.Category].Add(amount)
	}
	return SortedAmounts(totals)
}

// SortedAmounts turns per-category totals into a slice sorted by name,
// rounding each amount.
func SortedAmounts(totals map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, CategoryAmount{Name: name, Amount: Round(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SortNewestFirst orders txs by date, newest first, breaking ties by
// descending ID.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID > txs[j].ID
	})
}
