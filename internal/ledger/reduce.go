package ledger

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"moneytracker/internal/core"

	"github.com/shopspring/decimal"
)

// Reduce returns the state that follows s after a. It never modifies s:
// slices and maps that change are copied first.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case AddTransaction:
		s.Transactions = append(slices.Clone(s.Transactions), a.Transaction)
		return recompute(s)

	case EditTransaction:
		i := indexOf(s.Transactions, a.ID)
		if i < 0 {
			return s
		}
		s.Transactions = slices.Clone(s.Transactions)
		tx := a.Transaction
		tx.ID = a.ID
		s.Transactions[i] = tx
		return recompute(s)

	case DeleteTransaction:
		i := indexOf(s.Transactions, a.ID)
		if i < 0 {
			return s
		}
		s.Transactions = slices.Delete(slices.Clone(s.Transactions), i, i+1)
		return recompute(s)

	case LoadTransactions:
		s.Transactions = slices.Clone(a.Transactions)
		if s.Transactions == nil {
			s.Transactions = []core.Transaction{}
		}
		return recompute(s)

	case SetMonth:
		s.CurrentMonth = core.StartOfMonth(a.Month)
		return recompute(s)

	case NextMonth:
		s.CurrentMonth = core.AddMonths(s.CurrentMonth, 1)
		return recompute(s)

	case PreviousMonth:
		s.CurrentMonth = core.AddMonths(s.CurrentMonth, -1)
		return recompute(s)

	case ClearTransactions:
		s.Transactions = []core.Transaction{}
		s.Summary = zeroSummary()
		s.Budgets = withSpending(s.Budgets, nil)
		return s

	case LoadState:
		return recompute(normalize(a.State, s))

	case SetDefaultCurrency:
		if c := core.NormalizeCurrency(a.Currency); c != "" {
			s.DefaultCurrency = c
		}
		return recompute(s)

	case SetRates:
		s.Rates = a.Rates.Clone()
		return recompute(s)

	case SetLanguage:
		if l := strings.TrimSpace(a.Language); l != "" {
			s.Language = l
		}
		return s

	case SetTheme:
		s.Theme = a.Theme
		return s

	case AddBudget:
		s.Budgets = append(slices.Clone(s.Budgets), a.Budget)
		return recompute(s)

	case UpdateBudgets:
		s.Budgets = slices.Clone(a.Budgets)
		if s.Budgets == nil {
			s.Budgets = []Budget{}
		}
		return recompute(s)

	case DeleteBudget:
		s.Budgets = slices.DeleteFunc(slices.Clone(s.Budgets), func(b Budget) bool { return b.ID == a.ID })
		return s

	case UpdateBudgetSpending:
		return recompute(s)

	case UpdateCategoryBudget:
		category := strings.TrimSpace(a.Category)
		if category == "" {
			return s
		}
		s.CategoryBudgets = maps.Clone(s.CategoryBudgets)
		if s.CategoryBudgets == nil {
			s.CategoryBudgets = map[string]decimal.Decimal{}
		}
		if a.Limit.Sign() <= 0 {
			delete(s.CategoryBudgets, category)
		} else {
			s.CategoryBudgets[category] = core.Round(a.Limit)
		}
		return s

	case LoadCategoryBudgets:
		s.CategoryBudgets = maps.Clone(a.Budgets)
		if s.CategoryBudgets == nil {
			s.CategoryBudgets = map[string]decimal.Decimal{}
		}
		return s

	default:
		panic(fmt.Sprintf("ledger: unhandled action %T", a))
	}
}

// recompute refreshes everything derived from the transactions: the month
// summary and the spending of each budget.
func recompute(s State) State {
	s.Summary = core.Summarize(s.Transactions, s.CurrentMonth, s.DefaultCurrency, s.Rates)
	s.Budgets = withSpending(s.Budgets, s.SpentByCategory())
	return s
}

func withSpending(budgets []Budget, spent []core.CategoryAmount) []Budget {
	if len(budgets) == 0 {
		return budgets
	}
	byCategory := make(map[string]decimal.Decimal, len(spent))
	for _, c := range spent {
		byCategory[c.Name] = c.Amount
	}
	out := make([]Budget, len(budgets))
	for i, b := range budgets {
		b.Spent = byCategory[b.Category]
		out[i] = b
	}
	return out
}

// normalize fills the zero fields of a restored state from fallback.
func normalize(s, fallback State) State {
	if s.Transactions == nil {
		s.Transactions = []core.Transaction{}
	}
	if s.CurrentMonth.IsZero() {
		s.CurrentMonth = fallback.CurrentMonth
	}
	s.CurrentMonth = core.StartOfMonth(s.CurrentMonth)
	if s.DefaultCurrency = core.NormalizeCurrency(s.DefaultCurrency); s.DefaultCurrency == "" {
		s.DefaultCurrency = fallback.DefaultCurrency
	}
	if s.Language == "" {
		s.Language = fallback.Language
	}
	if s.Theme == "" {
		s.Theme = fallback.Theme
	}
	if s.Budgets == nil {
		s.Budgets = []Budget{}
	}
	if s.CategoryBudgets == nil {
		s.CategoryBudgets = map[string]decimal.Decimal{}
	}
	return s
}
