package ledger

import (
	"time"

	"moneytracker/internal/core"

	"github.com/shopspring/decimal"
)

// Action is one ledger transition. The set is closed: only types in this
// package implement it.
type Action interface {
	action()
	Name() string
}

type (
	AddTransaction struct {
		Transaction core.Transaction
	}

	// EditTransaction replaces the transaction with ID. Unknown IDs are ignored.
	EditTransaction struct {
		ID          int64
		Transaction core.Transaction
	}

	DeleteTransaction struct {
		ID int64
	}

	// LoadTransactions replaces the whole transaction set.
	LoadTransactions struct {
		Transactions []core.Transaction
	}

	// SetMonth moves the month cursor to the month containing Month.
	SetMonth struct {
		Month time.Time
	}

	NextMonth struct{}

	PreviousMonth struct{}

	ClearTransactions struct{}

	// LoadState replaces the whole state, as restored at startup.
	LoadState struct {
		State State
	}

	SetDefaultCurrency struct {
		Currency string
	}

	SetRates struct {
		Rates core.RateTable
	}

	SetLanguage struct {
		Language string
	}

	SetTheme struct {
		Theme Theme
	}

	AddBudget struct {
		Budget Budget
	}

	UpdateBudgets struct {
		Budgets []Budget
	}

	DeleteBudget struct {
		ID string
	}

	// UpdateBudgetSpending recomputes Spent for every budget.
	UpdateBudgetSpending struct{}

	// UpdateCategoryBudget sets the limit of one category; a zero limit
	// removes it.
	UpdateCategoryBudget struct {
		Category string
		Limit    decimal.Decimal
	}

	LoadCategoryBudgets struct {
		Budgets map[string]decimal.Decimal
	}
)

func (AddTransaction) action()       {}
func (EditTransaction) action()      {}
func (DeleteTransaction) action()    {}
func (LoadTransactions) action()     {}
func (SetMonth) action()             {}
func (NextMonth) action()            {}
func (PreviousMonth) action()        {}
func (ClearTransactions) action()    {}
func (LoadState) action()            {}
func (SetDefaultCurrency) action()   {}
func (SetRates) action()             {}
func (SetLanguage) action()          {}
func (SetTheme) action()             {}
func (AddBudget) action()            {}
func (UpdateBudgets) action()        {}
func (DeleteBudget) action()         {}
func (UpdateBudgetSpending) action() {}
func (UpdateCategoryBudget) action() {}
func (LoadCategoryBudgets) action()  {}

func (AddTransaction) Name() string       { return "ADD_TRANSACTION" }
func (EditTransaction) Name() string      { return "EDIT_TRANSACTION" }
func (DeleteTransaction) Name() string    { return "DELETE_TRANSACTION" }
func (LoadTransactions) Name() string     { return "LOAD_TRANSACTIONS" }
func (SetMonth) Name() string             { return "SET_MONTH" }
func (NextMonth) Name() string            { return "NEXT_MONTH" }
func (PreviousMonth) Name() string        { return "PREVIOUS_MONTH" }
func (ClearTransactions) Name() string    { return "CLEAR_TRANSACTIONS" }
func (LoadState) Name() string            { return "LOAD_STATE" }
func (SetDefaultCurrency) Name() string   { return "SET_DEFAULT_CURRENCY" }
func (SetRates) Name() string             { return "SET_RATES" }
func (SetLanguage) Name() string          { return "SET_LANGUAGE" }
func (SetTheme) Name() string             { return "SET_THEME" }
func (AddBudget) Name() string            { return "ADD_BUDGET" }
func (UpdateBudgets) Name() string        { return "UPDATE_BUDGETS" }
func (DeleteBudget) Name() string         { return "DELETE_BUDGET" }
func (UpdateBudgetSpending) Name() string { return "UPDATE_BUDGET_SPENDING" }
func (UpdateCategoryBudget) Name() string { return "UPDATE_CATEGORY_BUDGET" }
func (LoadCategoryBudgets) Name() string  { return "LOAD_CATEGORY_BUDGETS" }
