package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/entry"
	"moneytracker/internal/ledger"
	"moneytracker/internal/log"

	"github.com/shopspring/decimal"
)

type summaryView struct {
	Month           string                     `json:"month"`
	DefaultCurrency string                     `json:"defaultCurrency"`
	Summary         core.Summary               `json:"summary"`
	SpentByCategory []core.CategoryAmount      `json:"spentByCategory"`
	Budgets         []budgetView               `json:"budgets"`
	CategoryBudgets map[string]decimal.Decimal `json:"categoryBudgets"`
}

type budgetView struct {
	ledger.Budget
	Remaining decimal.Decimal `json:"remaining"`
	Exceeded  bool            `json:"exceeded"`
}

type budgetList struct {
	Budgets         []budgetView               `json:"budgets"`
	CategoryBudgets map[string]decimal.Decimal `json:"categoryBudgets"`
}

type preferences struct {
	Language        string       `json:"language"`
	Theme           ledger.Theme `json:"theme"`
	DefaultCurrency string       `json:"defaultCurrency"`
}

type catalog struct {
	Accounts    []string                          `json:"accounts"`
	Categories  map[core.TransactionType][]string `json:"categories"`
	PaymentApps []entry.PaymentApp                `json:"paymentApps"`
	Launch      map[string]entry.LaunchTarget     `json:"launch"`
}

func budgetViews(budgets []ledger.Budget) []budgetView {
	out := make([]budgetView, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, budgetView{Budget: b, Remaining: b.Remaining(), Exceeded: b.Exceeded()})
	}
	return out
}

func newSummaryView(state ledger.State) summaryView {
	return summaryView{
		Month:           state.CurrentMonth.Format(monthLayout),
		DefaultCurrency: state.DefaultCurrency,
		Summary:         state.Summary,
		SpentByCategory: state.SpentByCategory(),
		Budgets:         budgetViews(state.Budgets),
		CategoryBudgets: state.CategoryBudgets,
	}
}

// writeState answers with the summary of state, or with the error of the
// dispatch that produced it.
func writeState(w http.ResponseWriter, r *http.Request, a ledger.Action, state ledger.State, err error) {
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger action failed",
			"action", a.Name(), log.FieldError, err)
		errorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Body(newSummaryView(state)).Write(w)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, a ledger.Action) {
	state, err := s.ledger.Dispatch(r.Context(), a)
	writeState(w, r, a, state, err)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(newSummaryView(s.ledger.State())).Write(w)
}

func (s *Server) handleSetMonth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Month string `json:"month"`
	}
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	month, err := ParseMonth(body.Month, time.Local)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.dispatch(w, r, ledger.SetMonth{Month: month})
}

func (s *Server) handleNextMonth(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, ledger.NextMonth{})
}

func (s *Server) handlePreviousMonth(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, ledger.PreviousMonth{})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	state := s.ledger.State()
	NewJSONResponse().Body(budgetList{
		Budgets:         budgetViews(state.Budgets),
		CategoryBudgets: state.CategoryBudgets,
	}).Write(w)
}

func (s *Server) handleAddBudget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Limit    string `json:"limit"`
	}
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	category := sanitizeInput(body.Category)
	if category == "" {
		UnprocessableEntityError("category is required").Write(w)
		return
	}
	limit, err := ParseLimit(body.Limit)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if limit.IsZero() {
		UnprocessableEntityError("limit must be greater than zero").Write(w)
		return
	}
	name := sanitizeInput(body.Name)
	if name == "" {
		name = category
	}

	a := ledger.AddBudget{Budget: ledger.Budget{Name: name, Category: category, Limit: limit}}
	state, err := s.ledger.Dispatch(r.Context(), a)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	created := state.Budgets[len(state.Budgets)-1]
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(budgetView{Budget: created, Remaining: created.Remaining(), Exceeded: created.Exceeded()}).
		Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found := false
	for _, b := range s.ledger.State().Budgets {
		if b.ID == id {
			found = true
			break
		}
	}
	if !found {
		NotFoundError(fmt.Sprintf("budget %q not found", id)).Write(w)
		return
	}
	if _, err := s.ledger.Dispatch(r.Context(), ledger.DeleteBudget{ID: id}); err != nil {
		errorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleSetCategoryBudget sets one category's limit. A zero limit removes
// it.
func (s *Server) handleSetCategoryBudget(w http.ResponseWriter, r *http.Request) {
	category := sanitizeInput(r.PathValue("category"))
	if category == "" {
		BadRequestError("category is required").Write(w)
		return
	}
	var body struct {
		Limit string `json:"limit"`
	}
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	limit, err := ParseLimit(body.Limit)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	state, err := s.ledger.Dispatch(r.Context(), ledger.UpdateCategoryBudget{Category: category, Limit: limit})
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Body(budgetList{
		Budgets:         budgetViews(state.Budgets),
		CategoryBudgets: state.CategoryBudgets,
	}).Write(w)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	state := s.ledger.State()
	NewJSONResponse().Body(preferences{
		Language:        state.Language,
		Theme:           state.Theme,
		DefaultCurrency: state.DefaultCurrency,
	}).Write(w)
}

// handleSetPreferences applies the fields present in the body. Each field
// is its own ledger action.
func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var body preferences
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var actions []ledger.Action
	if l := sanitizeInput(body.Language); l != "" {
		actions = append(actions, ledger.SetLanguage{Language: l})
	}
	if body.Theme != "" {
		theme := ledger.Theme(strings.ToLower(string(body.Theme)))
		if theme != ledger.ThemeLight && theme != ledger.ThemeDark {
			UnprocessableEntityError(fmt.Sprintf("unknown theme %q", body.Theme)).Write(w)
			return
		}
		actions = append(actions, ledger.SetTheme{Theme: theme})
	}
	if c := core.NormalizeCurrency(body.DefaultCurrency); c != "" {
		actions = append(actions, ledger.SetDefaultCurrency{Currency: c})
	}

	for _, a := range actions {
		if _, err := s.ledger.Dispatch(r.Context(), a); err != nil {
			errorResponse(err).Write(w)
			return
		}
	}
	s.handleGetPreferences(w, r)
}

func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RefreshRates(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rates refresh failed", log.FieldError, err)
		errorResponse(err).Write(w)
		return
	}
	state := s.ledger.State()
	NewJSONResponse().Body(map[string]any{
		"defaultCurrency": state.DefaultCurrency,
		"rates":           state.Rates,
	}).Write(w)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	launch := make(map[string]entry.LaunchTarget, len(entry.PaymentApps))
	for _, app := range entry.PaymentApps {
		launch[app.ID] = app.Target(s.platform)
	}
	NewJSONResponse().Body(catalog{
		Accounts:    entry.Accounts,
		Categories:  entry.DefaultCategories(),
		PaymentApps: entry.PaymentApps,
		Launch:      launch,
	}).Write(w)
}
