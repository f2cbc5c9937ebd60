package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/entry"
	"moneytracker/internal/ledger"

	"github.com/shopspring/decimal"
)

// draftFlags are the draft edits shared by add and edit.
type draftFlags struct {
	Type     string `short:"t" help:"income, expense or transfer."`
	Keys     string `short:"k" help:"Keypad sequence, e.g. 12.5+3=."`
	Amount   string `short:"a" help:"Amount, replacing any keypad input."`
	Category string `short:"c" help:"Category."`
	Account  string `help:"Account for income and expenses."`
	From     string `help:"Source account of a transfer."`
	To       string `help:"Destination account of a transfer."`
	Note     string `short:"n" help:"Free-form note."`
	Date     string `short:"d" help:"Date as YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"."`
	Payment  string `short:"p" help:"Payment for a new expense: cash, gpay, phonepe or paytm."`
}

func (f draftFlags) input() entry.Input {
	in := entry.Input{
		Type:        f.Type,
		Keys:        f.Keys,
		Amount:      f.Amount,
		Category:    f.Category,
		Account:     f.Account,
		FromAccount: f.From,
		ToAccount:   f.To,
		Date:        f.Date,
		Payment:     f.Payment,
	}
	if f.Note != "" {
		note := f.Note
		in.Note = &note
	}
	return in
}

type addCmd struct {
	Draft draftFlags `embed:""`
}

func (c *addCmd) Run(a *app) error {
	var stored core.Transaction
	m := entry.New(a.entryConfig(func(ctx context.Context, tx core.Transaction) error {
		var err error
		stored, err = a.ledger.Add(ctx, tx)
		return err
	}))

	res, err := entry.Submit(a.ctx, m, c.Draft.input())
	m.WaitLaunches()
	if errors.Is(err, entry.ErrPaymentRequired) {
		return fmt.Errorf("%w: pass --payment cash or one of %s", err, strings.Join(paymentAppIDs(), ", "))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Saved transaction %d\n", stored.ID)
	renderTransactions(a.out, []core.Transaction{stored})
	if res.Launch != nil {
		renderLaunch(a.out, *res.Launch)
	}
	return nil
}

type editCmd struct {
	ID        int64 `arg:"" help:"Transaction ID."`
	ClearNote bool  `help:"Remove the saved note."`

	Draft draftFlags `embed:""`
}

func (c *editCmd) Run(a *app) error {
	current, err := a.ledger.Get(c.ID)
	if err != nil {
		return err
	}
	m, err := entry.NewForEdit(a.entryConfig(a.ledger.Save), current)
	if err != nil {
		return err
	}
	in := c.Draft.input()
	if c.ClearNote {
		if in.Note != nil {
			return errors.New("--clear-note and --note are mutually exclusive")
		}
		empty := ""
		in.Note = &empty
	}
	res, err := entry.Submit(a.ctx, m, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated transaction %d\n", res.Transaction.ID)
	renderTransactions(a.out, []core.Transaction{res.Transaction})
	return nil
}

type deleteCmd struct {
	ID int64 `arg:"" help:"Transaction ID."`
}

func (c *deleteCmd) Run(a *app) error {
	if err := a.ledger.Delete(a.ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted transaction %d\n", c.ID)
	return nil
}

type listCmd struct {
	Month  string `short:"m" help:"Month as YYYY-MM. Defaults to the current month."`
	Search string `short:"s" help:"Match note, category or account."`
}

func (c *listCmd) Run(a *app) error {
	f := ledger.Filter{Search: strings.TrimSpace(c.Search)}
	if c.Month != "" {
		month, err := parseMonth(c.Month)
		if err != nil {
			return err
		}
		f.Month = month
	}
	txs := a.ledger.Transactions(f)
	if len(txs) == 0 {
		fmt.Fprintln(a.out, "No transactions.")
		return nil
	}
	renderTransactions(a.out, txs)
	return nil
}

type summaryCmd struct {
	Month string `short:"m" help:"Month as YYYY-MM. Defaults to the current month."`
}

func (c *summaryCmd) Run(a *app) error {
	state := a.ledger.State()
	if c.Month != "" {
		month, err := parseMonth(c.Month)
		if err != nil {
			return err
		}
		if state, err = a.ledger.Dispatch(a.ctx, ledger.SetMonth{Month: month}); err != nil {
			return err
		}
	}
	renderSummary(a.out, state)
	return nil
}

type monthCmd struct {
	Target string `arg:"" help:"YYYY-MM, next or previous."`
}

func (c *monthCmd) Run(a *app) error {
	var action ledger.Action
	switch t := strings.ToLower(strings.TrimSpace(c.Target)); t {
	case "next":
		action = ledger.NextMonth{}
	case "previous", "prev":
		action = ledger.PreviousMonth{}
	default:
		month, err := parseMonth(t)
		if err != nil {
			return err
		}
		action = ledger.SetMonth{Month: month}
	}
	state, err := a.ledger.Dispatch(a.ctx, action)
	if err != nil {
		return err
	}
	renderSummary(a.out, state)
	return nil
}

type calcCmd struct {
	Keys string `arg:"" help:"Keypad sequence, e.g. \"12.5+3=\"."`
}

func (c *calcCmd) Run(a *app) error {
	m := entry.New(a.entryConfig(nil))
	if err := m.Type(c.Keys); err != nil {
		return err
	}
	d := m.Draft()
	if d.ExpressionText != "" {
		fmt.Fprintf(a.out, "%s %s\n", d.ExpressionText, d.AmountText)
		return nil
	}
	fmt.Fprintln(a.out, d.AmountText)
	return nil
}

type budgetCmd struct {
	List        budgetListCmd        `cmd:"" help:"List budgets and category limits."`
	Add         budgetAddCmd         `cmd:"" help:"Add a monthly budget for a category."`
	Delete      budgetDeleteCmd      `cmd:"" help:"Delete a budget."`
	SetCategory budgetSetCategoryCmd `cmd:"" name:"set-category" help:"Set a category limit; 0 removes it."`
}

type budgetListCmd struct{}

func (c *budgetListCmd) Run(a *app) error {
	state := a.ledger.State()
	renderBudgets(a.out, state.Budgets)
	renderCategoryBudgets(a.out, state.CategoryBudgets)
	return nil
}

type budgetAddCmd struct {
	Category string `arg:"" help:"Category to cap."`
	Limit    string `arg:"" help:"Monthly limit."`
	Name     string `help:"Display name. Defaults to the category."`
}

func (c *budgetAddCmd) Run(a *app) error {
	limit, err := parseLimit(c.Limit)
	if err != nil {
		return err
	}
	if limit.IsZero() {
		return errors.New("limit must be greater than zero")
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = c.Category
	}
	state, err := a.ledger.Dispatch(a.ctx, ledger.AddBudget{Budget: ledger.Budget{
		Name:     name,
		Category: strings.TrimSpace(c.Category),
		Limit:    limit,
	}})
	if err != nil {
		return err
	}
	renderBudgets(a.out, state.Budgets)
	return nil
}

type budgetDeleteCmd struct {
	ID string `arg:"" help:"Budget ID."`
}

func (c *budgetDeleteCmd) Run(a *app) error {
	for _, b := range a.ledger.State().Budgets {
		if b.ID == c.ID {
			_, err := a.ledger.Dispatch(a.ctx, ledger.DeleteBudget{ID: c.ID})
			return err
		}
	}
	return fmt.Errorf("budget %q not found", c.ID)
}

type budgetSetCategoryCmd struct {
	Category string `arg:"" help:"Category."`
	Limit    string `arg:"" help:"Monthly limit; 0 removes it."`
}

func (c *budgetSetCategoryCmd) Run(a *app) error {
	limit, err := parseLimit(c.Limit)
	if err != nil {
		return err
	}
	state, err := a.ledger.Dispatch(a.ctx, ledger.UpdateCategoryBudget{Category: c.Category, Limit: limit})
	if err != nil {
		return err
	}
	renderCategoryBudgets(a.out, state.CategoryBudgets)
	return nil
}

func parseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: use YYYY-MM", s)
	}
	return t, nil
}

func parseLimit(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid limit %q", s)
	}
	if !core.WithinDigitCap(d) {
		return decimal.Zero, core.ErrAmountTooLarge
	}
	return core.Round(d), nil
}

func paymentAppIDs() []string {
	ids := make([]string, 0, len(entry.PaymentApps))
	for _, app := range entry.PaymentApps {
		ids = append(ids, app.ID)
	}
	return ids
}
