package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"moneytracker/internal/core"
	"moneytracker/internal/entry"
	"moneytracker/internal/ledger"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02 15:04"

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

func renderTransactions(w io.Writer, txs []core.Transaction) {
	table := newTable(w, "ID", "Date", "Type", "Category", "Account", "Amount", "Note")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})
	for _, tx := range txs {
		account := tx.Account
		if tx.Type == core.Transfer {
			account = tx.Account + " -> " + tx.ToAccount
		}
		amount := core.FormatAmount(tx.Amount) + " " + tx.Currency
		if tx.ConvertedAmount != nil {
			amount += " (" + core.FormatAmount(*tx.ConvertedAmount) + ")"
		}
		table.Append([]string{
			fmt.Sprint(tx.ID),
			tx.Date.Local().Format(dateLayout),
			string(tx.Type),
			tx.Category,
			account,
			amount,
			tx.Note,
		})
	}
	table.Render()
}

func renderSummary(w io.Writer, state ledger.State) {
	fmt.Fprintf(w, "%s (%s)\n\n", state.CurrentMonth.Format("January 2006"), state.DefaultCurrency)

	totals := newTable(w, "Income", "Expense", "Total")
	totals.Append([]string{
		core.FormatAmount(state.Summary.Income),
		core.FormatAmount(state.Summary.Expense),
		core.FormatAmount(state.Summary.Total),
	})
	totals.Render()

	spent := state.SpentByCategory()
	if len(spent) > 0 {
		fmt.Fprintln(w)
		table := newTable(w, "Category", "Spent")
		for _, c := range spent {
			table.Append([]string{c.Name, core.FormatAmount(c.Amount)})
		}
		table.Render()
	}

	if len(state.Budgets) > 0 {
		fmt.Fprintln(w)
		renderBudgets(w, state.Budgets)
	}
}

func renderBudgets(w io.Writer, budgets []ledger.Budget) {
	if len(budgets) == 0 {
		fmt.Fprintln(w, "No budgets.")
		return
	}
	table := newTable(w, "ID", "Name", "Category", "Limit", "Spent", "Remaining")
	for _, b := range budgets {
		remaining := core.FormatAmount(b.Remaining())
		if b.Exceeded() {
			remaining += " !"
		}
		table.Append([]string{
			b.ID, b.Name, b.Category,
			core.FormatAmount(b.Limit), core.FormatAmount(b.Spent), remaining,
		})
	}
	table.Render()
}

func renderCategoryBudgets(w io.Writer, limits map[string]decimal.Decimal) {
	if len(limits) == 0 {
		fmt.Fprintln(w, "No category limits.")
		return
	}
	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)

	table := newTable(w, "Category", "Limit")
	for _, name := range names {
		table.Append([]string{name, core.FormatAmount(limits[name])})
	}
	table.Render()
}

func renderLaunch(w io.Writer, target entry.LaunchTarget) {
	if target.URL != "" {
		fmt.Fprintf(w, "Open %s to pay.\n", target.URL)
		return
	}
	fmt.Fprintf(w, "Open %s (%s %s) to pay.\n", target.Package, target.Action, strings.Join(target.Flags, "|"))
}
