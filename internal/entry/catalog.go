package entry

import (
	"slices"

	"moneytracker/internal/core"
)

// Accounts is the default account list offered for selection.
var Accounts = []string{
	"Cash",
	"Bank Account",
	"Credit Card",
	"Savings",
	"Investment",
}

var categories = map[core.TransactionType][]string{
	core.Expense: {
		"Food & Dining",
		"Transportation",
		"Shopping",
		"Entertainment",
		"Bills & Utilities",
		"Health & Fitness",
		"Travel",
		"Other",
	},
	core.Income: {
		"Salary",
		"Business",
		"Investments",
		"Freelance",
		"Gift",
		"Other",
	},
	core.Transfer: {
		"Account Transfer",
		"Investment Transfer",
		"Debt Payment",
		"Other",
	},
}

// Categories returns the default categories for t.
func Categories(t core.TransactionType) []string {
	return slices.Clone(categories[t])
}

// DefaultCategories returns a copy of the full default table.
func DefaultCategories() map[core.TransactionType][]string {
	out := make(map[core.TransactionType][]string, len(categories))
	for t, names := range categories {
		out[t] = slices.Clone(names)
	}
	return out
}

// PaymentMethod is chosen after a new expense passes validation.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentUPI  PaymentMethod = "upi"
)

// PaymentApp is a UPI app that can be opened to complete a payment.
type PaymentApp struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Package   string `json:"package"`   // Android package
	URLScheme string `json:"uriSchema"` // iOS URL scheme, without "://"
}

// PaymentApps lists the UPI apps offered for payment.
var PaymentApps = []PaymentApp{
	{ID: "gpay", Name: "Google Pay", Package: "com.google.android.apps.nbu.paisa.user", URLScheme: "tez"},
	{ID: "phonepe", Name: "PhonePe", Package: "com.phonepe.app", URLScheme: "phonepe"},
	{ID: "paytm", Name: "Paytm", Package: "net.one97.paytm", URLScheme: "paytmmp"},
}

// FindPaymentApp looks an app up by ID.
func FindPaymentApp(id string) (PaymentApp, bool) {
	for _, app := range PaymentApps {
		if app.ID == id {
			return app, true
		}
	}
	return PaymentApp{}, false
}
