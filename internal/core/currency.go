package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when nothing else is configured.
const DefaultCurrency = "USD"

// RateTable maps a currency code to its rate against a common base.
// Converting between two currencies only needs both to be present.
type RateTable map[string]decimal.Decimal

// Rate returns the rate for code if it is present and positive.
func (r RateTable) Rate(code string) (decimal.Decimal, bool) {
	if r == nil {
		return decimal.Zero, false
	}
	rate, ok := r[NormalizeCurrency(code)]
	if !ok || rate.Sign() <= 0 {
		return decimal.Zero, false
	}
	return rate, true
}

// Clone returns an independent copy.
func (r RateTable) Clone() RateTable {
	if r == nil {
		return nil
	}
	out := make(RateTable, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Convert expresses amount (in from) in the to currency:
// amount × rate[to] / rate[from]. The result is not rounded. The boolean is
// false when a required rate is missing; identical currencies never need one.
func Convert(amount decimal.Decimal, from, to string, rates RateTable) (decimal.Decimal, bool) {
	from, to = NormalizeCurrency(from), NormalizeCurrency(to)
	if from == to {
		return amount, true
	}
	fromRate, ok := rates.Rate(from)
	if !ok {
		return decimal.Zero, false
	}
	toRate, ok := rates.Rate(to)
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(toRate).Div(fromRate), true
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// InDefault returns the transaction amount expressed in the default currency.
// A transaction without a currency is taken to be in the default currency.
func (tx Transaction) InDefault(defaultCurrency string, rates RateTable) (decimal.Decimal, bool) {
	currency := tx.Currency
	if strings.TrimSpace(currency) == "" {
		currency = defaultCurrency
	}
	return Convert(tx.Amount, currency, defaultCurrency, rates)
}
