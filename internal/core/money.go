// Package core provides the transaction model and money handling.
//
// This file contains the rules for parsing and bounding monetary amounts.
// Amounts are decimals with two fractional digits at rest and at most
// MaxIntegerDigits digits before the decimal point.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	// MaxIntegerDigits bounds the integer part of any amount.
	MaxIntegerDigits = 9
	// DecimalPlaces is the number of fractional digits kept at rest.
	DecimalPlaces = 2
)

// ParseAmount converts a decimal string into an amount rounded to DecimalPlaces.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Negative, zero and
// non-numeric inputs are rejected with ErrInvalidAmount; inputs whose integer
// part exceeds MaxIntegerDigits with ErrAmountTooLarge.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("0")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = Round(d)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks the at-rest invariants: strictly positive and within
// the integer digit cap.
func ValidateAmount(d decimal.Decimal) error {
	if d.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !WithinDigitCap(d) {
		return ErrAmountTooLarge
	}
	return nil
}

// WithinDigitCap reports whether the integer part of |d| has at most
// MaxIntegerDigits digits.
func WithinDigitCap(d decimal.Decimal) bool {
	whole := d.Abs().Truncate(0).String()
	return len(whole) <= MaxIntegerDigits
}

// Round rounds to DecimalPlaces, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(DecimalPlaces)
}

// FormatAmount renders d with exactly DecimalPlaces fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(DecimalPlaces)
}
