// This file implements utilities for parsing and validating HTTP request data.
// Handlers decode bodies and query strings through these helpers so limits
// and error messages stay the same across endpoints.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/ledger"

	"github.com/shopspring/decimal"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

const monthLayout = "2006-01"

// DecodeJSON reads a single JSON object from the request body into v.
// Unknown fields and trailing data are rejected. An empty body leaves v
// untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// ParseMonth parses a YYYY-MM value into the first instant of that month
// in loc.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.ParseInLocation(monthLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: use YYYY-MM", s)
	}
	return t, nil
}

// ParseFilter reads the month and q query parameters. A missing month
// means the ledger's current month.
func ParseFilter(query url.Values) (ledger.Filter, error) {
	var f ledger.Filter
	if v := query.Get("month"); strings.TrimSpace(v) != "" {
		month, err := ParseMonth(v, time.Local)
		if err != nil {
			return ledger.Filter{}, err
		}
		f.Month = month
	}
	f.Search = sanitizeInput(query.Get("q"))
	return f, nil
}

// ParseLimit parses a budget limit. Limits are non-negative and rounded
// to two decimal places.
func ParseLimit(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errors.New("limit is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid limit %q", s)
	}
	if !core.WithinDigitCap(d) {
		return decimal.Zero, core.ErrAmountTooLarge
	}
	return core.Round(d), nil
}
