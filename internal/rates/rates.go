// Package rates supplies currency conversion tables.
//
// A table maps currency codes to rates against a common base; any provider
// may be wrapped in Cached to share one lookup among concurrent callers.
package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moneytracker/internal/core"

	"github.com/shopspring/decimal"
)

// ErrUnavailable means no usable table could be produced.
var ErrUnavailable = errors.New("exchange rates unavailable")

type Provider interface {
	Rates(ctx context.Context) (core.RateTable, error)
}

// Static always returns the same table.
type Static struct {
	table core.RateTable
}

func NewStatic(table core.RateTable) *Static {
	return &Static{table: table.Clone()}
}

func (s *Static) Rates(context.Context) (core.RateTable, error) {
	if len(s.table) == 0 {
		return nil, ErrUnavailable
	}
	return s.table.Clone(), nil
}

// ParseTable reads a table written as "USD:1,EUR:0.9,INR:83.2".
// Codes are normalized; rates must be positive.
func ParseTable(s string) (core.RateTable, error) {
	table := core.RateTable{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, value, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("rate %q: expected CODE:RATE", part)
		}
		code = core.NormalizeCurrency(code)
		if code == "" {
			return nil, fmt.Errorf("rate %q: empty currency code", part)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", part, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("rate %q: must be positive", part)
		}
		table[code] = rate
	}
	return table, nil
}
