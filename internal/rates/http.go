package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"moneytracker/internal/core"
	"moneytracker/internal/log"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

// ratesResponse is the body served by the rates endpoint.
type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// HTTPProvider fetches a table from a JSON endpoint, retrying transient
// failures with exponential backoff.
type HTTPProvider struct {
	url        string
	client     *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     *log.Logger
}

func NewHTTPProvider(url string, client *http.Client, logger *log.Logger) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &HTTPProvider{
		url:        url,
		client:     client,
		maxRetries: 3,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     logger.WithComponent(log.ComponentRates),
	}
}

func (p *HTTPProvider) Rates(ctx context.Context) (core.RateTable, error) {
	var table core.RateTable
	attempt := 0
	op := func() error {
		attempt++
		t, err := p.fetch(ctx)
		if err != nil {
			p.logger.WarnContext(ctx, "Rates fetch failed", "attempt", attempt, log.FieldError, err)
			return err
		}
		table = t
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p.logger.DebugContext(ctx, "Rates fetched", "currencies", len(table))
	return table, nil
}

func (p *HTTPProvider) fetch(ctx context.Context) (core.RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rates endpoint returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("rates endpoint returned %s", resp.Status))
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode rates: %w", err))
	}

	table := core.RateTable{}
	for code, rate := range body.Rates {
		if rate.Sign() > 0 {
			table[core.NormalizeCurrency(code)] = rate
		}
	}
	if base := core.NormalizeCurrency(body.Base); base != "" {
		if _, ok := table[base]; !ok {
			table[base] = decimal.NewFromInt(1)
		}
	}
	if len(table) == 0 {
		return nil, backoff.Permanent(ErrUnavailable)
	}
	return table, nil
}
