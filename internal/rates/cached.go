package rates

import (
	"context"

	"moneytracker/internal/cache"
	"moneytracker/internal/core"

	"golang.org/x/sync/singleflight"
)

const cacheKey = "rates"

// Cached memoizes another provider. Concurrent misses share one upstream
// call; failures are not cached.
type Cached struct {
	next  Provider
	cache cache.Cache[core.RateTable]
	group singleflight.Group
}

func NewCached(next Provider, c cache.Cache[core.RateTable]) *Cached {
	return &Cached{next: next, cache: c}
}

func (c *Cached) Rates(ctx context.Context) (core.RateTable, error) {
	if table, ok := c.cache.Get(cacheKey); ok {
		return table.Clone(), nil
	}
	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		table, err := c.next.Rates(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(cacheKey, table)
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(core.RateTable).Clone(), nil
}

// Invalidate drops the cached table so the next call refetches.
func (c *Cached) Invalidate() {
	c.cache.Delete(cacheKey)
}
