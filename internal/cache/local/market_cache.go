// Package local provides in-process implementations of the domain cache,
// rate-limit, lock and event-bus interfaces. They back a single-node
// deployment when Redis is disabled.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

type cachedMarket struct {
	market  domain.Market
	expires time.Time
}

// MarketCache is a TTL map of markets. It is safe for concurrent use.
type MarketCache struct {
	mu      sync.Mutex
	entries map[string]cachedMarket
	ttl     time.Duration
	now     func() time.Time
}

// NewMarketCache creates a cache whose entries live for ttl.
func NewMarketCache(ttl time.Duration) *MarketCache {
	return &MarketCache{
		entries: make(map[string]cachedMarket),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MarketCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[m.ID] = cachedMarket{market: m, expires: c.now().Add(c.ttl)}
	return nil
}

// Get returns domain.ErrNotFound on a miss or an expired entry.
func (c *MarketCache) Get(_ context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, id)
		return domain.Market{}, domain.ErrNotFound
	}
	return e.market, nil
}

func (c *MarketCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

// Cleanup drops expired entries.
func (c *MarketCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
		}
	}
}

var _ domain.MarketCache = (*MarketCache)(nil)
