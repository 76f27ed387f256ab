package fx

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type Provider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

type entry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

// RateCache memoizes rates from an upstream provider for a fixed TTL. It is
// shared by every running search.
type RateCache struct {
	upstream Provider
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

func NewRateCache(upstream Provider, ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RateCache{
		upstream: upstream,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]entry),
	}
}

func (c *RateCache) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := from + ":" + to
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expiresAt) {
		return e.rate, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		rate, err := c.upstream.Rate(ctx, from, to)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry{rate: rate, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return rate, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// Close releases the upstream transport, if it holds one.
func (c *RateCache) Close() {
	if closer, ok := c.upstream.(interface{ Close() }); ok {
		closer.Close()
	}
}
