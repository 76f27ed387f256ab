package ratelimit

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// SourceLimiter hands out one token bucket per connector source so a burst of
// concurrent searches cannot hammer a single upstream.
type SourceLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	defaults Config
}

type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5,
		BurstSize:         10,
	}
}

func NewSourceLimiter(config Config) *SourceLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = DefaultConfig().BurstSize
	}
	return &SourceLimiter{
		limiters: make(map[string]*rate.Limiter),
		defaults: config,
	}
}

func (l *SourceLimiter) limiter(source string) *rate.Limiter {
	source = strings.ToLower(source)

	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists = l.limiters[source]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.defaults.RequestsPerSecond), l.defaults.BurstSize)
	l.limiters[source] = limiter
	return limiter
}

// SetLimit overrides the bucket for one source.
func (l *SourceLimiter) SetLimit(source string, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limiters[strings.ToLower(source)] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until the source may be called or ctx is done.
func (l *SourceLimiter) Wait(ctx context.Context, source string) error {
	return l.limiter(source).Wait(ctx)
}
