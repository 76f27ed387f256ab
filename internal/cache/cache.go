package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dharmasatrya/fareaggregator/internal/models"
)

// SchemaVersion is bumped whenever Payload or the hashed query shape changes
// so old entries are simply never read again.
const SchemaVersion = "v1"

// Cache is a best-effort JSON store. Implementations report transport and
// decode problems as a miss and never fail the caller.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration)
	Close() error
}

// Payload is what a completed search leaves behind for identical queries.
type Payload struct {
	Offers        []models.Offer `json:"offers"`
	ConnectorRuns []CachedRun    `json:"connector_runs"`
}

type CachedRun struct {
	Source       string           `json:"source"`
	Status       models.RunStatus `json:"status"`
	LatencyMs    int64            `json:"latency_ms"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// SlimRuns drops the offers carried by each run result.
func SlimRuns(runs []models.RunResult) []CachedRun {
	out := make([]CachedRun, len(runs))
	for i, r := range runs {
		out[i] = CachedRun{Source: r.Source, Status: r.Status, LatencyMs: r.LatencyMs, ErrorMessage: r.ErrorMessage}
	}
	return out
}

// RunResults turns cached runs back into run results without offers.
func (p Payload) RunResults() []models.RunResult {
	out := make([]models.RunResult, len(p.ConnectorRuns))
	for i, r := range p.ConnectorRuns {
		out[i] = models.RunResult{
			Source:       r.Source,
			Status:       r.Status,
			LatencyMs:    r.LatencyMs,
			Offers:       []models.Offer{},
			ErrorMessage: r.ErrorMessage,
		}
	}
	return out
}

type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

type RedisConfig struct {
	URL         string
	DialTimeout time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:         "redis://localhost:6379/0",
		DialTimeout: 5 * time.Second,
	}
}

func NewRedisCache(cfg RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, logger: logger}, nil
}

func (c *RedisCache) GetJSON(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value unencodable", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetJSON(ctx context.Context, key string, dst any) bool {
	return false
}

func (c *NoOpCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {}

func (c *NoOpCache) Close() error {
	return nil
}

// Key is the storage key for a query hash.
func Key(queryHash string) string {
	return "search-result:" + SchemaVersion + ":" + queryHash
}

// QueryHash fingerprints the canonical form of q. Casing and the order of
// requested sources do not change it; any other field does.
func QueryHash(q models.Query) string {
	c := q.Canonical()

	sources := append([]string{}, c.Sources...)
	sort.Strings(sources)

	// map keys marshal sorted
	keyData := map[string]any{
		"origin":          c.Origin,
		"destination":     c.Destination,
		"departure_date":  c.DepartureDate,
		"return_date":     c.ReturnDate,
		"trip_type":       c.TripType,
		"adults":          c.Adults,
		"children":        c.Children,
		"infants":         c.Infants,
		"cabin":           c.Cabin,
		"currency":        c.Currency,
		"stop_preference": c.StopPreference,
		"sources":         sources,
	}

	data, _ := json.Marshal(keyData)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
