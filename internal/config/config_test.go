package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 180*time.Second, cfg.CacheTTL())
	assert.Equal(t, 20*time.Second, cfg.ConnectorTimeout())
	assert.Equal(t, 1, cfg.ConnectorRetries)
	assert.Equal(t, 4, cfg.MaxParallelConnectors)
	assert.Equal(t, 50, cfg.MaxOffersPerSearch)
	assert.Equal(t, 30*time.Minute, cfg.FXRateTTL())
	assert.Equal(t, []string{"airasia", "garuda"}, cfg.Sources())
	assert.Empty(t, cfg.Brokers())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENV", "production")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CONNECTOR_RETRIES", "3")
	t.Setenv("DEFAULT_SOURCES", " AirAsia , ,GARUDA")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("SOURCE_RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 3, cfg.ConnectorRetries)
	assert.Equal(t, []string{"airasia", "garuda"}, cfg.Sources())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers())
	assert.Equal(t, 2.5, cfg.SourceRateLimitRPS)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
