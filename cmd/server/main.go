package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dharmasatrya/fareaggregator/internal/cache"
	"github.com/dharmasatrya/fareaggregator/internal/config"
	"github.com/dharmasatrya/fareaggregator/internal/connectors"
	"github.com/dharmasatrya/fareaggregator/internal/events"
	"github.com/dharmasatrya/fareaggregator/internal/fx"
	"github.com/dharmasatrya/fareaggregator/internal/handler"
	"github.com/dharmasatrya/fareaggregator/internal/linkcheck"
	"github.com/dharmasatrya/fareaggregator/internal/logging"
	"github.com/dharmasatrya/fareaggregator/internal/normalize"
	"github.com/dharmasatrya/fareaggregator/internal/orchestrator"
	"github.com/dharmasatrya/fareaggregator/internal/ratelimit"
	"github.com/dharmasatrya/fareaggregator/internal/store"
	"github.com/dharmasatrya/fareaggregator/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, store.PoolConfig{DSN: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	if err := store.Migrate(ctx, pool); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	searchStore := store.New(pool)

	resultCache := newCache(cfg, logger)
	defer resultCache.Close()

	registry, err := newRegistry(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize connectors", zap.Error(err))
	}
	logger.Info("Connectors registered", zap.Strings("sources", registry.Available()))

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	rates := fx.NewRateCache(fx.NewFrankfurterProvider(cfg.FXBaseURL, cfg.RequestTimeout()), cfg.FXRateTTL())
	prober := linkcheck.NewHTTPProber(cfg.RequestTimeout())

	searchWorker := worker.New(worker.Deps{
		Store:      searchStore,
		Cache:      resultCache,
		Connectors: registry,
		Orchestrator: orchestrator.New(orchestrator.Config{
			Timeout:     cfg.ConnectorTimeout(),
			Retries:     cfg.ConnectorRetries,
			MaxParallel: cfg.MaxParallelConnectors,
		}, logger),
		Normalizer: normalize.NewNormalizer(rates),
		Validator:  linkcheck.NewValidator(prober, logger),
		Publisher:  publisher,
		Logger:     logger,
		Release:    []worker.Releaser{rates, prober},
	}, worker.Config{
		CacheTTL:  cfg.CacheTTL(),
		MaxOffers: cfg.MaxOffersPerSearch,
	})

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(handler.Metrics())

	searchHandler := handler.NewSearchHandler(searchStore, searchWorker, cfg.Sources(), logger)
	searchHandler.Register(e.Group("/api/v1"))
	e.GET("/health", handler.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		logger.Info("Starting fare aggregator", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
	if err := searchWorker.Shutdown(shutdownCtx); err != nil {
		logger.Error("Search worker shutdown", zap.Error(err))
	}
}

// newCache degrades to a no-op cache when Redis is disabled or unreachable.
func newCache(cfg *config.Config, logger *zap.Logger) cache.Cache {
	if !cfg.CacheEnabled {
		logger.Info("Cache disabled")
		return cache.NewNoOpCache()
	}

	redisCache, err := cache.NewRedisCache(cache.RedisConfig{URL: cfg.RedisURL, DialTimeout: 5 * time.Second}, logger)
	if err != nil {
		logger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		return cache.NewNoOpCache()
	}
	logger.Info("Redis cache enabled", zap.Duration("ttl", cfg.CacheTTL()))
	return redisCache
}

func newRegistry(cfg *config.Config) (*connectors.Registry, error) {
	limiter := ratelimit.NewSourceLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.SourceRateLimitRPS,
		BurstSize:         cfg.SourceRateLimitBurst,
	})
	registry := connectors.NewRegistry(limiter)

	client := &http.Client{Timeout: cfg.RequestTimeout()}
	registry.Register("airasia", func() connectors.Connector {
		return connectors.NewAirAsiaConnector(cfg.AirAsiaBaseURL, client)
	})

	garuda, err := connectors.NewGarudaConnector(cfg.GarudaLatency())
	if err != nil {
		return nil, err
	}
	registry.Register("garuda", func() connectors.Connector { return garuda })

	return registry, nil
}

func newPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return events.NoopPublisher{}
	}
	logger.Info("Publishing search events", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	return events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
}
