package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dharmasatrya/fareaggregator/internal/connectors"
	"github.com/dharmasatrya/fareaggregator/internal/models"
)

type Config struct {
	Timeout     time.Duration
	Retries     int
	MaxParallel int
}

type Orchestrator struct {
	config Config
	logger *zap.Logger
}

func New(config Config, logger *zap.Logger) *Orchestrator {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.MaxParallel < 1 {
		config.MaxParallel = 1
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{config: config, logger: logger}
}

// Execute runs every connector once (plus retries) with at most MaxParallel
// calls in flight and returns one result per connector, in input order. A
// failing connector never cancels the others.
func (o *Orchestrator) Execute(ctx context.Context, query models.Query, conns []connectors.Connector) []models.RunResult {
	results := make([]models.RunResult, len(conns))
	sem := semaphore.NewWeighted(int64(o.config.MaxParallel))

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(i int, c connectors.Connector) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = models.RunResult{
					Source:       c.Name(),
					Status:       models.RunError,
					Offers:       []models.Offer{},
					ErrorMessage: connectors.DescribeError(err),
				}
				return
			}
			defer sem.Release(1)

			results[i] = o.runSingle(ctx, c, query)
		}(i, c)
	}
	wg.Wait()

	return results
}

type attemptResult struct {
	offers []models.Offer
	err    error
}

func (o *Orchestrator) runSingle(ctx context.Context, c connectors.Connector, query models.Query) models.RunResult {
	started := time.Now()
	status := models.RunError
	var lastErr string

	for attempt := 0; attempt <= o.config.Retries; attempt++ {
		if ctx.Err() != nil {
			status = models.RunError
			lastErr = connectors.DescribeError(ctx.Err())
			break
		}

		offers, err := o.attempt(ctx, c, query)
		if err == nil {
			if offers == nil {
				offers = []models.Offer{}
			}
			return models.RunResult{
				Source:    c.Name(),
				Status:    models.RunSuccess,
				LatencyMs: time.Since(started).Milliseconds(),
				Offers:    offers,
			}
		}

		if errors.Is(err, errAttemptTimeout) {
			status = models.RunTimeout
			lastErr = fmt.Sprintf("Timed out after %s", o.config.Timeout)
		} else {
			status = models.RunError
			lastErr = connectors.DescribeError(err)
		}
		o.logger.Warn("connector attempt failed",
			zap.String("source", c.Name()),
			zap.Int("attempt", attempt+1),
			zap.String("status", string(status)),
			zap.String("error", lastErr),
		)
	}

	return models.RunResult{
		Source:       c.Name(),
		Status:       status,
		LatencyMs:    time.Since(started).Milliseconds(),
		Offers:       []models.Offer{},
		ErrorMessage: lastErr,
	}
}

var errAttemptTimeout = errors.New("attempt timed out")

// attempt gives one call its own deadline. A call still running at the
// deadline is abandoned; whatever it returns later is dropped.
func (o *Orchestrator) attempt(ctx context.Context, c connectors.Connector, query models.Query) ([]models.Offer, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: &PanicError{Value: r}}
			}
		}()
		offers, err := c.Search(attemptCtx, query)
		done <- attemptResult{offers: offers, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errAttemptTimeout
		}
		return res.offers, res.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errAttemptTimeout
	}
}

// PanicError carries a value recovered from a connector panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprint(e.Value)
}

func (e *PanicError) Kind() string {
	return "Panic"
}
