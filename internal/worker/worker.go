package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/fareaggregator/internal/cache"
	"github.com/dharmasatrya/fareaggregator/internal/connectors"
	"github.com/dharmasatrya/fareaggregator/internal/dedup"
	"github.com/dharmasatrya/fareaggregator/internal/events"
	"github.com/dharmasatrya/fareaggregator/internal/filter"
	"github.com/dharmasatrya/fareaggregator/internal/metrics"
	"github.com/dharmasatrya/fareaggregator/internal/models"
	"github.com/dharmasatrya/fareaggregator/internal/ranking"
	"github.com/dharmasatrya/fareaggregator/internal/store"
)

var (
	ErrNoConnectors   = errors.New("no valid connectors for requested sources")
	ErrShuttingDown   = errors.New("search worker is shutting down")
	ErrAlreadyRunning = errors.New("search is already running")
)

// Store is the persistence the worker drives a search request through.
type Store interface {
	LoadRequest(ctx context.Context, id string) (*models.SearchRequest, error)
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, completedAt time.Time) error
	ReplaceOffersAndRuns(ctx context.Context, id string, offers []models.Offer, runs []models.RunResult, completedAt time.Time) error
}

type ConnectorSource interface {
	Build(sources []string) []connectors.Connector
}

type Executor interface {
	Execute(ctx context.Context, query models.Query, conns []connectors.Connector) []models.RunResult
}

type Normalizer interface {
	Normalize(ctx context.Context, offers []models.Offer, target string) ([]models.Offer, error)
}

type LinkValidator interface {
	Validate(ctx context.Context, offers []models.Offer)
}

// Releaser is a transport released once every search has finished.
type Releaser interface {
	Close()
}

type Config struct {
	CacheTTL  time.Duration
	MaxOffers int
}

type Deps struct {
	Store        Store
	Cache        cache.Cache
	Connectors   ConnectorSource
	Orchestrator Executor
	Normalizer   Normalizer
	Validator    LinkValidator
	Publisher    events.Publisher
	Logger       *zap.Logger
	Release      []Releaser
}

// Worker runs one background task per search request.
type Worker struct {
	deps   Deps
	config Config
	now    func() time.Time

	mu      sync.Mutex
	closing bool
	tasks   map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func New(deps Deps, config Config) *Worker {
	if deps.Cache == nil {
		deps.Cache = cache.NewNoOpCache()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 3 * time.Minute
	}
	return &Worker{
		deps:   deps,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
		tasks:  make(map[string]context.CancelFunc),
	}
}

// Launch starts processing id in the background and returns immediately.
func (w *Worker) Launch(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closing {
		return ErrShuttingDown
	}
	if _, running := w.tasks[id]; running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.tasks[id] = cancel
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.tasks, id)
			w.mu.Unlock()
			cancel()
		}()
		w.run(ctx, id)
	}()
	return nil
}

// Shutdown refuses new launches and waits for running searches. When ctx
// ends first the remaining searches are canceled, and still awaited, before
// the shared transports are released.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.closing = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		w.mu.Lock()
		for _, cancel := range w.tasks {
			cancel()
		}
		w.mu.Unlock()
		<-done
	}

	for _, r := range w.deps.Release {
		r.Close()
	}
	return err
}

func (w *Worker) run(ctx context.Context, id string) {
	log := w.deps.Logger.With(zap.String("search_id", id))

	defer func() {
		if r := recover(); r != nil {
			log.Error("search panicked", zap.Any("panic", r))
			w.fail(id, "", fmt.Errorf("search panicked: %v", r), time.Time{})
		}
	}()

	req, err := w.deps.Store.LoadRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("search request not found")
		return
	}
	if err != nil {
		w.fail(id, "", err, time.Time{})
		return
	}

	started := w.now()
	if err := w.deps.Store.MarkRunning(ctx, id, started); err != nil {
		w.fail(id, req.QueryHash, err, started)
		return
	}

	query := req.Query.Canonical()
	hash := req.QueryHash
	if hash == "" {
		hash = cache.QueryHash(query)
	}
	key := cache.Key(hash)

	var cached cache.Payload
	if w.deps.Cache.GetJSON(ctx, key, &cached) {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		if err := w.deps.Store.ReplaceOffersAndRuns(ctx, id, cached.Offers, cached.RunResults(), w.now()); err != nil {
			w.fail(id, hash, err, started)
			return
		}
		log.Info("search served from cache", zap.Int("offers", len(cached.Offers)))
		w.finish(id, hash, len(cached.Offers), true, started)
		return
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	offers, runs, err := w.pipeline(ctx, query)
	if err != nil {
		w.fail(id, hash, err, started)
		return
	}

	if err := w.deps.Store.ReplaceOffersAndRuns(ctx, id, offers, runs, w.now()); err != nil {
		w.fail(id, hash, err, started)
		return
	}

	// An empty result may be a transient outage; let the next search retry.
	if len(offers) > 0 {
		w.deps.Cache.SetJSON(ctx, key, cache.Payload{Offers: offers, ConnectorRuns: cache.SlimRuns(runs)}, w.config.CacheTTL)
	}

	log.Info("search completed", zap.Int("offers", len(offers)), zap.Int("connectors", len(runs)))
	w.finish(id, hash, len(offers), false, started)
}

// pipeline fetches from every requested connector and turns the raw offers
// into the final ranked, validated list.
func (w *Worker) pipeline(ctx context.Context, query models.Query) ([]models.Offer, []models.RunResult, error) {
	conns := w.deps.Connectors.Build(query.Sources)
	if len(conns) == 0 {
		return nil, nil, ErrNoConnectors
	}

	runs := w.deps.Orchestrator.Execute(ctx, query, conns)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var raw []models.Offer
	for _, r := range runs {
		metrics.ConnectorRuns.WithLabelValues(r.Source, string(r.Status)).Inc()
		metrics.ConnectorLatency.WithLabelValues(r.Source).Observe(float64(r.LatencyMs) / 1000)
		if r.Status == models.RunSuccess {
			raw = append(raw, r.Offers...)
		}
	}

	normalized, err := w.deps.Normalizer.Normalize(ctx, raw, query.Currency)
	if err != nil {
		return nil, nil, err
	}

	offers := filter.ByStopPreference(normalized, query.StopPreference)
	offers = dedup.Offers(offers)
	offers = ranking.Top(ranking.Rank(offers), w.config.MaxOffers)

	w.deps.Validator.Validate(ctx, offers)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return offers, runs, nil
}

func (w *Worker) finish(id, hash string, offerCount int, fromCache bool, started time.Time) {
	metrics.SearchesTotal.WithLabelValues(string(models.SearchCompleted)).Inc()
	metrics.SearchDuration.Observe(w.now().Sub(started).Seconds())

	w.publish(events.SearchEvent{
		Type:       events.TypeSearchCompleted,
		SearchID:   id,
		QueryHash:  hash,
		Status:     string(models.SearchCompleted),
		OfferCount: offerCount,
		FromCache:  fromCache,
		OccurredAt: w.now(),
	})
}

// fail records err as the terminal state of id. It uses its own context so
// the write survives a canceled search.
func (w *Worker) fail(id, hash string, cause error, started time.Time) {
	message := connectors.DescribeError(cause)
	w.deps.Logger.Error("search failed", zap.String("search_id", id), zap.String("error", message))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.deps.Store.MarkFailed(ctx, id, message, w.now()); err != nil {
		w.deps.Logger.Error("could not record search failure", zap.String("search_id", id), zap.Error(err))
	}

	metrics.SearchesTotal.WithLabelValues(string(models.SearchFailed)).Inc()
	if !started.IsZero() {
		metrics.SearchDuration.Observe(w.now().Sub(started).Seconds())
	}

	w.publish(events.SearchEvent{
		Type:         events.TypeSearchFailed,
		SearchID:     id,
		QueryHash:    hash,
		Status:       string(models.SearchFailed),
		ErrorMessage: message,
		OccurredAt:   w.now(),
	})
}

func (w *Worker) publish(ev events.SearchEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.deps.Publisher.Publish(ctx, ev); err != nil {
		w.deps.Logger.Warn("could not publish search event",
			zap.String("search_id", ev.SearchID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
	}
}
