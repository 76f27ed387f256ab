package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dharmasatrya/fareaggregator/internal/cache"
	"github.com/dharmasatrya/fareaggregator/internal/models"
	"github.com/dharmasatrya/fareaggregator/internal/store"
	"github.com/dharmasatrya/fareaggregator/pkg/currency"
)

const maxAlternatives = 5

type SearchStore interface {
	CreateRequest(ctx context.Context, req *models.SearchRequest) error
	LoadRequest(ctx context.Context, id string) (*models.SearchRequest, error)
	ListOffers(ctx context.Context, searchID string) ([]models.Offer, error)
	GetOffer(ctx context.Context, searchID, offerID string) (*models.Offer, error)
	ListRuns(ctx context.Context, searchID string) ([]models.RunRecord, error)
	LatestRuns(ctx context.Context) (map[string]models.RunRecord, error)
}

type Launcher interface {
	Launch(id string) error
}

type SearchHandler struct {
	store          SearchStore
	launcher       Launcher
	defaultSources []string
	logger         *zap.Logger
}

func NewSearchHandler(s SearchStore, l Launcher, defaultSources []string, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		store:          s,
		launcher:       l,
		defaultSources: defaultSources,
		logger:         logger,
	}
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/search", h.Create)
	g.GET("/search/:id", h.Get)
	g.GET("/search/:id/offers/:offer_id", h.GetOffer)
	g.GET("/health/connectors", h.ConnectorHealth)
}

func (h *SearchHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var query models.Query
	if err := c.Bind(&query); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
	}

	if len(models.NormalizeSources(query.Sources)) == 0 {
		query.Sources = append([]string{}, h.defaultSources...)
	}
	if err := query.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
	}

	req := &models.SearchRequest{
		QueryHash: cache.QueryHash(query),
		Query:     query,
	}
	if err := h.store.CreateRequest(ctx, req); err != nil {
		h.logger.Error("create search request", zap.Error(err))
		return internalError(c)
	}

	if err := h.launcher.Launch(req.ID); err != nil {
		h.logger.Warn("search not launched", zap.String("search_id", req.ID), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "unavailable",
			Message: err.Error(),
			Code:    http.StatusServiceUnavailable,
		})
	}

	return c.JSON(http.StatusAccepted, models.SearchCreateResponse{
		SearchID:  req.ID,
		Status:    req.Status,
		CreatedAt: req.CreatedAt,
	})
}

func (h *SearchHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	req, err := h.store.LoadRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "search_id not found")
	}
	if err != nil {
		h.logger.Error("load search request", zap.String("search_id", id), zap.Error(err))
		return internalError(c)
	}

	offers, err := h.store.ListOffers(ctx, id)
	if err != nil {
		h.logger.Error("list offers", zap.String("search_id", id), zap.Error(err))
		return internalError(c)
	}
	runs, err := h.store.ListRuns(ctx, id)
	if err != nil {
		h.logger.Error("list connector runs", zap.String("search_id", id), zap.Error(err))
		return internalError(c)
	}

	resp := models.SearchResultResponse{
		SearchID:           req.ID,
		Status:             req.Status,
		Error:              req.ErrorMessage,
		Query:              req.Query,
		Alternatives:       []models.OfferOut{},
		PriceLastCheckedAt: req.CompletedAt,
		Failures:           []models.ConnectorFailureOut{},
		ConnectorRuns:      []models.ConnectorRunOut{},
	}

	if len(offers) > 0 {
		cheapest := offerOut(offers[0])
		resp.CheapestFlight = &cheapest
		for _, o := range alternatives(offers, maxAlternatives) {
			resp.Alternatives = append(resp.Alternatives, offerOut(o))
		}
	}

	sources := req.Query.Sources
	if len(sources) == 0 {
		sources = h.defaultSources
	}
	counts := make(map[string]int)
	for _, o := range offers {
		counts[o.Source]++
	}
	for _, r := range orderRuns(runs, sources) {
		resp.ConnectorRuns = append(resp.ConnectorRuns, models.ConnectorRunOut{
			Source:       r.Source,
			Status:       r.Status,
			LatencyMs:    r.LatencyMs,
			ErrorMessage: r.ErrorMessage,
			OfferCount:   counts[r.Source],
		})
		if r.Status != models.RunSuccess {
			msg := r.ErrorMessage
			if msg == "" {
				msg = "Connector failed"
			}
			resp.Failures = append(resp.Failures, models.ConnectorFailureOut{
				Source:  r.Source,
				Status:  r.Status,
				Message: msg,
			})
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) GetOffer(c echo.Context) error {
	ctx := c.Request().Context()
	id, offerID := c.Param("id"), c.Param("offer_id")

	offer, err := h.store.GetOffer(ctx, id, offerID)
	if err == nil {
		return c.JSON(http.StatusOK, offerDetailOut(*offer))
	}
	if !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("get offer", zap.String("search_id", id), zap.Error(err))
		return internalError(c)
	}

	if _, err := h.store.LoadRequest(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "search_id not found")
		}
		return internalError(c)
	}
	return notFound(c, "offer_id not found for search_id")
}

func (h *SearchHandler) ConnectorHealth(c echo.Context) error {
	latest, err := h.store.LatestRuns(c.Request().Context())
	if err != nil {
		h.logger.Error("latest connector runs", zap.Error(err))
		return internalError(c)
	}

	known := make(map[string]bool)
	for _, s := range h.defaultSources {
		known[s] = true
	}
	for s := range latest {
		known[s] = true
	}
	sources := make([]string, 0, len(known))
	for s := range known {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	resp := models.ConnectorHealthResponse{Connectors: make([]models.ConnectorHealthItem, 0, len(sources))}
	for _, s := range sources {
		run, ok := latest[s]
		if !ok {
			resp.Connectors = append(resp.Connectors, models.ConnectorHealthItem{Source: s, Status: "never_run"})
			continue
		}
		latency := run.LatencyMs
		checked := run.CreatedAt.UTC()
		resp.Connectors = append(resp.Connectors, models.ConnectorHealthItem{
			Source:        s,
			Status:        string(run.Status),
			LastLatencyMs: &latency,
			LastError:     run.ErrorMessage,
			LastCheckedAt: &checked,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// alternatives picks up to n offers after the cheapest, preferring airlines
// not shown yet and filling any remaining slots by price. The result keeps
// price order.
func alternatives(offers []models.Offer, n int) []models.Offer {
	if len(offers) <= 1 {
		return nil
	}
	rest := offers[1:]

	seen := map[string]bool{offers[0].Airline: true}
	picked := make([]bool, len(rest))
	count := 0
	for i, o := range rest {
		if count == n {
			break
		}
		if !seen[o.Airline] {
			seen[o.Airline] = true
			picked[i] = true
			count++
		}
	}
	for i := range rest {
		if count == n {
			break
		}
		if !picked[i] {
			picked[i] = true
			count++
		}
	}

	out := make([]models.Offer, 0, count)
	for i, o := range rest {
		if picked[i] {
			out = append(out, o)
		}
	}
	return out
}

// orderRuns sorts runs by the position of their source in the request,
// unknown sources last.
func orderRuns(runs []models.RunRecord, sources []string) []models.RunRecord {
	position := make(map[string]int, len(sources))
	for i, s := range sources {
		if _, ok := position[s]; !ok {
			position[s] = i
		}
	}
	rank := func(s string) int {
		if p, ok := position[s]; ok {
			return p
		}
		return len(sources)
	}

	out := append([]models.RunRecord{}, runs...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].Source), rank(out[j].Source)
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func offerOut(o models.Offer) models.OfferOut {
	return models.OfferOut{
		OfferID:       o.ID,
		Source:        o.Source,
		Airline:       o.Airline,
		FlightNumbers: o.FlightNumbers,
		DepartureAt:   o.DepartureAt.UTC(),
		ArrivalAt:     o.ArrivalAt.UTC(),
		Stops:         o.Stops,
		DurationMin:   o.DurationMin,
		Cabin:         o.Cabin,
		Baggage:       o.Baggage,
		FareRules:     o.FareRules,
		TotalPrice:    o.TotalPrice.InexactFloat64(),
		Currency:      o.Currency,
		Formatted:     currency.Format(o.TotalPrice, o.Currency),
		BookingURL:    o.BookingURL,
		DeepLinkValid: o.DeepLinkValid,
	}
}

func offerDetailOut(o models.Offer) models.OfferDetailOut {
	payload := o.RawPayload
	if payload == nil {
		payload = map[string]any{}
	}
	return models.OfferDetailOut{
		OfferOut:   offerOut(o),
		FareBrand:  o.FareBrand,
		BasePrice:  floatPtr(o.BasePrice.Decimal, o.BasePrice.Valid),
		Taxes:      floatPtr(o.Taxes.Decimal, o.Taxes.Valid),
		Fees:       floatPtr(o.Fees.Decimal, o.Fees.Valid),
		RawPayload: payload,
	}
}
