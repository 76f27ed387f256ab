package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/fareaggregator/internal/cache"
	"github.com/dharmasatrya/fareaggregator/internal/models"
	"github.com/dharmasatrya/fareaggregator/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRequest(ctx context.Context, req *models.SearchRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockStore) LoadRequest(ctx context.Context, id string) (*models.SearchRequest, error) {
	args := m.Called(id)
	req, _ := args.Get(0).(*models.SearchRequest)
	return req, args.Error(1)
}

func (m *mockStore) ListOffers(ctx context.Context, searchID string) ([]models.Offer, error) {
	args := m.Called(searchID)
	return args.Get(0).([]models.Offer), args.Error(1)
}

func (m *mockStore) GetOffer(ctx context.Context, searchID, offerID string) (*models.Offer, error) {
	args := m.Called(searchID, offerID)
	o, _ := args.Get(0).(*models.Offer)
	return o, args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, searchID string) ([]models.RunRecord, error) {
	args := m.Called(searchID)
	return args.Get(0).([]models.RunRecord), args.Error(1)
}

func (m *mockStore) LatestRuns(ctx context.Context) (map[string]models.RunRecord, error) {
	args := m.Called()
	return args.Get(0).(map[string]models.RunRecord), args.Error(1)
}

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Launch(id string) error {
	return m.Called(id).Error(0)
}

func newServer(s *mockStore, l *mockLauncher) *echo.Echo {
	e := echo.New()
	NewSearchHandler(s, l, []string{"airasia", "garuda"}, nil).Register(e.Group("/api/v1"))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreate_AcceptsAndLaunches(t *testing.T) {
	s, l := &mockStore{}, &mockLauncher{}
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	s.On("CreateRequest", mock.AnythingOfType("*models.SearchRequest")).Run(func(args mock.Arguments) {
		req := args.Get(0).(*models.SearchRequest)
		req.ID = "search-1"
		req.Status = models.SearchQueued
		req.CreatedAt = created
	}).Return(nil)
	l.On("Launch", "search-1").Return(nil)

	rec := do(newServer(s, l), http.MethodPost, "/api/v1/search",
		`{"origin":"kul","destination":"bkk","departure_date":"2026-03-20","trip_type":"one_way"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp models.SearchCreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "search-1", resp.SearchID)
	assert.Equal(t, models.SearchQueued, resp.Status)
	assert.True(t, resp.CreatedAt.Equal(created))

	saved := s.Calls[0].Arguments.Get(0).(*models.SearchRequest)
	assert.Equal(t, "KUL", saved.Query.Origin)
	assert.Equal(t, []string{"airasia", "garuda"}, saved.Query.Sources)
	assert.Equal(t, "MYR", saved.Query.Currency)
	assert.Equal(t, cache.QueryHash(saved.Query), saved.QueryHash)
	l.AssertExpectations(t)
}

func TestCreate_ValidationError(t *testing.T) {
	s, l := &mockStore{}, &mockLauncher{}

	rec := do(newServer(s, l), http.MethodPost, "/api/v1/search",
		`{"origin":"KULX","destination":"BKK","departure_date":"2026-03-20","trip_type":"one_way"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
	s.AssertNotCalled(t, "CreateRequest", mock.Anything)
}

func TestCreate_MalformedBody(t *testing.T) {
	rec := do(newServer(&mockStore{}, &mockLauncher{}), http.MethodPost, "/api/v1/search", `{"origin":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestCreate_WorkerShuttingDown(t *testing.T) {
	s, l := &mockStore{}, &mockLauncher{}
	s.On("CreateRequest", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(*models.SearchRequest).ID = "search-1"
	}).Return(nil)
	l.On("Launch", "search-1").Return(errors.New("search worker is shutting down"))

	rec := do(newServer(s, l), http.MethodPost, "/api/v1/search",
		`{"origin":"KUL","destination":"BKK","departure_date":"2026-03-20","trip_type":"one_way","sources":["airasia"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func storedOffer(id, airline, source, price string) models.Offer {
	return models.Offer{
		ID:            id,
		Source:        source,
		Airline:       airline,
		FlightNumbers: []string{id},
		TotalPrice:    decimal.RequireFromString(price),
		Currency:      "MYR",
	}
}

func TestGet_ReturnsCheapestAlternativesAndRuns(t *testing.T) {
	s := &mockStore{}
	completed := time.Date(2026, 3, 1, 8, 1, 0, 0, time.UTC)
	created := completed.Add(-time.Second)
	s.On("LoadRequest", "search-1").Return(&models.SearchRequest{
		ID:          "search-1",
		Status:      models.SearchCompleted,
		Query:       models.Query{Origin: "KUL", Destination: "BKK", Sources: []string{"garuda", "airasia", "trip_com"}},
		CompletedAt: &completed,
	}, nil)
	s.On("ListOffers", "search-1").Return([]models.Offer{
		storedOffer("o1", "AirAsia", "airasia", "150"),
		storedOffer("o2", "AirAsia", "airasia", "160"),
		storedOffer("o3", "AirAsia", "airasia", "170"),
		storedOffer("o4", "Garuda", "garuda", "1234.5"),
		storedOffer("o5", "AirAsia", "airasia", "180"),
		storedOffer("o6", "AirAsia", "airasia", "190"),
		storedOffer("o7", "AirAsia", "airasia", "200"),
	}, nil)
	s.On("ListRuns", "search-1").Return([]models.RunRecord{
		{Source: "airasia", Status: models.RunSuccess, LatencyMs: 120, CreatedAt: created},
		{Source: "garuda", Status: models.RunSuccess, LatencyMs: 80, CreatedAt: created},
		{Source: "trip_com", Status: models.RunTimeout, ErrorMessage: "Timed out after 20s", CreatedAt: created},
		{Source: "legacy", Status: models.RunError, CreatedAt: created},
	}, nil)

	rec := do(newServer(s, &mockLauncher{}), http.MethodGet, "/api/v1/search/search-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SearchResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.NotNil(t, resp.CheapestFlight)
	assert.Equal(t, "o1", resp.CheapestFlight.OfferID)
	assert.Equal(t, "MYR 150.00", resp.CheapestFlight.Formatted)

	// Garuda gets a slot first, then the cheapest AirAsia fill in price order.
	var altIDs []string
	for _, a := range resp.Alternatives {
		altIDs = append(altIDs, a.OfferID)
	}
	assert.Equal(t, []string{"o2", "o3", "o4", "o5", "o6"}, altIDs)
	assert.Equal(t, 1234.5, resp.Alternatives[2].TotalPrice)

	var order []string
	for _, r := range resp.ConnectorRuns {
		order = append(order, r.Source)
	}
	assert.Equal(t, []string{"garuda", "airasia", "trip_com", "legacy"}, order)
	assert.Equal(t, 1, resp.ConnectorRuns[0].OfferCount)
	assert.Equal(t, 6, resp.ConnectorRuns[1].OfferCount)

	require.Len(t, resp.Failures, 2)
	assert.Equal(t, "Timed out after 20s", resp.Failures[0].Message)
	assert.Equal(t, "Connector failed", resp.Failures[1].Message)
	require.NotNil(t, resp.PriceLastCheckedAt)
	assert.True(t, resp.PriceLastCheckedAt.Equal(completed))
}

func TestGet_QueuedSearchHasEmptyLists(t *testing.T) {
	s := &mockStore{}
	s.On("LoadRequest", "search-1").Return(&models.SearchRequest{ID: "search-1", Status: models.SearchQueued}, nil)
	s.On("ListOffers", "search-1").Return([]models.Offer{}, nil)
	s.On("ListRuns", "search-1").Return([]models.RunRecord{}, nil)

	rec := do(newServer(s, &mockLauncher{}), http.MethodGet, "/api/v1/search/search-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(extract(t, rec.Body.Bytes(), "alternatives")))
	assert.JSONEq(t, `null`, string(extract(t, rec.Body.Bytes(), "cheapest_flight")))
	assert.JSONEq(t, `[]`, string(extract(t, rec.Body.Bytes(), "failures")))
}

func extract(t *testing.T, body []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return m[field]
}

func TestGet_UnknownSearch(t *testing.T) {
	s := &mockStore{}
	s.On("LoadRequest", "nope").Return(nil, store.ErrNotFound)

	rec := do(newServer(s, &mockLauncher{}), http.MethodGet, "/api/v1/search/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "search_id not found")
}

func TestGetOffer(t *testing.T) {
	s := &mockStore{}
	o := storedOffer("o1", "AirAsia", "airasia", "189.90")
	o.BasePrice = decimal.NewNullDecimal(decimal.RequireFromString("150"))
	o.RawPayload = map[string]any{"deeplink_error": "Error: boom"}
	s.On("GetOffer", "search-1", "o1").Return(&o, nil)
	s.On("GetOffer", "search-1", "missing").Return(nil, store.ErrNotFound)
	s.On("GetOffer", "ghost", "o1").Return(nil, store.ErrNotFound)
	s.On("LoadRequest", "search-1").Return(&models.SearchRequest{ID: "search-1"}, nil)
	s.On("LoadRequest", "ghost").Return(nil, store.ErrNotFound)
	e := newServer(s, &mockLauncher{})

	rec := do(e, http.MethodGet, "/api/v1/search/search-1/offers/o1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.OfferDetailOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "o1", detail.OfferID)
	require.NotNil(t, detail.BasePrice)
	assert.Equal(t, 150.0, *detail.BasePrice)
	assert.Nil(t, detail.Taxes)
	assert.Equal(t, "Error: boom", detail.RawPayload["deeplink_error"])

	rec = do(e, http.MethodGet, "/api/v1/search/search-1/offers/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "offer_id not found for search_id")

	rec = do(e, http.MethodGet, "/api/v1/search/ghost/offers/o1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "search_id not found")
}

func TestConnectorHealth(t *testing.T) {
	s := &mockStore{}
	checked := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.On("LatestRuns").Return(map[string]models.RunRecord{
		"airasia":  {Source: "airasia", Status: models.RunSuccess, LatencyMs: 310, CreatedAt: checked},
		"trip_com": {Source: "trip_com", Status: models.RunError, ErrorMessage: "ConnectorError: blocked", CreatedAt: checked},
	}, nil)

	rec := do(newServer(s, &mockLauncher{}), http.MethodGet, "/api/v1/health/connectors", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ConnectorHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Connectors, 3)

	assert.Equal(t, "airasia", resp.Connectors[0].Source)
	assert.Equal(t, int64(310), *resp.Connectors[0].LastLatencyMs)
	assert.Equal(t, "garuda", resp.Connectors[1].Source)
	assert.Equal(t, "never_run", resp.Connectors[1].Status)
	assert.Nil(t, resp.Connectors[1].LastCheckedAt)
	assert.Equal(t, "trip_com", resp.Connectors[2].Source)
	assert.Equal(t, "ConnectorError: blocked", resp.Connectors[2].LastError)
}

func TestAlternatives(t *testing.T) {
	offers := []models.Offer{
		storedOffer("a", "X", "s", "1"),
		storedOffer("b", "X", "s", "2"),
		storedOffer("c", "Y", "s", "3"),
	}
	got := alternatives(offers, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	assert.Empty(t, alternatives(offers[:1], 5))
	assert.Len(t, alternatives(offers, 5), 2)
}
