package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dharmasatrya/fareaggregator/internal/models"
	"github.com/dharmasatrya/fareaggregator/internal/timezone"
)

const airasiaPublicSearchURL = "https://www.airasia.com/en/gb"

type airasiaLowFare struct {
	Price          string           `json:"price"`
	Currency       string           `json:"currency"`
	AirlineProfile string           `json:"airlineProfile"`
	Schedule       *airasiaSchedule `json:"schedule"`
}

type airasiaSchedule struct {
	Departs       string   `json:"departs"`
	Arrives       string   `json:"arrives"`
	Stops         int      `json:"stops"`
	FlightNumbers []string `json:"flight_numbers"`
}

type airasiaDeeplinkRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	DepartDate  string `json:"departDate"`
	ReturnDate  string `json:"returnDate,omitempty"`
	Adults      int    `json:"adults"`
	Children    int    `json:"children"`
	Infants     int    `json:"infants"`
	Currency    string `json:"currency"`
}

type airasiaDeeplinkResponse struct {
	URL string `json:"url"`
}

// AirAsiaConnector quotes the day's low fare from the AirAsia fare API and
// asks the deeplink service for a prefilled booking URL.
type AirAsiaConnector struct {
	baseURL string
	client  *http.Client
}

func NewAirAsiaConnector(baseURL string, client *http.Client) *AirAsiaConnector {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &AirAsiaConnector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *AirAsiaConnector) Name() string {
	return "airasia"
}

func (c *AirAsiaConnector) Search(ctx context.Context, query models.Query) ([]models.Offer, error) {
	fare, err := c.fetchLowFare(ctx, query)
	if err != nil {
		return nil, err
	}
	if fare == nil {
		return nil, nil
	}

	price, err := decimal.NewFromString(strings.TrimSpace(fare.Price))
	if err != nil {
		return nil, NewConnectorError(c.Name(), "unparseable low fare price "+fare.Price, err)
	}

	payload := map[string]any{"low_fare": fare.Price}
	var fareRules string
	bookingURL, err := c.fetchDeeplink(ctx, query)
	if err != nil {
		payload["deeplink_error"] = DescribeError(err)
		bookingURL = fallbackBookingURL(query)
		fareRules = "Fallback search link used; fare must be reselected on airasia.com"
	}

	currency := fare.Currency
	if currency == "" {
		currency = query.Currency
	}

	dep, arr, stops, numbers, err := c.schedule(fare.Schedule, query)
	if err != nil {
		return nil, NewConnectorError(c.Name(), "malformed schedule", err)
	}

	return []models.Offer{{
		Source:        c.Name(),
		Airline:       "AirAsia",
		FlightNumbers: numbers,
		Origin:        query.Origin,
		Destination:   query.Destination,
		DepartureAt:   dep,
		ArrivalAt:     arr,
		Stops:         stops,
		DurationMin:   int(arr.Sub(dep).Minutes()),
		Cabin:         string(query.Cabin),
		FareBrand:     fare.AirlineProfile,
		FareRules:     fareRules,
		BasePrice:     decimal.NewNullDecimal(price),
		TotalPrice:    price,
		Currency:      currency,
		BookingURL:    bookingURL,
		RawPayload:    payload,
	}}, nil
}

func (c *AirAsiaConnector) fetchLowFare(ctx context.Context, query models.Query) (*airasiaLowFare, error) {
	params := url.Values{}
	params.Set("origin", query.Origin)
	params.Set("destination", query.Destination)
	params.Set("date", query.DepartureDate)
	params.Set("currency", query.Currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/lowfare?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewConnectorError(c.Name(), fmt.Sprintf("low fare request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var fare airasiaLowFare
	if err := json.NewDecoder(resp.Body).Decode(&fare); err != nil {
		return nil, NewConnectorError(c.Name(), "decode low fare", err)
	}
	if strings.TrimSpace(fare.Price) == "" {
		return nil, nil
	}
	return &fare, nil
}

func (c *AirAsiaConnector) fetchDeeplink(ctx context.Context, query models.Query) (string, error) {
	body := airasiaDeeplinkRequest{
		Origin:      query.Origin,
		Destination: query.Destination,
		DepartDate:  query.DepartureDate,
		Adults:      query.Adults,
		Children:    query.Children,
		Infants:     query.Infants,
		Currency:    query.Currency,
	}
	if query.ReturnDate != nil {
		body.ReturnDate = *query.ReturnDate
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/deeplink", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deeplink endpoint returned %d", resp.StatusCode)
	}
	var out airasiaDeeplinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("deeplink endpoint returned an empty url")
	}
	return out.URL, nil
}

// schedule resolves departure and arrival instants. Without a schedule the
// fare is pinned to 09:00-12:00 local so it still ranks and dedups sanely.
func (c *AirAsiaConnector) schedule(s *airasiaSchedule, query models.Query) (time.Time, time.Time, int, []string, error) {
	departs, arrives := "09:00", "12:00"
	stops := 0
	var numbers []string
	if s != nil {
		if s.Departs != "" {
			departs = s.Departs
		}
		if s.Arrives != "" {
			arrives = s.Arrives
		}
		stops = s.Stops
		numbers = s.FlightNumbers
	}
	if numbers == nil {
		numbers = []string{}
	}

	dep, err := timezone.AtAirport(query.DepartureDate, departs, query.Origin)
	if err != nil {
		return time.Time{}, time.Time{}, 0, nil, err
	}
	arr, err := timezone.AtAirport(query.DepartureDate, arrives, query.Destination)
	if err != nil {
		return time.Time{}, time.Time{}, 0, nil, err
	}
	if !arr.After(dep) {
		arr = arr.Add(24 * time.Hour)
	}
	return dep, arr, stops, numbers, nil
}

func fallbackBookingURL(query models.Query) string {
	params := url.Values{}
	params.Set("origin", query.Origin)
	params.Set("destination", query.Destination)
	params.Set("departDate", query.DepartureDate)
	if query.ReturnDate != nil {
		params.Set("returnDate", *query.ReturnDate)
	}
	params.Set("adults", fmt.Sprint(query.Adults))
	params.Set("children", fmt.Sprint(query.Children))
	params.Set("infants", fmt.Sprint(query.Infants))
	params.Set("currency", query.Currency)
	return airasiaPublicSearchURL + "?" + params.Encode()
}
