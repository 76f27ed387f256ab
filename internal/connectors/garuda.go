package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dharmasatrya/fareaggregator/internal/connectors/data"
	"github.com/dharmasatrya/fareaggregator/internal/models"
	"github.com/dharmasatrya/fareaggregator/internal/timezone"
)

type garudaResponse struct {
	Flights []garudaFlight `json:"flights"`
}

type garudaFlight struct {
	FlightID     string         `json:"flight_id"`
	Airline      garudaAirline  `json:"airline"`
	FlightNumber string         `json:"flight_number"`
	Connecting   []string       `json:"connecting_flights"`
	Departure    garudaLocation `json:"departure"`
	Arrival      garudaLocation `json:"arrival"`
	Duration     int            `json:"duration_minutes"`
	Stops        int            `json:"stops"`
	Price        garudaPrice    `json:"price"`
	CabinClass   string         `json:"cabin_class"`
	FareBrand    string         `json:"fare_brand"`
	Baggage      garudaBaggage  `json:"baggage"`
}

type garudaAirline struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type garudaLocation struct {
	Airport string `json:"airport"`
	City    string `json:"city"`
	Time    string `json:"time"`
}

type garudaPrice struct {
	Base     *float64 `json:"base"`
	Taxes    *float64 `json:"taxes"`
	Fees     *float64 `json:"fees"`
	Amount   float64  `json:"amount"`
	Currency string   `json:"currency"`
}

type garudaBaggage struct {
	CarryOn int `json:"carry_on"`
	Checked int `json:"checked"`
}

// GarudaConnector serves a fixed inventory loaded from embedded JSON.
type GarudaConnector struct {
	flights []garudaFlight
	latency time.Duration
}

func NewGarudaConnector(latency time.Duration) (*GarudaConnector, error) {
	var resp garudaResponse
	if err := json.Unmarshal(data.GarudaData, &resp); err != nil {
		return nil, fmt.Errorf("decode garuda inventory: %w", err)
	}
	return &GarudaConnector{flights: resp.Flights, latency: latency}, nil
}

func (c *GarudaConnector) Name() string {
	return "garuda"
}

func (c *GarudaConnector) Search(ctx context.Context, query models.Query) ([]models.Offer, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var results []models.Offer
	for _, f := range c.flights {
		if !strings.EqualFold(f.Departure.Airport, query.Origin) ||
			!strings.EqualFold(f.Arrival.Airport, query.Destination) {
			continue
		}
		if !strings.EqualFold(f.CabinClass, string(query.Cabin)) {
			continue
		}

		depTime, err := timezone.ParseTimeWithOffset(f.Departure.Time, f.Departure.Airport)
		if err != nil {
			continue
		}
		// Compare on the local calendar of the departure airport.
		if depTime.In(timezone.LocationByAirport(f.Departure.Airport)).Format(models.DateLayout) != query.DepartureDate {
			continue
		}

		offer, err := c.toOffer(f, query)
		if err != nil {
			return nil, NewConnectorError(c.Name(), "malformed flight "+f.FlightID, err)
		}
		results = append(results, offer)
	}

	return results, nil
}

func (c *GarudaConnector) toOffer(f garudaFlight, query models.Query) (models.Offer, error) {
	depTime, err := timezone.ParseTimeWithOffset(f.Departure.Time, f.Departure.Airport)
	if err != nil {
		return models.Offer{}, err
	}
	arrTime, err := timezone.ParseTimeWithOffset(f.Arrival.Time, f.Arrival.Airport)
	if err != nil {
		return models.Offer{}, err
	}

	duration := f.Duration
	if duration <= 0 {
		duration = int(arrTime.Sub(depTime).Minutes())
	}

	flightNumbers := append([]string{f.FlightNumber}, f.Connecting...)

	params := url.Values{}
	params.Set("flight", f.FlightID)
	params.Set("adults", fmt.Sprint(query.Adults))
	params.Set("children", fmt.Sprint(query.Children))
	params.Set("infants", fmt.Sprint(query.Infants))

	return models.Offer{
		Source:        c.Name(),
		Airline:       f.Airline.Name,
		FlightNumbers: flightNumbers,
		Origin:        f.Departure.Airport,
		Destination:   f.Arrival.Airport,
		DepartureAt:   depTime,
		ArrivalAt:     arrTime,
		Stops:         f.Stops,
		DurationMin:   duration,
		Cabin:         f.CabinClass,
		FareBrand:     f.FareBrand,
		Baggage:       fmt.Sprintf("%dkg cabin, %dkg checked", f.Baggage.CarryOn, f.Baggage.Checked),
		BasePrice:     nullDecimal(f.Price.Base),
		Taxes:         nullDecimal(f.Price.Taxes),
		Fees:          nullDecimal(f.Price.Fees),
		TotalPrice:    decimal.NewFromFloat(f.Price.Amount),
		Currency:      f.Price.Currency,
		BookingURL:    "https://www.garuda-indonesia.com/booking?" + params.Encode(),
		RawPayload: map[string]any{
			"flight_id":    f.FlightID,
			"airline_code": f.Airline.Code,
		},
	}, nil
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}
