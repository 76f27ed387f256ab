package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer is one priced itinerary quoted by one source.
type Offer struct {
	ID            string              `json:"offer_id,omitempty"`
	Source        string              `json:"source"`
	Airline       string              `json:"airline"`
	FlightNumbers []string            `json:"flight_numbers"`
	Origin        string              `json:"origin"`
	Destination   string              `json:"destination"`
	DepartureAt   time.Time           `json:"departure_at"`
	ArrivalAt     time.Time           `json:"arrival_at"`
	Stops         int                 `json:"stops"`
	DurationMin   int                 `json:"duration_minutes"`
	Cabin         string              `json:"cabin,omitempty"`
	FareBrand     string              `json:"fare_brand,omitempty"`
	Baggage       string              `json:"baggage,omitempty"`
	FareRules     string              `json:"fare_rules,omitempty"`
	BasePrice     decimal.NullDecimal `json:"base_price"`
	Taxes         decimal.NullDecimal `json:"taxes"`
	Fees          decimal.NullDecimal `json:"fees"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Currency      string              `json:"currency"`
	BookingURL    string              `json:"booking_url"`
	RawPayload    map[string]any      `json:"raw_payload,omitempty"`
	DeepLinkValid bool                `json:"deep_link_valid"`
	DedupKey      string              `json:"-"`
}

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunTimeout RunStatus = "timeout"
	RunError   RunStatus = "error"
)

// RunResult is the outcome of invoking one connector during one search attempt.
type RunResult struct {
	Source       string    `json:"source"`
	Status       RunStatus `json:"status"`
	LatencyMs    int64     `json:"latency_ms"`
	Offers       []Offer   `json:"-"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// RunRecord is a persisted RunResult.
type RunRecord struct {
	ID           string
	SearchID     string
	Source       string
	Status       RunStatus
	LatencyMs    int64
	ErrorMessage string
	CreatedAt    time.Time
}
