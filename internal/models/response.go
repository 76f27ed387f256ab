package models

import "time"

type SearchCreateResponse struct {
	SearchID  string       `json:"search_id"`
	Status    SearchStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

type OfferOut struct {
	OfferID       string    `json:"offer_id"`
	Source        string    `json:"source"`
	Airline       string    `json:"airline"`
	FlightNumbers []string  `json:"flight_numbers"`
	DepartureAt   time.Time `json:"departure_at"`
	ArrivalAt     time.Time `json:"arrival_at"`
	Stops         int       `json:"stops"`
	DurationMin   int       `json:"duration_minutes"`
	Cabin         string    `json:"cabin,omitempty"`
	Baggage       string    `json:"baggage,omitempty"`
	FareRules     string    `json:"fare_rules,omitempty"`
	TotalPrice    float64   `json:"total_price"`
	Currency      string    `json:"currency"`
	Formatted     string    `json:"formatted_price"`
	BookingURL    string    `json:"booking_url"`
	DeepLinkValid bool      `json:"deep_link_valid"`
}

type OfferDetailOut struct {
	OfferOut
	FareBrand  string         `json:"fare_brand,omitempty"`
	BasePrice  *float64       `json:"base_price"`
	Taxes      *float64       `json:"taxes"`
	Fees       *float64       `json:"fees"`
	RawPayload map[string]any `json:"raw_payload"`
}

type ConnectorFailureOut struct {
	Source  string    `json:"source"`
	Status  RunStatus `json:"status"`
	Message string    `json:"message"`
}

type ConnectorRunOut struct {
	Source       string    `json:"source"`
	Status       RunStatus `json:"status"`
	LatencyMs    int64     `json:"latency_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OfferCount   int       `json:"offer_count"`
}

type SearchResultResponse struct {
	SearchID           string                `json:"search_id"`
	Status             SearchStatus          `json:"status"`
	Error              string                `json:"error,omitempty"`
	Query              Query                 `json:"query"`
	CheapestFlight     *OfferOut             `json:"cheapest_flight"`
	Alternatives       []OfferOut            `json:"alternatives"`
	PriceLastCheckedAt *time.Time            `json:"price_last_checked_at"`
	Failures           []ConnectorFailureOut `json:"failures"`
	ConnectorRuns      []ConnectorRunOut     `json:"connector_runs"`
}

type ConnectorHealthItem struct {
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	LastLatencyMs *int64     `json:"last_latency_ms"`
	LastError     string     `json:"last_error,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
}

type ConnectorHealthResponse struct {
	Connectors []ConnectorHealthItem `json:"connectors"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
