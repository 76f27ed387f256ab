package models

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type TripType string

const (
	TripOneWay    TripType = "one_way"
	TripRoundTrip TripType = "round_trip"
)

type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

type StopPreference string

const (
	StopsAny      StopPreference = "any"
	StopsNonStop  StopPreference = "non_stop"
	StopsWith     StopPreference = "with_stops"
	StopsMultiple StopPreference = "multiple_stops" // older clients
)

// Query is the canonical search input. It is immutable once a search starts.
type Query struct {
	Origin         string         `json:"origin"`
	Destination    string         `json:"destination"`
	DepartureDate  string         `json:"departure_date"`
	ReturnDate     *string        `json:"return_date"`
	TripType       TripType       `json:"trip_type"`
	Adults         int            `json:"adults"`
	Children       int            `json:"children"`
	Infants        int            `json:"infants"`
	Cabin          CabinClass     `json:"cabin"`
	Currency       string         `json:"currency"`
	StopPreference StopPreference `json:"stop_preference"`
	Sources        []string       `json:"sources"`
}

// Canonical returns a copy with codes upper-cased, sources lower-cased and
// blank entries dropped.
func (q Query) Canonical() Query {
	out := q
	out.Origin = strings.ToUpper(strings.TrimSpace(q.Origin))
	out.Destination = strings.ToUpper(strings.TrimSpace(q.Destination))
	out.Currency = strings.ToUpper(strings.TrimSpace(q.Currency))
	out.DepartureDate = strings.TrimSpace(q.DepartureDate)
	if q.ReturnDate != nil {
		rd := strings.TrimSpace(*q.ReturnDate)
		if rd == "" {
			out.ReturnDate = nil
		} else {
			out.ReturnDate = &rd
		}
	}
	out.TripType = TripType(strings.ToLower(strings.TrimSpace(string(q.TripType))))
	out.Cabin = CabinClass(strings.ToLower(strings.TrimSpace(string(q.Cabin))))
	out.StopPreference = StopPreference(strings.ToLower(strings.TrimSpace(string(q.StopPreference))))
	out.Sources = NormalizeSources(q.Sources)
	return out
}

// NormalizeSources lower-cases and trims source names, dropping blanks.
func NormalizeSources(sources []string) []string {
	if sources == nil {
		return nil
	}
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Passengers is the number of seats the query asks for.
func (q Query) Passengers() int {
	return q.Adults + q.Children + q.Infants
}

// Validate canonicalizes the query in place, fills defaults and rejects
// inputs no connector can serve.
func (q *Query) Validate() error {
	*q = q.Canonical()

	if q.TripType == "" {
		q.TripType = TripRoundTrip
	}
	if q.Adults == 0 {
		q.Adults = 1
	}
	if q.Cabin == "" {
		q.Cabin = CabinEconomy
	}
	if q.Currency == "" {
		q.Currency = "MYR"
	}
	if q.StopPreference == "" {
		q.StopPreference = StopsAny
	}

	if len(q.Origin) != 3 {
		return ErrInvalidOrigin
	}
	if len(q.Destination) != 3 {
		return ErrInvalidDestination
	}
	if len(q.Currency) != 3 {
		return ErrInvalidCurrency
	}
	switch q.TripType {
	case TripOneWay, TripRoundTrip:
	default:
		return ErrInvalidTripType
	}
	switch q.Cabin {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
	default:
		return ErrInvalidCabin
	}
	switch q.StopPreference {
	case StopsAny, StopsNonStop, StopsWith, StopsMultiple:
	default:
		return ErrInvalidStopPreference
	}
	if q.Adults < 1 || q.Adults > 9 || q.Children < 0 || q.Children > 9 || q.Infants < 0 || q.Infants > 9 {
		return ErrInvalidPassengers
	}

	departure, err := time.Parse(DateLayout, q.DepartureDate)
	if err != nil {
		return ErrInvalidDepartureDate
	}
	if q.TripType == TripRoundTrip && q.ReturnDate == nil {
		return ErrMissingReturnDate
	}
	if q.ReturnDate != nil {
		ret, err := time.Parse(DateLayout, *q.ReturnDate)
		if err != nil {
			return ErrInvalidReturnDate
		}
		if ret.Before(departure) {
			return ErrReturnBeforeDeparture
		}
	}
	return nil
}

type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrInvalidOrigin         ValidationError = "origin must be a 3-letter code"
	ErrInvalidDestination    ValidationError = "destination must be a 3-letter code"
	ErrInvalidCurrency       ValidationError = "currency must be a 3-letter code"
	ErrInvalidTripType       ValidationError = "trip_type must be one_way or round_trip"
	ErrInvalidCabin          ValidationError = "cabin must be economy, premium_economy, business or first"
	ErrInvalidStopPreference ValidationError = "stop_preference must be any, non_stop, with_stops or multiple_stops"
	ErrInvalidPassengers     ValidationError = "adults must be 1-9, children and infants 0-9"
	ErrInvalidDepartureDate  ValidationError = "departure_date must be YYYY-MM-DD"
	ErrInvalidReturnDate     ValidationError = "return_date must be YYYY-MM-DD"
	ErrMissingReturnDate     ValidationError = "return_date is required when trip_type is round_trip"
	ErrReturnBeforeDeparture ValidationError = "return_date must be on or after departure_date"
)
