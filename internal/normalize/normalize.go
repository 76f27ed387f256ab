package normalize

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dharmasatrya/fareaggregator/internal/models"
)

// RateProvider quotes how many units of to one unit of from buys.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// ConversionError means an offer's prices could not be expressed in the
// target currency. It aborts the run that produced it.
type ConversionError struct {
	Source string
	From   string
	To     string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s offer from %q to %q: %v", e.Source, e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

type Normalizer struct {
	rates RateProvider
}

func NewNormalizer(rates RateProvider) *Normalizer {
	return &Normalizer{rates: rates}
}

// Normalize returns canonical copies of offers priced in target. Prices are
// rounded half-up to two places after conversion; offers already in target
// keep their amounts untouched.
func (n *Normalizer) Normalize(ctx context.Context, offers []models.Offer, target string) ([]models.Offer, error) {
	target = strings.ToUpper(strings.TrimSpace(target))
	rates := make(map[string]decimal.Decimal)

	result := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		o = canonical(o)
		if o.Currency != target {
			rate, ok := rates[o.Currency]
			if !ok {
				var err error
				rate, err = n.rates.Rate(ctx, o.Currency, target)
				if err != nil {
					return nil, &ConversionError{Source: o.Source, From: o.Currency, To: target, Err: err}
				}
				rates[o.Currency] = rate
			}
			o = convert(o, rate, target)
		}
		result = append(result, o)
	}
	return result, nil
}

func canonical(o models.Offer) models.Offer {
	o.Source = strings.ToLower(strings.TrimSpace(o.Source))
	o.Origin = strings.ToUpper(strings.TrimSpace(o.Origin))
	o.Destination = strings.ToUpper(strings.TrimSpace(o.Destination))
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	o.Airline = strings.TrimSpace(o.Airline)
	o.DepartureAt = o.DepartureAt.UTC()
	o.ArrivalAt = o.ArrivalAt.UTC()
	return o
}

func convert(o models.Offer, rate decimal.Decimal, target string) models.Offer {
	o.TotalPrice = o.TotalPrice.Mul(rate).Round(2)
	o.BasePrice = convertNull(o.BasePrice, rate)
	o.Taxes = convertNull(o.Taxes, rate)
	o.Fees = convertNull(o.Fees, rate)
	o.Currency = target
	return o
}

func convertNull(v decimal.NullDecimal, rate decimal.Decimal) decimal.NullDecimal {
	if !v.Valid {
		return v
	}
	return decimal.NewNullDecimal(v.Decimal.Mul(rate).Round(2))
}
