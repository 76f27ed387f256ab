package ranking

import (
	"sort"

	"github.com/dharmasatrya/fareaggregator/internal/models"
)

// Rank orders offers by total price, then stops, then duration. Offers that
// tie on all three keep their input order.
func Rank(offers []models.Offer) []models.Offer {
	result := make([]models.Offer, len(offers))
	copy(result, offers)

	sort.SliceStable(result, func(i, j int) bool {
		return less(result[i], result[j])
	})
	return result
}

func less(a, b models.Offer) bool {
	if c := a.TotalPrice.Cmp(b.TotalPrice); c != 0 {
		return c < 0
	}
	if a.Stops != b.Stops {
		return a.Stops < b.Stops
	}
	return a.DurationMin < b.DurationMin
}

// Top returns at most n offers. A non-positive n means no cap.
func Top(offers []models.Offer, n int) []models.Offer {
	if n <= 0 || len(offers) <= n {
		return offers
	}
	return offers[:n]
}
