package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/dharmasatrya/fareaggregator/internal/models"
)

const minuteLayout = "2006-01-02T15:04Z07:00"

// Key identifies an itinerary independently of who quoted it. Instants are
// compared in UTC at minute precision and flight numbers ignore order.
func Key(o models.Offer) string {
	numbers := make([]string, len(o.FlightNumbers))
	for i, n := range o.FlightNumbers {
		numbers[i] = strings.ToUpper(strings.TrimSpace(n))
	}
	sort.Strings(numbers)

	parts := []string{
		o.Origin,
		o.Destination,
		o.DepartureAt.UTC().Truncate(time.Minute).Format(minuteLayout),
		o.ArrivalAt.UTC().Truncate(time.Minute).Format(minuteLayout),
		o.Airline,
		strings.Join(numbers, ","),
		o.Cabin,
	}
	for i, p := range parts {
		parts[i] = strings.ToUpper(strings.TrimSpace(p))
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Offers keeps one offer per Key: the cheaper one, or on a price tie the
// shorter one, otherwise whichever came first. Survivors sit at the position
// where their key was first seen and carry DedupKey.
func Offers(offers []models.Offer) []models.Offer {
	index := make(map[string]int, len(offers))
	result := make([]models.Offer, 0, len(offers))

	for _, o := range offers {
		key := Key(o)
		o.DedupKey = key

		pos, seen := index[key]
		if !seen {
			index[key] = len(result)
			result = append(result, o)
			continue
		}
		if better(o, result[pos]) {
			result[pos] = o
		}
	}
	return result
}

func better(candidate, current models.Offer) bool {
	if c := candidate.TotalPrice.Cmp(current.TotalPrice); c != 0 {
		return c < 0
	}
	return candidate.DurationMin < current.DurationMin
}
