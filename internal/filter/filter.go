package filter

import (
	"github.com/dharmasatrya/fareaggregator/internal/models"
)

// ByStopPreference keeps the offers matching pref, preserving order.
// Unknown and empty preferences pass everything through.
func ByStopPreference(offers []models.Offer, pref models.StopPreference) []models.Offer {
	switch pref {
	case models.StopsNonStop, models.StopsWith, models.StopsMultiple:
	default:
		return offers
	}

	result := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if matchesStops(o, pref) {
			result = append(result, o)
		}
	}
	return result
}

func matchesStops(o models.Offer, pref models.StopPreference) bool {
	switch pref {
	case models.StopsNonStop:
		return o.Stops == 0
	case models.StopsWith, models.StopsMultiple:
		return o.Stops >= 1
	}
	return true
}
