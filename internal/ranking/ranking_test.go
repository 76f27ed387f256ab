package ranking

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dharmasatrya/fareaggregator/internal/models"
)

func offer(id, price string, duration, stops int) models.Offer {
	return models.Offer{
		ID:          id,
		TotalPrice:  decimal.RequireFromString(price),
		DurationMin: duration,
		Stops:       stops,
	}
}

func ids(offers []models.Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.ID
	}
	return out
}

func TestRank_PriceThenStopsThenDuration(t *testing.T) {
	offers := []models.Offer{
		offer("300/120/0", "300", 120, 0),
		offer("280/180/1", "280", 180, 1),
		offer("280/170/0", "280", 170, 0),
	}

	ranked := Rank(offers)
	assert.Equal(t, []string{"280/170/0", "280/180/1", "300/120/0"}, ids(ranked))
	// input untouched
	assert.Equal(t, "300/120/0", offers[0].ID)
}

func TestRank_StopsBeatDuration(t *testing.T) {
	ranked := Rank([]models.Offer{
		offer("slow-direct", "100.00", 300, 0),
		offer("fast-connecting", "100", 90, 1),
	})
	assert.Equal(t, []string{"slow-direct", "fast-connecting"}, ids(ranked))
}

func TestRank_Stable(t *testing.T) {
	ranked := Rank([]models.Offer{
		offer("first", "150.50", 100, 0),
		offer("cheaper", "99.99", 100, 0),
		offer("second", "150.5", 100, 0),
		offer("third", "150.50", 100, 0),
	})
	assert.Equal(t, []string{"cheaper", "first", "second", "third"}, ids(ranked))
}

func TestTop(t *testing.T) {
	offers := []models.Offer{offer("a", "1", 1, 0), offer("b", "2", 1, 0), offer("c", "3", 1, 0)}

	assert.Equal(t, []string{"a", "b"}, ids(Top(offers, 2)))
	assert.Len(t, Top(offers, 10), 3)
	assert.Len(t, Top(offers, 0), 3)
	assert.Empty(t, Top(nil, 5))
}
