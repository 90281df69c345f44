package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiclab/topicbot/internal/domain"
)

func TestToDomainMarketOpen(t *testing.T) {
	am := APIMarket{
		ID:            "123",
		Question:      "Will it rain tomorrow?",
		Slug:          "will-it-rain",
		EndDate:       "2024-06-01T00:00:00Z",
		OutcomePrices: `["0.62","0.38"]`,
		Volume:        1000,
		Liquidity:     500,
	}

	m := am.ToDomainMarket()
	assert.Equal(t, "123", m.ID)
	assert.Equal(t, domain.ResolutionUnresolved, m.Resolution)
	assert.Nil(t, m.ResolvedAt)
	require.NotNil(t, m.EndDate)
	assert.InDelta(t, 0.62, m.YesPrice, 1e-12)
}

func TestToDomainMarketResolvedByWinnerToken(t *testing.T) {
	am := APIMarket{
		ID:         "456",
		Closed:     true,
		EndDate:    "2024-06-01T00:00:00Z",
		ClosedTime: "2024-06-02T12:00:00Z",
		Tokens: []Token{
			{TokenID: "t1", Outcome: "Yes", Winner: false},
			{TokenID: "t2", Outcome: "No", Winner: true},
		},
	}

	m := am.ToDomainMarket()
	assert.Equal(t, domain.ResolutionNo, m.Resolution)
	require.NotNil(t, m.ResolvedAt)
	assert.Equal(t, time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC), *m.ResolvedAt)
}

func TestToDomainMarketResolvedByPrice(t *testing.T) {
	am := APIMarket{
		ID:            "789",
		Closed:        true,
		EndDate:       "2024-06-01",
		OutcomePrices: `["0.97","0.03"]`,
	}

	m := am.ToDomainMarket()
	assert.Equal(t, domain.ResolutionYes, m.Resolution)
	// closedTime absent, falls back to end date.
	require.NotNil(t, m.ResolvedAt)
	assert.Equal(t, m.EndDate, m.ResolvedAt)
}

func TestFlexTypes(t *testing.T) {
	var am APIMarket
	payload := `{"id":"1","closed":"true","volume":"123.5","liquidity":42}`
	require.NoError(t, json.Unmarshal([]byte(payload), &am))
	assert.True(t, bool(am.Closed))
	assert.InDelta(t, 123.5, float64(am.Volume), 1e-12)
	assert.InDelta(t, 42, float64(am.Liquidity), 1e-12)

	payload = `{"id":"2","closed":false,"volume":""}`
	require.NoError(t, json.Unmarshal([]byte(payload), &am))
	assert.False(t, bool(am.Closed))
	assert.Zero(t, float64(am.Volume))
}
