package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/topiclab/topicbot/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "closed" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// Token is a single outcome token in a Gamma market payload.
type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Winner  bool   `json:"winner"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Slug          string    `json:"slug"`
	Active        flexBool  `json:"active"`
	Closed        flexBool  `json:"closed"`
	EndDate       string    `json:"endDate"`
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.97\",\"0.03\"]"
	Tokens        []Token   `json:"tokens"`
	Volume        flexFloat `json:"volume"`
	Liquidity     flexFloat `json:"liquidity"`
	ClosedTime    string    `json:"closedTime"`
	CreatedAt     string    `json:"createdAt"`
	UpdatedAt     string    `json:"updatedAt"`
}

// ToDomainMarket converts an APIMarket to a domain.Market. Resolution is
// derived from the winning token when present, otherwise from the final yes
// price (> 0.5 means yes), matching how the Gamma API reports settled
// markets.
func (m *APIMarket) ToDomainMarket() domain.Market {
	out := domain.Market{
		ID:         m.ID,
		Question:   m.Question,
		Slug:       m.Slug,
		Resolution: domain.ResolutionUnresolved,
		Volume:     float64(m.Volume),
		Liquidity:  float64(m.Liquidity),
		YesPrice:   m.yesPrice(),
	}

	if t, ok := parseAPITime(m.EndDate); ok {
		out.EndDate = &t
	}
	if t, ok := parseAPITime(m.CreatedAt); ok {
		out.CreatedAt = t
	}
	if t, ok := parseAPITime(m.UpdatedAt); ok {
		out.UpdatedAt = t
	}

	if bool(m.Closed) {
		out.Resolution = m.resolution()
		if t, ok := parseAPITime(m.ClosedTime); ok {
			out.ResolvedAt = &t
		} else if out.EndDate != nil {
			out.ResolvedAt = out.EndDate
		}
	}
	return out
}

func (m *APIMarket) resolution() domain.Resolution {
	for _, t := range m.Tokens {
		if t.Winner {
			if strings.EqualFold(t.Outcome, "Yes") {
				return domain.ResolutionYes
			}
			return domain.ResolutionNo
		}
	}
	if m.yesPrice() > 0.5 {
		return domain.ResolutionYes
	}
	return domain.ResolutionNo
}

// yesPrice decodes the first entry of the JSON-encoded outcomePrices string.
func (m *APIMarket) yesPrice() float64 {
	if m.OutcomePrices == "" {
		return 0
	}
	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil || len(prices) == 0 {
		return 0
	}
	p, err := strconv.ParseFloat(prices[0], 64)
	if err != nil {
		return 0
	}
	return p
}

// parseAPITime handles the ISO variants the Gamma API sends.
func parseAPITime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
