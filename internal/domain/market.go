package domain

import "time"

// Resolution is the final outcome of a prediction market.
type Resolution string

const (
	ResolutionUnresolved Resolution = "unresolved"
	ResolutionYes        Resolution = "yes"
	ResolutionNo         Resolution = "no"
)

// Resolved reports whether the resolution is a terminal outcome.
func (r Resolution) Resolved() bool {
	return r == ResolutionYes || r == ResolutionNo
}

// Market represents a Polymarket prediction market. Once a market resolves it
// is immutable except for bookkeeping fields (UpdatedAt).
type Market struct {
	ID         string
	Question   string
	Slug       string
	EndDate    *time.Time // calendar close date; may be absent pre-resolution
	Resolution Resolution
	ResolvedAt *time.Time // set only once resolved
	YesPrice   float64
	Volume     float64
	Liquidity  float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Resolved reports whether the market has reached a terminal outcome.
func (m Market) Resolved() bool {
	return m.Resolution.Resolved()
}

// MarketSnapshot is a point-in-time price observation for a market, used to
// study how followers reprice after a related leader resolves.
type MarketSnapshot struct {
	MarketID  string
	Timestamp time.Time
	YesPrice  float64
	Volume    float64
	Liquidity float64
}
