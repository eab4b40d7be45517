package model

import (
	"fmt"
	"strings"
	"time"
)

// MarginType distinguishes stable-margined (USDT/USDC collateral) contracts
// from coin-margined ones. Cross-exchange spreads are only directly tradeable
// between contracts of the same margin type.
type MarginType string

const (
	MarginStable MarginType = "stable"
	MarginCoin   MarginType = "coin"
)

// FundingRecord represents one exchange's current funding rate for a single
// perpetual contract. Rate is stored as a percentage per settlement interval
// (0.0073 means 0.0073%), never as an exchange-native fraction.
type FundingRecord struct {
	Exchange        string     `json:"exchange"`
	Symbol          string     `json:"symbol"`
	Rate            float64    `json:"rate"`
	IntervalHours   float64    `json:"interval_hours"`
	MarginType      MarginType `json:"margin_type"`
	NextFundingTime time.Time  `json:"next_funding_time,omitempty"`

	// Derived at normalization time for presentation.
	DailyPayments float64 `json:"daily_payments"`
	AnnualYield   float64 `json:"annual_yield"`
}

// Key identifies a record within one snapshot for de-duplication purposes.
func (r FundingRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s", strings.ToUpper(r.Symbol), strings.ToLower(r.Exchange), r.MarginType)
}

// VenueKey ignores the margin type; additive venues are merged on this key.
func (r FundingRecord) VenueKey() string {
	return fmt.Sprintf("%s|%s", strings.ToUpper(r.Symbol), strings.ToLower(r.Exchange))
}

// Snapshot is one complete refresh cycle across all venues. It is immutable
// once installed in the cache; a new refresh replaces it wholesale.
type Snapshot struct {
	RefreshID string          `json:"refresh_id"`
	FetchedAt time.Time       `json:"fetched_at"`
	Records   []FundingRecord `json:"records"`
}

// Opportunity is a cross-exchange funding spread for one symbol, derived on
// demand from a snapshot and discarded after rendering.
type Opportunity struct {
	Symbol string `json:"symbol"`

	MinExchange      string  `json:"min_exchange"`
	MinRate          float64 `json:"min_rate"`
	MinIntervalHours float64 `json:"min_interval_hours"`
	MinAnnualYield   float64 `json:"min_annual_yield"`

	MaxExchange      string  `json:"max_exchange"`
	MaxRate          float64 `json:"max_rate"`
	MaxIntervalHours float64 `json:"max_interval_hours"`
	MaxAnnualYield   float64 `json:"max_annual_yield"`

	// Spread is max minus min, in percent-per-interval units as stored. When
	// the two sides settle on different intervals the raw spread is not
	// risk-matched; MismatchedInterval flags that and the annualized yields
	// above give the comparable figures.
	Spread             float64 `json:"spread"`
	MismatchedInterval bool    `json:"mismatched_interval"`
}
