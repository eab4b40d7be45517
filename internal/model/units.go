package model

// Fraction is an exchange-native funding rate (0.000073 meaning 0.0073%).
// Every adapter converts to Percent exactly once, at its own boundary, so a
// missing or doubled conversion shows up in one place instead of as a 100x
// display error somewhere downstream.
type Fraction float64

// Percent converts a native fraction into percent-per-interval units, the
// only unit FundingRecord.Rate is allowed to carry.
func (f Fraction) Percent() float64 {
	return float64(f) * 100
}

// Percent is a rate already expressed in percent-per-interval units.
type Percent float64

func (p Percent) Float() float64 { return float64(p) }
