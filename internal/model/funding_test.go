package model

import "testing"

func TestFractionPercent(t *testing.T) {
	if got := Fraction(0.000073).Percent(); got != 0.0073 {
		t.Errorf("Fraction(0.000073).Percent() = %v, want 0.0073", got)
	}
	if got := Fraction(-0.0001).Percent(); got != -0.01 {
		t.Errorf("Fraction(-0.0001).Percent() = %v, want -0.01", got)
	}
}

func TestRecordKeys(t *testing.T) {
	r := FundingRecord{Exchange: "Binance", Symbol: "btcusdt", MarginType: MarginStable}
	if r.Key() != "BTCUSDT|binance|stable" {
		t.Errorf("unexpected key: %s", r.Key())
	}
	if r.VenueKey() != "BTCUSDT|binance" {
		t.Errorf("unexpected venue key: %s", r.VenueKey())
	}
}
