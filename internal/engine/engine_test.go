package engine

import (
	"math"
	"testing"

	"fundingflow/internal/model"
)

func rec(exchange, symbol string, rate, interval float64) model.FundingRecord {
	return model.FundingRecord{
		Exchange:      exchange,
		Symbol:        symbol,
		Rate:          rate,
		IntervalHours: interval,
		MarginType:    model.MarginStable,
	}
}

func TestAnnualize(t *testing.T) {
	cases := []struct {
		rate, interval, want float64
	}{
		{0.01, 8, 10.95},
		{0.01, 1, 87.6},
		{-0.02, 4, -43.8},
		{0.01, 0, 10.95},
		{0.01, -3, 10.95},
	}
	for _, c := range cases {
		got := Annualize(c.rate, c.interval)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Annualize(%v, %v) = %v, want %v", c.rate, c.interval, got, c.want)
		}
	}
}

func TestViews(t *testing.T) {
	records := []model.FundingRecord{
		rec("binance", "AUSDT", 0.03, 8),
		rec("bybit", "BUSDT", -0.05, 8),
		rec("okx", "CUSDT", 0, 8),
		rec("gate", "DUSDT", -0.01, 8),
		rec("mexc", "EUSDT", 0.07, 8),
	}

	neg := NegativeView(records)
	if len(neg) != 2 || neg[0].Symbol != "BUSDT" || neg[1].Symbol != "DUSDT" {
		t.Errorf("negative view = %+v", neg)
	}
	pos := PositiveView(records)
	if len(pos) != 2 || pos[0].Symbol != "EUSDT" || pos[1].Symbol != "AUSDT" {
		t.Errorf("positive view = %+v", pos)
	}
}

func TestViewsStableOnTies(t *testing.T) {
	records := []model.FundingRecord{
		rec("binance", "AUSDT", 0.01, 8),
		rec("bybit", "AUSDT", 0.01, 8),
		rec("okx", "AUSDT", 0.01, 8),
	}
	pos := PositiveView(records)
	if pos[0].Exchange != "binance" || pos[1].Exchange != "bybit" || pos[2].Exchange != "okx" {
		t.Errorf("tie order not preserved: %+v", pos)
	}
}

func TestOpportunities(t *testing.T) {
	records := []model.FundingRecord{
		rec("binance", "BTCUSDT", 0.01, 8),
		rec("bybit", "BTCUSDT", -0.03, 8),
		rec("okx", "BTCUSDT", 0.005, 8),
		rec("binance", "ETHUSDT", 0.01, 8),
		rec("gate", "ETHUSDT", 0.02, 2),
	}

	opps := Opportunities(records, ScanOptions{MinSpread: 0.0005})
	if len(opps) != 2 {
		t.Fatalf("opportunity count = %d, want 2", len(opps))
	}

	// Widest spread first.
	btc := opps[0]
	if btc.Symbol != "BTCUSDT" {
		t.Fatalf("first opportunity = %s, want BTCUSDT", btc.Symbol)
	}
	if btc.MinExchange != "bybit" || btc.MaxExchange != "binance" {
		t.Errorf("btc sides = %s/%s", btc.MinExchange, btc.MaxExchange)
	}
	if math.Abs(btc.Spread-0.04) > 1e-9 {
		t.Errorf("btc spread = %v, want 0.04", btc.Spread)
	}
	if btc.MismatchedInterval {
		t.Error("btc intervals match, flag must be false")
	}

	eth := opps[1]
	if !eth.MismatchedInterval {
		t.Error("eth settles on different intervals, flag must be true")
	}
	if math.Abs(eth.MaxAnnualYield-Annualize(0.02, 2)) > 1e-9 {
		t.Errorf("eth max annual yield = %v", eth.MaxAnnualYield)
	}
}

func TestOpportunitiesThresholdBoundary(t *testing.T) {
	atThreshold := []model.FundingRecord{
		rec("binance", "BTCUSDT", 0.0105, 8),
		rec("bybit", "BTCUSDT", 0.01, 8),
	}
	if got := Opportunities(atThreshold, ScanOptions{MinSpread: 0.0005}); len(got) != 1 {
		t.Errorf("spread exactly at threshold must be kept, got %d", len(got))
	}

	belowThreshold := []model.FundingRecord{
		rec("binance", "BTCUSDT", 0.01049, 8),
		rec("bybit", "BTCUSDT", 0.01, 8),
	}
	if got := Opportunities(belowThreshold, ScanOptions{MinSpread: 0.0005}); len(got) != 0 {
		t.Errorf("spread below threshold must be excluded, got %d", len(got))
	}
}

func TestOpportunitiesSingleExchange(t *testing.T) {
	records := []model.FundingRecord{rec("binance", "BTCUSDT", 0.05, 8)}
	if got := Opportunities(records, ScanOptions{}); len(got) != 0 {
		t.Errorf("single listing produced opportunities: %+v", got)
	}

	// Two margin types on one exchange are still a single venue.
	coin := rec("binance", "BTCUSDT", 0.01, 8)
	coin.MarginType = model.MarginCoin
	records = append(records, coin)
	if got := Opportunities(records, ScanOptions{CompareAcrossMarginTypes: true}); len(got) != 0 {
		t.Errorf("same-exchange pair produced opportunities: %+v", got)
	}
}

func TestOpportunitiesMarginFilter(t *testing.T) {
	coin := rec("bybit", "BTCUSDT", -0.04, 8)
	coin.MarginType = model.MarginCoin
	records := []model.FundingRecord{
		rec("binance", "BTCUSDT", 0.01, 8),
		coin,
	}

	if got := Opportunities(records, ScanOptions{}); len(got) != 0 {
		t.Errorf("coin-margined record compared without the flag: %+v", got)
	}
	got := Opportunities(records, ScanOptions{CompareAcrossMarginTypes: true})
	if len(got) != 1 || got[0].MinExchange != "bybit" {
		t.Errorf("cross-margin scan = %+v", got)
	}
}

func TestOpportunitiesZeroRatesExcluded(t *testing.T) {
	records := []model.FundingRecord{
		rec("binance", "BTCUSDT", 0, 8),
		rec("bybit", "BTCUSDT", 0.05, 8),
	}
	if got := Opportunities(records, ScanOptions{}); len(got) != 0 {
		t.Errorf("zero-rate side produced opportunities: %+v", got)
	}
}
