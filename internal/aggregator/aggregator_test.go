package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundingflow/config"
	"fundingflow/internal/cache"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/logger"
	"fundingflow/processor"
	"fundingflow/reader"
)

type stubAdapter struct {
	name     string
	additive bool
	records  []model.FundingRecord
	err      error
	calls    int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	s.calls++
	return s.records, s.err
}

func (s *stubAdapter) Additive() bool { return s.additive }

func rec(exchange, symbol string, rate, interval float64) model.FundingRecord {
	return model.FundingRecord{
		Exchange:      exchange,
		Symbol:        symbol,
		Rate:          rate,
		IntervalHours: interval,
		MarginType:    model.MarginStable,
	}
}

func newTestAggregator(adapters ...reader.Adapter) *Aggregator {
	return &Aggregator{
		cfg: &config.Config{
			Refresh: config.RefreshConfig{
				Interval:           time.Second,
				MinSpreadThreshold: 0.0005,
				TopLimit:           10,
			},
		},
		intervals:  intervals.NewStore(nil),
		normalizer: processor.NewNormalizer(),
		cache:      cache.NewStore(),
		adapters:   adapters,
		log:        logger.GetLogger(),
	}
}

func TestQueriesBeforeFirstRefresh(t *testing.T) {
	a := newTestAggregator()

	if _, err := a.CurrentSnapshot(""); !errors.Is(err, ErrNotReady) {
		t.Errorf("CurrentSnapshot: %v", err)
	}
	if _, err := a.Top(DirectionNegative, 5); !errors.Is(err, ErrNotReady) {
		t.Errorf("Top: %v", err)
	}
	if _, err := a.Opportunities("", -1); !errors.Is(err, ErrNotReady) {
		t.Errorf("Opportunities: %v", err)
	}
}

func TestRefreshBuildsSnapshot(t *testing.T) {
	a := newTestAggregator(
		&stubAdapter{name: "binance", records: []model.FundingRecord{
			rec("binance", "BTCUSDT", 0.01, 8),
			rec("binance", "ETHUSDT", -0.02, 8),
		}},
		&stubAdapter{name: "bybit", records: []model.FundingRecord{
			rec("bybit", "BTCUSDT", -0.05, 8),
		}},
	)

	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snap, err := a.CurrentSnapshot("")
	if err != nil {
		t.Fatalf("CurrentSnapshot failed: %v", err)
	}
	if len(snap.Records) != 3 || snap.RefreshID == "" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	filtered, err := a.CurrentSnapshot("btcusdt")
	if err != nil {
		t.Fatalf("filtered snapshot failed: %v", err)
	}
	if len(filtered.Records) != 2 {
		t.Errorf("filtered count = %d, want 2", len(filtered.Records))
	}

	neg, err := a.Top(DirectionNegative, 1)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(neg) != 1 || neg[0].Exchange != "bybit" {
		t.Errorf("top negative = %+v", neg)
	}

	opps, err := a.Opportunities("", -1)
	if err != nil {
		t.Fatalf("Opportunities failed: %v", err)
	}
	if len(opps) != 1 || opps[0].Symbol != "BTCUSDT" {
		t.Fatalf("opportunities = %+v", opps)
	}
	if opps[0].MinExchange != "bybit" || opps[0].MaxExchange != "binance" {
		t.Errorf("opportunity sides = %+v", opps[0])
	}
}

func TestVenueFailureDegrades(t *testing.T) {
	a := newTestAggregator(
		&stubAdapter{name: "binance", records: []model.FundingRecord{
			rec("binance", "BTCUSDT", 0.01, 8),
		}},
		&stubAdapter{name: "htx", err: errors.New("gateway timeout")},
	)

	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	snap, err := a.CurrentSnapshot("")
	if err != nil {
		t.Fatalf("CurrentSnapshot failed: %v", err)
	}
	if len(snap.Records) != 1 || snap.Records[0].Exchange != "binance" {
		t.Errorf("unexpected snapshot: %+v", snap.Records)
	}
}

func TestFailedRefreshRetainsSnapshot(t *testing.T) {
	stub := &stubAdapter{name: "binance", records: []model.FundingRecord{
		rec("binance", "BTCUSDT", 0.01, 8),
	}}
	a := newTestAggregator(stub)

	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	before, _ := a.CurrentSnapshot("")

	stub.records = nil
	stub.err = errors.New("venue down")
	if err := a.Refresh(context.Background()); err == nil {
		t.Fatal("expected error for empty refresh")
	}

	after, err := a.CurrentSnapshot("")
	if err != nil {
		t.Fatalf("CurrentSnapshot failed: %v", err)
	}
	if after.RefreshID != before.RefreshID || !after.FetchedAt.Equal(before.FetchedAt) {
		t.Errorf("snapshot regressed: before=%+v after=%+v", before, after)
	}
}

func TestAdditiveAdapterMerge(t *testing.T) {
	a := newTestAggregator(
		&stubAdapter{name: "binance", records: []model.FundingRecord{
			rec("binance", "BTCUSDT", 0.01, 8),
		}},
		&stubAdapter{name: "lighter", additive: true, records: []model.FundingRecord{
			rec("binance", "BTCUSDT", 0.09, 8),
			rec("lighter", "OBSUSDT", 0.03, 1),
		}},
	)

	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	snap, _ := a.CurrentSnapshot("")
	if len(snap.Records) != 2 {
		t.Fatalf("record count = %d, want 2", len(snap.Records))
	}
	for _, r := range snap.Records {
		if r.Exchange == "binance" && r.Rate != 0.01 {
			t.Errorf("additive record overwrote a primary one: %+v", r)
		}
	}
}

func TestTopUnknownDirection(t *testing.T) {
	a := newTestAggregator(&stubAdapter{name: "binance", records: []model.FundingRecord{
		rec("binance", "BTCUSDT", 0.01, 8),
	}})
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := a.Top(Direction("sideways"), 5); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}

func TestOpportunitiesSymbolFilter(t *testing.T) {
	a := newTestAggregator(
		&stubAdapter{name: "binance", records: []model.FundingRecord{
			rec("binance", "BTCUSDT", 0.01, 8),
			rec("binance", "ETHUSDT", 0.01, 8),
		}},
		&stubAdapter{name: "bybit", records: []model.FundingRecord{
			rec("bybit", "BTCUSDT", -0.03, 8),
			rec("bybit", "ETHUSDT", 0.05, 8),
		}},
	)
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	opps, err := a.Opportunities("ethusdt", -1)
	if err != nil {
		t.Fatalf("Opportunities failed: %v", err)
	}
	if len(opps) != 1 || opps[0].Symbol != "ETHUSDT" {
		t.Errorf("filtered opportunities = %+v", opps)
	}
}

func TestStartStop(t *testing.T) {
	stub := &stubAdapter{name: "binance", records: []model.FundingRecord{
		rec("binance", "BTCUSDT", 0.01, 8),
	}}
	a := newTestAggregator(stub)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start must fail while running")
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, err := a.CurrentSnapshot(""); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no snapshot after Start")
		case <-time.After(10 * time.Millisecond):
		}
	}
	a.Stop()

	if stub.calls == 0 {
		t.Error("adapter never fetched")
	}
}
