package cache

import (
	"errors"
	"testing"
	"time"

	"fundingflow/internal/model"
)

func snapshot(id string, records ...model.FundingRecord) model.Snapshot {
	return model.Snapshot{
		RefreshID: id,
		FetchedAt: time.Now().UTC(),
		Records:   records,
	}
}

func TestEmptyStore(t *testing.T) {
	s := NewStore()
	if s.Populated() {
		t.Error("fresh store reports populated")
	}
	if _, err := s.Current(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Current on empty store: %v", err)
	}
	if _, err := s.Filter("BTCUSDT"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Filter on empty store: %v", err)
	}
}

func TestInstallAndCurrent(t *testing.T) {
	s := NewStore()
	rec := model.FundingRecord{Exchange: "binance", Symbol: "BTCUSDT", Rate: 0.01}
	if !s.Install(snapshot("r1", rec)) {
		t.Fatal("install rejected a non-empty snapshot")
	}

	snap, err := s.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if snap.RefreshID != "r1" || len(snap.Records) != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	// Reads without an intervening install return the identical snapshot.
	again, _ := s.Current()
	if again.RefreshID != snap.RefreshID || !again.FetchedAt.Equal(snap.FetchedAt) {
		t.Errorf("repeated read differed: %+v vs %+v", snap, again)
	}
}

func TestEmptyRefreshRetainsSnapshot(t *testing.T) {
	s := NewStore()
	s.Install(snapshot("r1", model.FundingRecord{Exchange: "binance", Symbol: "BTCUSDT", Rate: 0.01}))
	before, _ := s.Current()

	if s.Install(snapshot("r2")) {
		t.Error("install accepted an empty snapshot")
	}

	after, err := s.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if after.RefreshID != "r1" || !after.FetchedAt.Equal(before.FetchedAt) {
		t.Errorf("snapshot regressed: %+v", after)
	}
}

func TestFilterCaseInsensitive(t *testing.T) {
	s := NewStore()
	s.Install(snapshot("r1",
		model.FundingRecord{Exchange: "binance", Symbol: "BTCUSDT", Rate: 0.01},
		model.FundingRecord{Exchange: "bybit", Symbol: "BTCUSDT", Rate: 0.02},
		model.FundingRecord{Exchange: "binance", Symbol: "ETHUSDT", Rate: 0.03},
	))

	snap, err := s.Filter("btcusdt")
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(snap.Records) != 2 {
		t.Errorf("filtered count = %d, want 2", len(snap.Records))
	}
	if snap.RefreshID != "r1" {
		t.Errorf("filtered snapshot lost refresh identity: %+v", snap)
	}

	snap, err = s.Filter("NOPEUSDT")
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(snap.Records) != 0 {
		t.Errorf("unknown symbol returned records: %+v", snap.Records)
	}
}

func TestRefreshGuard(t *testing.T) {
	s := NewStore()
	if !s.TryBeginRefresh() {
		t.Fatal("first claim refused")
	}
	if s.TryBeginRefresh() {
		t.Fatal("overlapping claim granted")
	}
	s.EndRefresh()
	if !s.TryBeginRefresh() {
		t.Fatal("claim refused after release")
	}
}
