package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"fundingflow/config"
	"fundingflow/internal/intervals"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v5/public/instruments", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT-SWAP","instType":"SWAP","settleCcy":"USDT"},
			{"instId":"ETH-USDT-SWAP","instType":"SWAP","settleCcy":"USDT"},
			{"instId":"BTC-USD-SWAP","instType":"SWAP","settleCcy":"BTC"}
		]}`))
	})
	mux.HandleFunc("/api/v5/public/funding-rate", func(w http.ResponseWriter, r *http.Request) {
		instID := r.URL.Query().Get("instId")
		rate := "0.0001"
		if instID == "ETH-USDT-SWAP" {
			rate = "-0.0003"
		}
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[{"instId":"%s","fundingRate":"%s","fundingTime":"1700000000000"}]}`, instID, rate)
	})
	return httptest.NewServer(mux)
}

func TestFetch(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	store := intervals.NewStore(map[string]float64{"okx": 8})
	r := NewReader(
		config.VenueConfig{Enabled: true, URL: srv.URL, MaxConcurrent: 2},
		config.ReaderConfig{Timeout: 2 * time.Second, Retry: config.RetryConfig{MaxAttempts: 1}},
		store,
	)

	records, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2 (coin-margined swap skipped)", len(records))
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Symbol < records[j].Symbol })
	if records[0].Symbol != "BTCUSDT" || records[0].Rate != 0.01 {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if records[1].Symbol != "ETHUSDT" || records[1].Rate != -0.03 {
		t.Errorf("unexpected record: %+v", records[1])
	}
	if records[0].IntervalHours != 8 {
		t.Errorf("interval = %v, want 8", records[0].IntervalHours)
	}
	if records[0].NextFundingTime.IsZero() {
		t.Error("next funding time not set")
	}
}

func TestFetchVenueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"50011","msg":"rate limited","data":[]}`))
	}))
	defer srv.Close()

	r := NewReader(
		config.VenueConfig{Enabled: true, URL: srv.URL},
		config.ReaderConfig{Timeout: 2 * time.Second, Retry: config.RetryConfig{MaxAttempts: 1}},
		intervals.NewStore(nil),
	)
	if _, err := r.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for venue failure envelope")
	}
}
