package bingx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fundingflow/config"
	"fundingflow/internal/intervals"
)

func newTestReader(url string) *Reader {
	return NewReader(
		config.VenueConfig{Enabled: true, URL: url},
		config.ReaderConfig{Timeout: 2 * time.Second, Retry: config.RetryConfig{MaxAttempts: 1}},
		intervals.NewStore(map[string]float64{"bingx": 1}),
	)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"msg":"","data":[
			{"symbol":"BTC-USDT","fundingRate":"0.0001","fundingTime":1700000000000},
			{"symbol":"ETH-USD","fundingRate":"0.0001","fundingTime":0}
		]}`))
	}))
	defer srv.Close()

	records, err := newTestReader(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	if records[0].Symbol != "BTCUSDT" || records[0].Rate != 0.01 || records[0].IntervalHours != 1 {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestFetchVenueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":100400,"msg":"bad request","data":[]}`))
	}))
	defer srv.Close()

	if _, err := newTestReader(srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-zero code")
	}
}
