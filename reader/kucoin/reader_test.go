package kucoin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"fundingflow/config"
	"fundingflow/internal/intervals"
)

func newTestReader(url string, symbols []string) *Reader {
	return NewReader(
		config.VenueConfig{Enabled: true, URL: url, Symbols: symbols},
		config.ReaderConfig{Timeout: 2 * time.Second, MaxConcurrent: 2},
		intervals.NewStore(map[string]float64{"kucoin": 8}),
	)
}

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/funding-rate/XBTUSDTM/current", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"200000","data":{
			"symbol":".XBTUSDTMFPI8H","granularity":28800000,
			"timePoint":1700000000000,"value":0.0001,"predictedValue":0.0001
		}}`))
	})
	mux.HandleFunc("/api/v1/funding-rate/ETHUSDTM/current", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"200000","data":{
			"symbol":".ETHUSDTMFPI4H","granularity":14400000,
			"timePoint":1700000000000,"value":-0.0002,"predictedValue":0
		}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	records, err := newTestReader(srv.URL, []string{"XBTUSDTM", "ETHUSDTM", "XBTUSDM"}).
		Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Symbol < records[j].Symbol })

	// XBT maps onto BTC and the 8h granularity is carried through.
	if records[0].Symbol != "BTCUSDT" || records[0].Rate != 0.01 || records[0].IntervalHours != 8 {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if records[1].Symbol != "ETHUSDT" || records[1].Rate != -0.02 || records[1].IntervalHours != 4 {
		t.Errorf("unexpected record: %+v", records[1])
	}
}

func TestFetchSkipsFailedContracts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/funding-rate/XBTUSDTM/current", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"200000","data":{
			"symbol":".XBTUSDTMFPI8H","granularity":28800000,
			"timePoint":1700000000000,"value":0.0001,"predictedValue":0.0001
		}}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	records, err := newTestReader(srv.URL, []string{"XBTUSDTM", "ETHUSDTM"}).
		Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 || records[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDefaultSymbols(t *testing.T) {
	r := newTestReader("", nil)
	if len(r.symbols) == 0 {
		t.Fatal("expected default symbol list")
	}
	if !r.Additive() {
		t.Error("kucoin must be additive")
	}
}
