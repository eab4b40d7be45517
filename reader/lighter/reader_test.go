package lighter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
)

func newTestReader(url, apiKeyEnv string) *Reader {
	return NewReader(
		config.VenueConfig{Enabled: true, URL: url, APIKeyEnv: apiKeyEnv},
		config.ReaderConfig{Timeout: 2 * time.Second, Retry: config.RetryConfig{MaxAttempts: 1}},
		intervals.NewStore(map[string]float64{"lighter": 1}),
	)
}

func fetchSorted(t *testing.T, r *Reader) []model.FundingRecord {
	t.Helper()
	records, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Symbol < records[j].Symbol })
	return records
}

func TestFetchListForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"BTC","rate":0.0001},
			{"market":"ETH","funding_rate":"-0.0002"},
			{"rate":0.5}
		]`))
	}))
	defer srv.Close()

	records := fetchSorted(t, newTestReader(srv.URL, ""))
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	// Bare base tickers gain the stable quote; hourly default applies.
	if records[0].Symbol != "BTCUSDT" || records[0].Rate != 0.01 || records[0].IntervalHours != 1 {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if records[1].Symbol != "ETHUSDT" || records[1].Rate != -0.02 {
		t.Errorf("unexpected record: %+v", records[1])
	}
}

func TestFetchEnvelopeForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fundingRates":[{"symbol":"SOL","fundingRate":"0.0003"}]}`))
	}))
	defer srv.Close()

	records := fetchSorted(t, newTestReader(srv.URL, ""))
	if len(records) != 1 || records[0].Symbol != "SOLUSDT" || records[0].Rate != 0.03 {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestFetchSymbolKeyedForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"DOGE":{"rate":0.0001},"XRP":{"fundingRate":-0.0001}}`))
	}))
	defer srv.Close()

	records := fetchSorted(t, newTestReader(srv.URL, ""))
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	if records[0].Symbol != "DOGEUSDT" || records[1].Symbol != "XRPUSDT" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestFetchSendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	t.Setenv("LIGHTER_API_KEY", "secret")
	if _, err := newTestReader(srv.URL, "LIGHTER_API_KEY").Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got != "Bearer secret" {
		t.Errorf("Authorization header = %q", got)
	}
}

func TestFetchUnexpectedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"nope"`))
	}))
	defer srv.Close()

	if _, err := newTestReader(srv.URL, "").Fetch(context.Background()); err == nil {
		t.Fatal("expected error for scalar response")
	}
}
