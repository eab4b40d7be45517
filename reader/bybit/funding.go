package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/internal/symbols"
	"fundingflow/logger"
	"fundingflow/models"
)

const defaultBaseURL = "https://api.bybit.com"

// Reader fetches current funding rates from Bybit linear perpetuals via the
// v5 market tickers endpoint. Per-symbol settlement intervals come from the
// instruments-info endpoint, which reports them in minutes.
type Reader struct {
	cfg       config.VenueConfig
	client    *bybit.Client
	intervals *intervals.Store
	log       *logger.Log
}

func NewReader(venueCfg config.VenueConfig, readerCfg config.ReaderConfig, store *intervals.Store) *Reader {
	log := logger.GetLogger()

	base := defaultBaseURL
	if venueCfg.URL != "" {
		if parsed, err := url.Parse(venueCfg.URL); err == nil && parsed.Host != "" {
			base = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
		}
	}

	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	client.HTTPClient = &http.Client{Timeout: readerCfg.Timeout}

	r := &Reader{
		cfg:       venueCfg,
		client:    client,
		intervals: store,
		log:       log,
	}

	log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"base_url": base,
		"timeout":  readerCfg.Timeout,
	}).Info("bybit funding reader initialized")

	return r
}

func (r *Reader) Name() string { return "bybit" }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	log := r.log.WithComponent("bybit_reader")

	params := map[string]interface{}{"category": "linear"}

	start := time.Now()
	resp, err := r.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("market tickers request: %w", err)
	}
	logger.LogPerformanceEntry(log, "bybit_reader", "market_tickers", time.Since(start), nil)

	if resp.RetCode != 0 {
		return nil, fmt.Errorf("market tickers retCode %d: %s", resp.RetCode, resp.RetMsg)
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal tickers result: %w", err)
	}
	var result models.BybitTickersResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tickers result: %w", err)
	}

	records := make([]model.FundingRecord, 0, len(result.List))
	for _, item := range result.List {
		if !strings.HasSuffix(item.Symbol, "USDT") || item.FundingRate == "" {
			continue
		}
		rate, err := strconv.ParseFloat(item.FundingRate, 64)
		if err != nil {
			continue
		}

		canonical := symbols.Canonical("bybit", item.Symbol)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		rec := model.FundingRecord{
			Exchange:      "bybit",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("bybit", canonical, 0),
			MarginType:    model.MarginStable,
		}
		if ms, err := strconv.ParseInt(item.NextFundingTime, 10, 64); err == nil && ms > 0 {
			rec.NextFundingTime = time.UnixMilli(ms).UTC()
		}
		records = append(records, rec)
	}
	return records, nil
}

// PreloadIntervals refreshes the per-symbol settlement interval override
// table from instruments-info. Intervals arrive in minutes and are stored
// in hours.
func (r *Reader) PreloadIntervals(ctx context.Context) error {
	log := r.log.WithComponent("bybit_reader")

	params := map[string]interface{}{"category": "linear", "limit": 1000}
	resp, err := r.client.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return fmt.Errorf("instruments-info request: %w", err)
	}
	if resp.RetCode != 0 {
		return fmt.Errorf("instruments-info retCode %d: %s", resp.RetCode, resp.RetMsg)
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal instruments result: %w", err)
	}
	var result models.BybitInstrumentsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode instruments result: %w", err)
	}

	table := make(map[string]float64, len(result.List))
	for _, item := range result.List {
		minutes, err := item.FundingInterval.Float64()
		if err != nil || minutes <= 0 {
			continue
		}
		table[symbols.Canonical("bybit", item.Symbol)] = minutes / 60.0
	}
	r.intervals.ReplaceOverrides("bybit", table)

	log.WithFields(logger.Fields{"overrides": len(table)}).Info("bybit funding intervals preloaded")
	return nil
}
