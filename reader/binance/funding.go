package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/internal/symbols"
	"fundingflow/logger"
	"fundingflow/models"
)

const defaultBaseURL = "https://fapi.binance.com"

// Reader fetches current funding rates from Binance USDT-margined futures
// through the premium index endpoint. Per-symbol settlement intervals come
// from the fundingInfo metadata endpoint, which only lists contracts that
// deviate from the venue-wide 8h default.
type Reader struct {
	cfg       config.VenueConfig
	client    *futures.Client
	baseURL   string
	intervals *intervals.Store
	stream    *Stream
	log       *logger.Log
}

func NewReader(venueCfg config.VenueConfig, readerCfg config.ReaderConfig, store *intervals.Store) *Reader {
	log := logger.GetLogger()

	httpClient := &http.Client{Timeout: readerCfg.Timeout}

	client := futures.NewClient("", "")
	client.HTTPClient = httpClient

	base := defaultBaseURL
	if venueCfg.URL != "" {
		if parsed, err := url.Parse(venueCfg.URL); err == nil && parsed.Host != "" {
			base = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
		}
	}
	client.SetApiEndpoint(base)

	r := &Reader{
		cfg:       venueCfg,
		client:    client,
		baseURL:   base,
		intervals: store,
		log:       log,
	}
	if venueCfg.Stream {
		r.stream = NewStream(log)
	}

	log.WithComponent("binance_reader").WithFields(logger.Fields{
		"base_url": base,
		"timeout":  readerCfg.Timeout,
	}).Info("binance funding reader initialized")

	return r
}

func (r *Reader) Name() string { return "binance" }

// StartStream launches the mark price websocket worker when streaming is
// enabled. The stream serves as a fallback source when the REST fetch fails.
func (r *Reader) StartStream(ctx context.Context) {
	if r.stream != nil {
		r.stream.Start(ctx)
	}
}

func (r *Reader) StopStream() {
	if r.stream != nil {
		r.stream.Stop()
	}
}

// Fetch pulls the premium index for all instruments and converts it into
// funding records. On REST failure a sufficiently fresh websocket cache is
// used instead, so a transient API outage does not blank the venue.
func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	log := r.log.WithComponent("binance_reader")

	start := time.Now()
	items, err := r.client.NewPremiumIndexService().Do(ctx)
	if err != nil {
		if r.stream != nil {
			if cached := r.stream.Rates(2 * time.Minute); len(cached) > 0 {
				log.WithError(err).Warn("premium index request failed, serving websocket cache")
				return r.convertStream(cached), nil
			}
		}
		return nil, fmt.Errorf("premium index request: %w", err)
	}
	logger.LogPerformanceEntry(log, "binance_reader", "premium_index", time.Since(start), nil)

	records := make([]model.FundingRecord, 0, len(items))
	for _, item := range items {
		if item == nil || !strings.HasSuffix(item.Symbol, "USDT") {
			continue
		}
		rate, err := strconv.ParseFloat(item.LastFundingRate, 64)
		if err != nil {
			continue
		}

		canonical := symbols.Canonical("binance", item.Symbol)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		rec := model.FundingRecord{
			Exchange:      "binance",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("binance", canonical, 0),
			MarginType:    model.MarginStable,
		}
		if item.NextFundingTime > 0 {
			rec.NextFundingTime = time.UnixMilli(item.NextFundingTime).UTC()
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Reader) convertStream(cached []StreamRate) []model.FundingRecord {
	records := make([]model.FundingRecord, 0, len(cached))
	for _, sr := range cached {
		if !strings.HasSuffix(sr.Symbol, "USDT") {
			continue
		}
		canonical := symbols.Canonical("binance", sr.Symbol)
		if !symbols.StableQuoted(canonical) {
			continue
		}
		records = append(records, model.FundingRecord{
			Exchange:        "binance",
			Symbol:          canonical,
			Rate:            model.Fraction(sr.Rate).Percent(),
			IntervalHours:   r.intervals.Resolve("binance", canonical, 0),
			MarginType:      model.MarginStable,
			NextFundingTime: sr.NextFundingTime,
		})
	}
	return records
}

// PreloadIntervals refreshes the per-symbol settlement interval override
// table from the fundingInfo endpoint.
func (r *Reader) PreloadIntervals(ctx context.Context) error {
	log := r.log.WithComponent("binance_reader")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/fapi/v1/fundingInfo", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("fundingInfo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fundingInfo status %d", resp.StatusCode)
	}

	var infos []models.BinanceFundingInfoResp
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return fmt.Errorf("fundingInfo decode: %w", err)
	}

	table := make(map[string]float64, len(infos))
	for _, info := range infos {
		hours, err := info.FundingIntervalHours.Float64()
		if err != nil || hours <= 0 {
			continue
		}
		table[symbols.Canonical("binance", info.Symbol)] = hours
	}
	r.intervals.ReplaceOverrides("binance", table)

	log.WithFields(logger.Fields{"overrides": len(table)}).Info("binance funding intervals preloaded")
	return nil
}
