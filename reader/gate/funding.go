package gate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/internal/symbols"
	"fundingflow/logger"
	"fundingflow/models"
	"fundingflow/reader"
)

const defaultURL = "https://api.gateio.ws/api/v4/futures/usdt/tickers"

// Reader fetches current funding rates from Gate USDT perpetuals. The
// tickers endpoint returns a bare JSON array with no envelope.
type Reader struct {
	url       string
	client    *reader.Client
	intervals *intervals.Store
	cooldown  *reader.Cooldown
	log       *logger.Log
}

func NewReader(venueCfg config.VenueConfig, readerCfg config.ReaderConfig, store *intervals.Store) *Reader {
	url := venueCfg.URL
	if url == "" {
		url = defaultURL
	}
	return &Reader{
		url:       url,
		client:    reader.NewClient(readerCfg),
		intervals: store,
		cooldown:  reader.NewCooldown(venueCfg.Cooldown),
		log:       logger.GetLogger(),
	}
}

func (r *Reader) Name() string { return "gate" }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	if !r.cooldown.Ready() {
		return nil, nil
	}

	var items []models.GateTickerItem
	if err := r.client.GetJSON(ctx, r.url, nil, &items); err != nil {
		return nil, fmt.Errorf("tickers request: %w", err)
	}

	records := make([]model.FundingRecord, 0, len(items))
	for _, item := range items {
		instrument := item.Instrument()
		if !strings.HasSuffix(instrument, "_USDT") {
			continue
		}
		rate, err := strconv.ParseFloat(item.FundingRate, 64)
		if err != nil {
			continue
		}

		canonical := symbols.Canonical("gate", instrument)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		records = append(records, model.FundingRecord{
			Exchange:      "gate",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("gate", canonical, 0),
			MarginType:    model.MarginStable,
		})
	}
	return records, nil
}
