package mexc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/internal/symbols"
	"fundingflow/logger"
	"fundingflow/models"
	"fundingflow/reader"
)

const defaultURL = "https://contract.mexc.com/api/v1/contract/ticker"

// Reader fetches current funding rates from MEXC USDT perpetuals via the
// contract ticker endpoint.
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

func (r *Reader) Name() string { return "mexc" }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	if !r.cooldown.Ready() {
		return nil, nil
	}

	var resp models.MexcFundingResp
	if err := r.client.GetJSON(ctx, r.url, nil, &resp); err != nil {
		return nil, fmt.Errorf("ticker request: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("venue reported failure, code %d", resp.Code)
	}

	records := make([]model.FundingRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		if !strings.HasSuffix(item.Symbol, "_USDT") {
			continue
		}
		rate, err := item.FundingRate.Float64()
		if err != nil {
			continue
		}

		canonical := symbols.Canonical("mexc", item.Symbol)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		rec := model.FundingRecord{
			Exchange:      "mexc",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("mexc", canonical, 0),
			MarginType:    model.MarginStable,
		}
		if item.NextSettleTime > 0 {
			rec.NextFundingTime = time.UnixMilli(item.NextSettleTime).UTC()
		}
		records = append(records, rec)
	}
	return records, nil
}
