package bingx

import (
	"context"
	"fmt"
	"strconv"
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

const defaultURL = "https://api.bingx.com/openApi/swap/v2/quote/fundingRate"

// Reader fetches current funding rates from BingX USDT perpetuals.
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

func (r *Reader) Name() string { return "bingx" }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	if !r.cooldown.Ready() {
		return nil, nil
	}

	var resp models.BingxFundingResp
	if err := r.client.GetJSON(ctx, r.url, nil, &resp); err != nil {
		return nil, fmt.Errorf("funding rate request: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("venue code %d: %s", resp.Code, resp.Msg)
	}

	records := make([]model.FundingRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		if !strings.HasSuffix(item.Symbol, "-USDT") {
			continue
		}
		rate, err := strconv.ParseFloat(item.FundingRate, 64)
		if err != nil {
			continue
		}

		canonical := symbols.Canonical("bingx", item.Symbol)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		rec := model.FundingRecord{
			Exchange:      "bingx",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("bingx", canonical, 0),
			MarginType:    model.MarginStable,
		}
		if item.FundingTime > 0 {
			rec.NextFundingTime = time.UnixMilli(item.FundingTime).UTC()
		}
		records = append(records, rec)
	}
	return records, nil
}
