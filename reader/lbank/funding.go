package lbank

import (
	"context"
	"fmt"
	"strings"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/internal/symbols"
	"fundingflow/logger"
	"fundingflow/models"
	"fundingflow/reader"
)

const defaultURL = "https://api.lbank.info/v2/futures/fundingRate.do"

// Reader fetches current funding rates from LBank USDT perpetuals.
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

func (r *Reader) Name() string { return "lbank" }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	if !r.cooldown.Ready() {
		return nil, nil
	}

	var resp models.LbankFundingResp
	if err := r.client.GetJSON(ctx, r.url, nil, &resp); err != nil {
		return nil, fmt.Errorf("funding rate request: %w", err)
	}
	if resp.ErrorCode != 0 {
		return nil, fmt.Errorf("venue reported error code %d", resp.ErrorCode)
	}

	records := make([]model.FundingRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		if !strings.HasSuffix(strings.ToUpper(item.Symbol), "_USDT") {
			continue
		}
		rate, err := item.FundingRate.Float64()
		if err != nil {
			continue
		}

		canonical := symbols.Canonical("lbank", item.Symbol)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		records = append(records, model.FundingRecord{
			Exchange:      "lbank",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("lbank", canonical, 0),
			MarginType:    model.MarginStable,
		})
	}
	return records, nil
}
