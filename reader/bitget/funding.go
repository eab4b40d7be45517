package bitget

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

const defaultURL = "https://api.bitget.com/api/v2/mix/market/current-fund-rate?productType=USDT-FUTURES"

// Reader fetches current funding rates from Bitget USDT futures. The v2
// endpoint embeds the settlement interval per symbol; v1-era product
// suffixes on symbols are also accepted and canonicalized away.
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

func (r *Reader) Name() string { return "bitget" }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	if !r.cooldown.Ready() {
		return nil, nil
	}

	var resp models.BitgetFundingResp
	if err := r.client.GetJSON(ctx, r.url, nil, &resp); err != nil {
		return nil, fmt.Errorf("funding rate request: %w", err)
	}
	if resp.Code != "00000" {
		return nil, fmt.Errorf("venue code %s: %s", resp.Code, resp.Msg)
	}

	items := resp.Items()
	records := make([]model.FundingRecord, 0, len(items))
	for _, item := range items {
		if !strings.HasSuffix(item.Symbol, "USDT") && !strings.HasSuffix(item.Symbol, "_UMCBL") {
			continue
		}
		rate, err := strconv.ParseFloat(item.FundingRate, 64)
		if err != nil {
			continue
		}

		canonical := symbols.Canonical("bitget", item.Symbol)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		embedded := 0.0
		if hours, err := item.FundingRateInterval.Float64(); err == nil && hours > 0 {
			embedded = hours
		}

		records = append(records, model.FundingRecord{
			Exchange:      "bitget",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("bitget", canonical, embedded),
			MarginType:    model.MarginStable,
		})
	}
	return records, nil
}
