package htx

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

const defaultURL = "https://api.htx.com/linear-swap-api/v1/swap_batch_funding_rate"

// Reader fetches current funding rates from HTX linear swaps. HTX does not
// publish the settlement interval directly; it is derived from the distance
// between the current and next funding timestamps in the same payload.
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

func (r *Reader) Name() string { return "htx" }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	if !r.cooldown.Ready() {
		return nil, nil
	}

	var resp models.HtxBatchFundingResp
	if err := r.client.GetJSON(ctx, r.url, nil, &resp); err != nil {
		return nil, fmt.Errorf("funding rate request: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("unexpected status %q", resp.Status)
	}

	records := make([]model.FundingRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		if !strings.HasSuffix(item.ContractCode, "-USDT") {
			continue
		}
		rate, err := strconv.ParseFloat(item.FundingRate, 64)
		if err != nil {
			continue
		}

		canonical := symbols.Canonical("htx", item.ContractCode)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		embedded := 0.0
		ft, ftErr := item.FundingTime.Int64()
		nft, nftErr := item.NextFundingTime.Int64()
		if ftErr == nil && nftErr == nil && nft > ft {
			embedded = float64(nft-ft) / (1000 * 3600)
		}

		rec := model.FundingRecord{
			Exchange:      "htx",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("htx", canonical, embedded),
			MarginType:    model.MarginStable,
		}
		if nftErr == nil && nft > 0 {
			rec.NextFundingTime = time.UnixMilli(nft).UTC()
		}
		records = append(records, rec)
	}
	return records, nil
}
