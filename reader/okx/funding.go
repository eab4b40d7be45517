package okx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/internal/symbols"
	"fundingflow/logger"
	"fundingflow/models"
	"fundingflow/reader"
)

const defaultBaseURL = "https://www.okx.com"

// Reader fetches current funding rates from OKX USDT swaps. The venue splits
// the data across two endpoints: a bulk instrument list and a per-instrument
// funding-rate lookup, so one logical fetch fans out into one request per
// instrument under a bounded worker pool and a shared rate limiter.
type Reader struct {
	cfg           config.VenueConfig
	client        *reader.Client
	base          string
	intervals     *intervals.Store
	limiter       *rate.Limiter
	maxConcurrent int
	log           *logger.Log
}

func NewReader(venueCfg config.VenueConfig, readerCfg config.ReaderConfig, store *intervals.Store) *Reader {
	base := strings.TrimRight(venueCfg.URL, "/")
	if base == "" {
		base = defaultBaseURL
	}

	maxConcurrent := venueCfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = readerCfg.MaxConcurrent
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	return &Reader{
		cfg:           venueCfg,
		client:        reader.NewClient(readerCfg),
		base:          base,
		intervals:     store,
		limiter:       rate.NewLimiter(rate.Limit(10), 5),
		maxConcurrent: maxConcurrent,
		log:           logger.GetLogger(),
	}
}

func (r *Reader) Name() string { return "okx" }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	log := r.log.WithComponent("okx_reader")

	var instResp models.OkxInstrumentsResp
	if err := r.client.GetJSON(ctx, r.base+"/api/v5/public/instruments?instType=SWAP", nil, &instResp); err != nil {
		return nil, fmt.Errorf("instruments request: %w", err)
	}
	if instResp.Code != "0" {
		return nil, fmt.Errorf("instruments code %s: %s", instResp.Code, instResp.Msg)
	}

	instIDs := make([]string, 0, len(instResp.Data))
	for _, inst := range instResp.Data {
		if strings.HasSuffix(inst.InstID, "-USDT-SWAP") {
			instIDs = append(instIDs, inst.InstID)
		}
	}
	if len(instIDs) == 0 {
		log.Warn("okx returned no usdt swap instruments")
		return nil, nil
	}

	start := time.Now()

	var (
		mu      sync.Mutex
		records []model.FundingRecord
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, r.maxConcurrent)

	for _, instID := range instIDs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(instID string) {
			defer wg.Done()
			defer func() { <-sem }()

			rec, ok := r.fetchInstrument(ctx, instID)
			if !ok {
				return
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
		}(instID)
	}
	wg.Wait()

	logger.LogPerformanceEntry(log, "okx_reader", "funding_rate_fanout", time.Since(start), logger.Fields{
		"instruments": len(instIDs),
		"records":     len(records),
	})
	return records, nil
}

func (r *Reader) fetchInstrument(ctx context.Context, instID string) (model.FundingRecord, bool) {
	log := r.log.WithComponent("okx_reader").WithFields(logger.Fields{"inst_id": instID})

	if err := r.limiter.Wait(ctx); err != nil {
		return model.FundingRecord{}, false
	}

	var frResp models.OkxFundingRateResp
	url := r.base + "/api/v5/public/funding-rate?instId=" + instID
	if err := r.client.GetJSON(ctx, url, nil, &frResp); err != nil {
		log.WithError(err).Warn("funding-rate request failed")
		return model.FundingRecord{}, false
	}
	if frResp.Code != "0" || len(frResp.Data) == 0 {
		return model.FundingRecord{}, false
	}

	fr := frResp.Data[0]
	rateVal, err := strconv.ParseFloat(fr.FundingRate, 64)
	if err != nil {
		return model.FundingRecord{}, false
	}

	canonical := symbols.Canonical("okx", instID)
	if !symbols.StableQuoted(canonical) {
		return model.FundingRecord{}, false
	}

	rec := model.FundingRecord{
		Exchange:      "okx",
		Symbol:        canonical,
		Rate:          model.Fraction(rateVal).Percent(),
		IntervalHours: r.intervals.Resolve("okx", canonical, 0),
		MarginType:    model.MarginStable,
	}
	if ms, err := strconv.ParseInt(fr.FundingTime, 10, 64); err == nil && ms > 0 {
		rec.NextFundingTime = time.UnixMilli(ms).UTC()
	}
	return rec, true
}
