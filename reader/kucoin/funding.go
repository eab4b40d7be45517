package kucoin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/internal/symbols"
	"fundingflow/logger"
	"fundingflow/reader"

	api "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	fundingfees "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/futures/fundingfees"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api-futures.kucoin.com"

// defaultSymbols covers the liquid USDT-margined contracts polled when the
// venue configuration does not list an explicit set. KuCoin only serves
// funding data per instrument, so the adapter always works from a list.
var defaultSymbols = []string{
	"XBTUSDTM", "ETHUSDTM", "SOLUSDTM", "XRPUSDTM", "DOGEUSDTM",
	"ADAUSDTM", "LTCUSDTM", "LINKUSDTM", "AVAXUSDTM", "DOTUSDTM",
}

// Reader polls per-contract funding rates from KuCoin futures. The venue is
// additive: its records only supplement symbols the primary exchanges do not
// already cover.
type Reader struct {
	cfg        config.VenueConfig
	fundingAPI fundingfees.FundingFeesAPI
	symbols    []string
	intervals  *intervals.Store
	cooldown   *reader.Cooldown
	limiter    *rate.Limiter
	maxConc    int
	log        *logger.Log
}

func NewReader(venueCfg config.VenueConfig, readerCfg config.ReaderConfig, store *intervals.Store) *Reader {
	baseURL := venueCfg.URL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	transportOpt := sdktype.NewTransportOptionBuilder().
		SetTimeout(readerCfg.Timeout).
		Build()
	option := sdktype.NewClientOptionBuilder().
		WithFuturesEndpoint(baseURL).
		WithTransportOption(transportOpt).
		Build()
	client := api.NewClient(option)

	syms := venueCfg.Symbols
	if len(syms) == 0 {
		syms = defaultSymbols
	}

	rps := readerCfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := readerCfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	maxConc := venueCfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = readerCfg.MaxConcurrent
	}
	if maxConc <= 0 {
		maxConc = 4
	}

	return &Reader{
		cfg:        venueCfg,
		fundingAPI: client.RestService().GetFuturesService().GetFundingFeesAPI(),
		symbols:    syms,
		intervals:  store,
		cooldown:   reader.NewCooldown(venueCfg.Cooldown),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxConc:    maxConc,
		log:        logger.GetLogger(),
	}
}

func (r *Reader) Name() string { return "kucoin" }

func (r *Reader) Additive() bool { return true }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	if !r.cooldown.Ready() {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		records []model.FundingRecord
	)
	sem := make(chan struct{}, r.maxConc)

	for _, symbol := range r.symbols {
		if ctx.Err() != nil {
			break
		}
		symbol := strings.ToUpper(symbol)
		if !strings.HasSuffix(symbol, "USDTM") {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			rec, err := r.fetchContract(ctx, symbol)
			if err != nil {
				r.log.WithComponent("kucoin_reader").WithFields(logger.Fields{
					"symbol": symbol,
				}).WithError(err).Debug("failed to fetch kucoin funding rate")
				return
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(records) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return records, nil
}

func (r *Reader) fetchContract(ctx context.Context, symbol string) (model.FundingRecord, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return model.FundingRecord{}, err
	}

	req := fundingfees.NewGetCurrentFundingRateReqBuilder().SetSymbol(symbol).Build()
	resp, err := r.fundingAPI.GetCurrentFundingRate(req, ctx)
	if err != nil {
		return model.FundingRecord{}, err
	}
	if resp == nil {
		return model.FundingRecord{}, fmt.Errorf("empty funding rate response for %s", symbol)
	}

	// Granularity is the settlement window in milliseconds.
	var embedded float64
	if resp.Granularity > 0 {
		embedded = float64(resp.Granularity) / (1000 * 3600)
	}

	canonical := symbols.Canonical("kucoin", symbol)
	return model.FundingRecord{
		Exchange:      "kucoin",
		Symbol:        canonical,
		Rate:          model.Fraction(resp.Value).Percent(),
		IntervalHours: r.intervals.Resolve("kucoin", canonical, embedded),
		MarginType:    model.MarginStable,
	}, nil
}
