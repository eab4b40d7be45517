// Package aggregator owns the refresh lifecycle: it builds the venue
// adapters, fans fetches out on a timer, normalizes the results into a
// snapshot, and answers queries against the cached snapshot.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fundingflow/config"
	"fundingflow/internal/cache"
	"fundingflow/internal/engine"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/logger"
	"fundingflow/processor"
	"fundingflow/reader"
	"fundingflow/reader/binance"
	"fundingflow/reader/bingx"
	"fundingflow/reader/bitget"
	"fundingflow/reader/bybit"
	"fundingflow/reader/gate"
	"fundingflow/reader/htx"
	"fundingflow/reader/kucoin"
	"fundingflow/reader/lbank"
	"fundingflow/reader/lighter"
	"fundingflow/reader/mexc"
	"fundingflow/reader/okx"
)

// ErrNotReady is returned for queries before the first successful refresh.
var ErrNotReady = cache.ErrNotReady

// Direction selects which side of the funding distribution a ranking covers.
type Direction string

const (
	DirectionNegative Direction = "negative"
	DirectionPositive Direction = "positive"
)

type adapterFactory func(config.VenueConfig, config.ReaderConfig, *intervals.Store) reader.Adapter

// factories maps venue names to adapter constructors. Adding a venue means
// adding a reader package and one entry here.
var factories = map[string]adapterFactory{
	"binance": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return binance.NewReader(v, r, s)
	},
	"bybit": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return bybit.NewReader(v, r, s)
	},
	"okx": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return okx.NewReader(v, r, s)
	},
	"htx": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return htx.NewReader(v, r, s)
	},
	"mexc": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return mexc.NewReader(v, r, s)
	},
	"gate": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return gate.NewReader(v, r, s)
	},
	"lbank": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return lbank.NewReader(v, r, s)
	},
	"bitget": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return bitget.NewReader(v, r, s)
	},
	"bingx": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return bingx.NewReader(v, r, s)
	},
	"kucoin": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return kucoin.NewReader(v, r, s)
	},
	"lighter": func(v config.VenueConfig, r config.ReaderConfig, s *intervals.Store) reader.Adapter {
		return lighter.NewReader(v, r, s)
	},
}

// defaultIntervalHours carries the documented venue-wide settlement periods,
// overridable per venue through configuration.
var defaultIntervalHours = map[string]float64{
	"binance": 8,
	"bybit":   8,
	"okx":     8,
	"mexc":    8,
	"bitget":  8,
	"kucoin":  8,
	"htx":     4,
	"lbank":   6,
	"gate":    2,
	"bingx":   1,
	"lighter": 1,
}

// streamer is implemented by adapters with a supplementary websocket worker.
type streamer interface {
	StartStream(ctx context.Context)
	StopStream()
}

type Aggregator struct {
	cfg        *config.Config
	intervals  *intervals.Store
	normalizer *processor.Normalizer
	cache      *cache.Store
	adapters   []reader.Adapter
	log        *logger.Log

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds an aggregator with one adapter per enabled venue. Unknown venue
// names are a configuration error.
func New(cfg *config.Config) (*Aggregator, error) {
	defaults := make(map[string]float64, len(defaultIntervalHours))
	for venue, hours := range defaultIntervalHours {
		defaults[venue] = hours
	}
	for venue, hours := range cfg.DefaultIntervals() {
		defaults[venue] = hours
	}
	store := intervals.NewStore(defaults)

	names := cfg.EnabledVenues()
	sort.Strings(names)

	adapters := make([]reader.Adapter, 0, len(names))
	for _, name := range names {
		factory, ok := factories[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown venue %q", name)
		}
		adapters = append(adapters, factory(cfg.Venues[name], cfg.Reader, store))
	}

	return &Aggregator{
		cfg:        cfg,
		intervals:  store,
		normalizer: processor.NewNormalizer(),
		cache:      cache.NewStore(),
		adapters:   adapters,
		log:        logger.GetLogger(),
	}, nil
}

// Start launches the streams, runs the initial interval preload, and starts
// the refresh loop. It returns once the loop goroutine is scheduled; the
// first snapshot lands asynchronously.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("aggregator already running")
	}
	a.running = true
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	for _, ad := range a.adapters {
		if s, ok := ad.(streamer); ok {
			s.StartStream(runCtx)
		}
	}
	a.preloadIntervals(runCtx)

	a.wg.Add(1)
	go a.run(runCtx)

	a.log.WithComponent("aggregator").WithFields(logger.Fields{
		"venues":           len(a.adapters),
		"refresh_interval": a.refreshInterval().String(),
	}).Info("aggregator started")
	return nil
}

// Stop cancels the refresh loop and waits for it to drain.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, ad := range a.adapters {
		if s, ok := ad.(streamer); ok {
			s.StopStream()
		}
	}
	a.wg.Wait()
	a.log.WithComponent("aggregator").Info("aggregator stopped")
}

func (a *Aggregator) refreshInterval() time.Duration {
	if a.cfg.Refresh.Interval > 0 {
		return a.cfg.Refresh.Interval
	}
	return 45 * time.Second
}

func (a *Aggregator) run(ctx context.Context) {
	defer a.wg.Done()

	refresh := time.NewTicker(a.refreshInterval())
	defer refresh.Stop()

	preloadInterval := a.cfg.Refresh.PreloadInterval
	if preloadInterval <= 0 {
		preloadInterval = time.Hour
	}
	preload := time.NewTicker(preloadInterval)
	defer preload.Stop()

	a.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			a.Refresh(ctx)
		case <-preload.C:
			a.preloadIntervals(ctx)
		}
	}
}

func (a *Aggregator) preloadIntervals(ctx context.Context) {
	for _, ad := range a.adapters {
		p, ok := ad.(reader.IntervalPreloader)
		if !ok {
			continue
		}
		preloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := p.PreloadIntervals(preloadCtx)
		cancel()
		if err != nil {
			a.log.WithComponent("aggregator").WithFields(logger.Fields{
				"venue": ad.Name(),
			}).WithError(err).Warn("interval preload failed, keeping previous overrides")
		}
	}
}

// Refresh runs one fetch cycle across all adapters and installs the
// resulting snapshot. A cycle that overlaps a still-running one is skipped.
// A cycle yielding no records leaves the previous snapshot untouched.
func (a *Aggregator) Refresh(ctx context.Context) error {
	log := a.log.WithComponent("aggregator")

	if !a.cache.TryBeginRefresh() {
		log.Debug("refresh tick skipped, previous cycle still running")
		return nil
	}
	defer a.cache.EndRefresh()

	start := time.Now()
	type result struct {
		name     string
		additive bool
		records  []model.FundingRecord
		err      error
	}
	results := make(chan result, len(a.adapters))

	var wg sync.WaitGroup
	for _, ad := range a.adapters {
		wg.Add(1)
		go func(ad reader.Adapter) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, a.refreshInterval())
			defer cancel()

			records, err := ad.Fetch(fetchCtx)
			additive := false
			if aa, ok := ad.(reader.AdditiveAdapter); ok {
				additive = aa.Additive()
			}
			results <- result{name: ad.Name(), additive: additive, records: records, err: err}
		}(ad)
	}
	wg.Wait()
	close(results)

	var primary, additive []model.FundingRecord
	venues := 0
	for res := range results {
		if res.err != nil {
			log.WithFields(logger.Fields{"venue": res.name}).WithError(res.err).Warn("venue fetch failed")
			continue
		}
		if len(res.records) == 0 {
			continue
		}
		logger.IncrementVenueFetch(res.name, len(res.records))
		venues++
		if res.additive {
			additive = append(additive, res.records...)
		} else {
			primary = append(primary, res.records...)
		}
	}

	records := a.normalizer.Normalize(primary, additive)
	if len(records) == 0 {
		log.Warn("refresh produced no records, keeping previous snapshot")
		return fmt.Errorf("refresh produced no records")
	}

	snap := model.Snapshot{
		RefreshID: uuid.NewString(),
		FetchedAt: time.Now().UTC(),
		Records:   records,
	}
	a.cache.Install(snap)
	logger.IncrementRefresh()
	logger.LogDataFlowEntry(log, "normalizer", "cache", len(records), "funding_records")

	log.WithFields(logger.Fields{
		"refresh_id": snap.RefreshID,
		"records":    len(records),
		"venues":     venues,
		"duration":   time.Since(start).String(),
	}).Info("snapshot refreshed")
	return nil
}

// CurrentSnapshot returns the latest snapshot, narrowed to one symbol when
// given. ErrNotReady before the first successful refresh.
func (a *Aggregator) CurrentSnapshot(symbol string) (model.Snapshot, error) {
	if strings.TrimSpace(symbol) == "" {
		return a.cache.Current()
	}
	return a.cache.Filter(symbol)
}

// Top returns the n strongest rates on one side of the distribution. n <= 0
// uses the configured default limit.
func (a *Aggregator) Top(direction Direction, n int) ([]model.FundingRecord, error) {
	snap, err := a.cache.Current()
	if err != nil {
		return nil, err
	}

	var view []model.FundingRecord
	switch direction {
	case DirectionNegative:
		view = engine.NegativeView(snap.Records)
	case DirectionPositive:
		view = engine.PositiveView(snap.Records)
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	if n <= 0 {
		n = a.cfg.Refresh.TopLimit
	}
	if n <= 0 {
		n = 10
	}
	if len(view) > n {
		view = view[:n]
	}
	return view, nil
}

// Opportunities scans the latest snapshot for cross-exchange spreads. A
// negative minSpread uses the configured threshold; a symbol narrows the
// result to that contract.
func (a *Aggregator) Opportunities(symbol string, minSpread float64) ([]model.Opportunity, error) {
	snap, err := a.cache.Current()
	if err != nil {
		return nil, err
	}

	if minSpread < 0 {
		minSpread = a.cfg.Refresh.MinSpreadThreshold
	}
	opps := engine.Opportunities(snap.Records, engine.ScanOptions{
		MinSpread:                minSpread,
		CompareAcrossMarginTypes: a.cfg.Refresh.CompareAcrossMarginTypes,
	})

	if want := strings.ToUpper(strings.TrimSpace(symbol)); want != "" {
		filtered := make([]model.Opportunity, 0, 1)
		for _, opp := range opps {
			if opp.Symbol == want {
				filtered = append(filtered, opp)
			}
		}
		opps = filtered
	}

	logger.IncrementOpportunities(len(opps))
	return opps, nil
}

// Annualize converts a percent-per-interval rate into a yearly percentage.
func (a *Aggregator) Annualize(rate, intervalHours float64) float64 {
	return engine.Annualize(rate, intervalHours)
}
