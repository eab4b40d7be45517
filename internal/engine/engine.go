// Package engine holds the pure analytics over a funding snapshot: annualized
// yield conversion, signed rate rankings, and the cross-exchange spread scan.
// Nothing here touches the network or the cache; every function is a plain
// transformation over record slices so the properties are directly testable.
package engine

import (
	"math"
	"sort"

	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
)

// ZeroRateEpsilon bounds the band treated as "no funding". Venues publish
// exact zeros for delisted or freshly listed contracts; those rows carry no
// signal and are excluded from rankings and the spread scan.
const ZeroRateEpsilon = 1e-6

// Annualize converts a percent-per-interval rate into a yearly percentage.
// A non-positive interval falls back to the common 8h settlement period.
func Annualize(rate, intervalHours float64) float64 {
	if intervalHours <= 0 {
		intervalHours = intervals.FallbackHours
	}
	return rate * 24 * 365 / intervalHours
}

// NegativeView returns the records with a negative rate, most negative first.
// The sort is stable so records tied on rate keep their snapshot order.
func NegativeView(records []model.FundingRecord) []model.FundingRecord {
	out := make([]model.FundingRecord, 0, len(records))
	for _, rec := range records {
		if rec.Rate < -ZeroRateEpsilon {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate < out[j].Rate })
	return out
}

// PositiveView returns the records with a positive rate, highest first.
func PositiveView(records []model.FundingRecord) []model.FundingRecord {
	out := make([]model.FundingRecord, 0, len(records))
	for _, rec := range records {
		if rec.Rate > ZeroRateEpsilon {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate > out[j].Rate })
	return out
}

// ScanOptions controls the arbitrage scan.
type ScanOptions struct {
	// MinSpread excludes opportunities whose spread is strictly below the
	// threshold; a spread exactly at the threshold is kept.
	MinSpread float64
	// CompareAcrossMarginTypes admits coin-margined records into the scan.
	// Off by default: a stable/coin pair is not directly tradeable as one
	// delta-neutral position.
	CompareAcrossMarginTypes bool
}

// Opportunities scans a snapshot for cross-exchange funding spreads. Records
// are grouped by canonical symbol; for each symbol listed on at least two
// exchanges the minimum and maximum rates define the spread. Ties keep the
// first-encountered record so the result is deterministic for a given
// snapshot order. Results are sorted by absolute spread, widest first.
func Opportunities(records []model.FundingRecord, opt ScanOptions) []model.Opportunity {
	groups := make(map[string][]model.FundingRecord)
	order := make([]string, 0)
	for _, rec := range records {
		if !opt.CompareAcrossMarginTypes && rec.MarginType != model.MarginStable {
			continue
		}
		if math.Abs(rec.Rate) <= ZeroRateEpsilon {
			continue
		}
		if _, seen := groups[rec.Symbol]; !seen {
			order = append(order, rec.Symbol)
		}
		groups[rec.Symbol] = append(groups[rec.Symbol], rec)
	}

	out := make([]model.Opportunity, 0, len(order))
	for _, symbol := range order {
		group := groups[symbol]
		if len(group) < 2 {
			continue
		}

		min, max := group[0], group[0]
		exchanges := map[string]struct{}{}
		for _, rec := range group {
			exchanges[rec.Exchange] = struct{}{}
			if rec.Rate < min.Rate {
				min = rec
			}
			if rec.Rate > max.Rate {
				max = rec
			}
		}
		// A symbol listed on a single exchange cannot be arbitraged even
		// when it appears twice under different margin types.
		if len(exchanges) < 2 {
			continue
		}

		spread := max.Rate - min.Rate
		if spread < opt.MinSpread {
			continue
		}

		out = append(out, model.Opportunity{
			Symbol:             symbol,
			MinExchange:        min.Exchange,
			MinRate:            min.Rate,
			MinIntervalHours:   min.IntervalHours,
			MinAnnualYield:     Annualize(min.Rate, min.IntervalHours),
			MaxExchange:        max.Exchange,
			MaxRate:            max.Rate,
			MaxIntervalHours:   max.IntervalHours,
			MaxAnnualYield:     Annualize(max.Rate, max.IntervalHours),
			Spread:             spread,
			MismatchedInterval: min.IntervalHours != max.IntervalHours,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Spread) > math.Abs(out[j].Spread)
	})
	return out
}
