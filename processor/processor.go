// Package processor normalizes the raw per-venue record batches of one
// refresh cycle into the record set a snapshot is built from.
package processor

import (
	"fundingflow/internal/engine"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/logger"
)

// allowedIntervals is the set of settlement periods the covered venues
// actually run. Anything else is venue noise (a half-hour bybit test
// contract, a garbled metadata row) and the record is dropped rather than
// annualized into a wildly wrong yield.
var allowedIntervals = map[float64]struct{}{
	1: {}, 2: {}, 3: {}, 4: {}, 6: {}, 8: {},
}

// Normalizer folds the per-venue batches of one refresh into a single record
// set: settlement intervals coerced onto the allowed grid, zero rates
// suppressed, duplicates resolved last-wins, additive venues merged only for
// contracts the primary venues do not cover, and the derived presentation
// fields filled in.
type Normalizer struct {
	log *logger.Log
}

func NewNormalizer() *Normalizer {
	return &Normalizer{log: logger.GetLogger()}
}

// Normalize merges primary and additive record batches. Primary records are
// processed in input order with later duplicates of the same (symbol,
// exchange, margin) key replacing earlier ones. Additive records are only
// admitted for (symbol, exchange) pairs no primary record covers.
func (n *Normalizer) Normalize(primary, additive []model.FundingRecord) []model.FundingRecord {
	out := make([]model.FundingRecord, 0, len(primary)+len(additive))
	index := make(map[string]int, len(primary))
	venues := make(map[string]struct{}, len(primary))

	var dropped int
	for _, raw := range primary {
		rec, ok := n.clean(raw)
		if !ok {
			dropped++
			continue
		}
		if pos, dup := index[rec.Key()]; dup {
			out[pos] = rec
			continue
		}
		index[rec.Key()] = len(out)
		out = append(out, rec)
		venues[rec.VenueKey()] = struct{}{}
	}

	for _, raw := range additive {
		rec, ok := n.clean(raw)
		if !ok {
			dropped++
			continue
		}
		if _, covered := venues[rec.VenueKey()]; covered {
			continue
		}
		venues[rec.VenueKey()] = struct{}{}
		out = append(out, rec)
	}

	if dropped > 0 {
		n.log.WithComponent("normalizer").WithFields(logger.Fields{
			"dropped": dropped,
			"kept":    len(out),
		}).Debug("records dropped during normalization")
	}
	return out
}

func (n *Normalizer) clean(rec model.FundingRecord) (model.FundingRecord, bool) {
	if rec.Symbol == "" || rec.Exchange == "" {
		return rec, false
	}
	if rec.IntervalHours <= 0 {
		rec.IntervalHours = intervals.FallbackHours
	}
	if _, ok := allowedIntervals[rec.IntervalHours]; !ok {
		return rec, false
	}
	if rec.Rate > -engine.ZeroRateEpsilon && rec.Rate < engine.ZeroRateEpsilon {
		return rec, false
	}
	if rec.MarginType == "" {
		rec.MarginType = model.MarginStable
	}

	rec.DailyPayments = 24 / rec.IntervalHours
	rec.AnnualYield = engine.Annualize(rec.Rate, rec.IntervalHours)
	return rec, true
}
