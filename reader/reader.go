// Package reader defines the venue adapter contract and the shared HTTP
// plumbing every venue package builds on. Each venue lives in its own
// subpackage and exposes a constructor returning an Adapter.
package reader

import (
	"context"
	"sync"
	"time"

	"fundingflow/internal/model"
)

// Adapter fetches the current funding rates from one venue. Fetch returns
// normalized records with canonical symbols and rates in percent per
// settlement interval. Implementations must be safe for repeated calls.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]model.FundingRecord, error)
}

// IntervalPreloader is implemented by adapters whose venue publishes
// per-symbol settlement intervals through a separate metadata endpoint.
// Preloads run at startup and periodically thereafter; a failed preload
// leaves the previous override table in place.
type IntervalPreloader interface {
	PreloadIntervals(ctx context.Context) error
}

// AdditiveAdapter marks adapters whose records only supplement symbols the
// primary venues do not already cover.
type AdditiveAdapter interface {
	Additive() bool
}

// Cooldown gates fetches for venues that throttle aggressively. Ready
// reports whether the cooldown period has elapsed since the last granted
// fetch, stamping the clock when it has. A fetch skipped by cooldown is not
// a failure: the adapter returns no records and no error.
type Cooldown struct {
	mu     sync.Mutex
	last   time.Time
	period time.Duration
}

func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{period: period}
}

func (c *Cooldown) Ready() bool {
	if c == nil || c.period <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Sub(c.last) < c.period {
		return false
	}
	c.last = now
	return true
}
