// Package cache holds the latest complete funding snapshot. The store has two
// states: empty until the first successful refresh installs a snapshot, then
// populated forever after. A refresh that produced nothing never regresses the
// store; readers keep seeing the previous snapshot with its original
// timestamp.
package cache

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"fundingflow/internal/model"
)

// ErrNotReady is returned for queries against an empty store, before the
// first successful refresh completes.
var ErrNotReady = errors.New("no funding snapshot available yet")

type Store struct {
	mu         sync.RWMutex
	snap       *model.Snapshot
	refreshing atomic.Bool
}

func NewStore() *Store {
	return &Store{}
}

// TryBeginRefresh claims the single refresh slot. A ticker firing while a
// slow refresh is still running gets false and must skip the cycle rather
// than stack a second one. EndRefresh releases the slot.
func (s *Store) TryBeginRefresh() bool {
	return s.refreshing.CompareAndSwap(false, true)
}

func (s *Store) EndRefresh() {
	s.refreshing.Store(false)
}

// Install swaps in a freshly built snapshot. Snapshots without records are
// rejected so a venue-wide outage retains the last good data. The snapshot is
// built entirely off-lock by the caller; only the pointer swap is guarded.
func (s *Store) Install(snap model.Snapshot) bool {
	if len(snap.Records) == 0 {
		return false
	}
	s.mu.Lock()
	s.snap = &snap
	s.mu.Unlock()
	return true
}

// Populated reports whether any snapshot has ever been installed.
func (s *Store) Populated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

// Current returns the latest snapshot. The records slice is shared with the
// store; snapshots are immutable once installed so callers may read it
// without copying.
func (s *Store) Current() (model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return model.Snapshot{}, ErrNotReady
	}
	return *s.snap, nil
}

// Filter returns the latest snapshot narrowed to one canonical symbol,
// matched case-insensitively. The filtered snapshot keeps the refresh
// identity and timestamp of the full one.
func (s *Store) Filter(symbol string) (model.Snapshot, error) {
	snap, err := s.Current()
	if err != nil {
		return model.Snapshot{}, err
	}

	want := strings.ToUpper(strings.TrimSpace(symbol))
	filtered := make([]model.FundingRecord, 0, 8)
	for _, rec := range snap.Records {
		if strings.ToUpper(rec.Symbol) == want {
			filtered = append(filtered, rec)
		}
	}
	snap.Records = filtered
	return snap, nil
}
