// Package intervals resolves funding settlement periods. Exchanges disagree
// on where the interval lives: some publish it per symbol through a metadata
// endpoint, some embed it in the rate payload, and some document a single
// venue-wide period. The store folds all three sources behind one lookup.
package intervals

import (
	"strings"
	"sync"
)

// FallbackHours is used when every other source is missing or non-positive.
// Dividing by it is always safe.
const FallbackHours = 8.0

// Store holds per-symbol interval overrides preloaded from venue metadata
// endpoints, plus static per-venue defaults. It is safe for concurrent use:
// preloaders replace override tables while refresh workers resolve.
type Store struct {
	mu        sync.RWMutex
	overrides map[string]map[string]float64
	defaults  map[string]float64
}

func NewStore(defaults map[string]float64) *Store {
	d := make(map[string]float64, len(defaults))
	for venue, hours := range defaults {
		d[strings.ToLower(venue)] = hours
	}
	return &Store{
		overrides: make(map[string]map[string]float64),
		defaults:  d,
	}
}

// ReplaceOverrides installs a freshly preloaded override table for one venue,
// discarding the previous table wholesale. Entries with non-positive hours
// are ignored.
func (s *Store) ReplaceOverrides(venue string, table map[string]float64) {
	clean := make(map[string]float64, len(table))
	for sym, hours := range table {
		if hours > 0 {
			clean[strings.ToUpper(sym)] = hours
		}
	}

	s.mu.Lock()
	s.overrides[strings.ToLower(venue)] = clean
	s.mu.Unlock()
}

// OverrideCount reports how many symbols currently carry an override for the
// venue. Used for preload logging only.
func (s *Store) OverrideCount(venue string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overrides[strings.ToLower(venue)])
}

// Resolve returns the settlement interval in hours for one instrument.
// Priority: preloaded per-symbol override, then the interval embedded in the
// rate payload itself, then the venue default, then FallbackHours. The result
// is always positive.
func (s *Store) Resolve(venue, symbol string, embedded float64) float64 {
	venue = strings.ToLower(venue)
	symbol = strings.ToUpper(symbol)

	s.mu.RLock()
	if table, ok := s.overrides[venue]; ok {
		if hours, ok := table[symbol]; ok && hours > 0 {
			s.mu.RUnlock()
			return hours
		}
	}
	def := s.defaults[venue]
	s.mu.RUnlock()

	if embedded > 0 {
		return embedded
	}
	if def > 0 {
		return def
	}
	return FallbackHours
}

// Default returns the static default for a venue, falling back to
// FallbackHours when the venue has none configured.
func (s *Store) Default(venue string) float64 {
	s.mu.RLock()
	def := s.defaults[strings.ToLower(venue)]
	s.mu.RUnlock()
	if def > 0 {
		return def
	}
	return FallbackHours
}
