package cache

import "sync"

// Stats tracks hit/miss counters shared across cache stores. One Stats
// instance is process-wide; both the search-results store and the
// page-content store report into it.
type Stats struct {
	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// NewStats creates an empty counter set.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) hit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

func (s *Stats) miss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

// Snapshot returns the current hit and miss counts.
func (s *Stats) Snapshot() (hits, misses uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

// HitRate returns the hit percentage, or 0 when no lookups happened.
func (s *Stats) HitRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.hits + s.misses
	if total == 0 {
		return 0
	}
	return float64(s.hits) / float64(total) * 100
}

// Reset zeroes both counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	s.hits = 0
	s.misses = 0
	s.mu.Unlock()
}
