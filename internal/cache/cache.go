// Package cache implements a bounded in-memory store with per-entry TTL and
// LRU eviction. Expiry is checked lazily at read time: an expired entry is
// reported as a miss and dropped, never returned.
package cache

import (
	"container/list"
	"sync"
	"time"

	"searchfetch/internal/telemetry"
)

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

// Store is a capacity-bounded key-value cache. Each entry carries its own
// TTL, so fast-moving and slow-moving values can share one instance. All
// methods are safe for concurrent use.
type Store[V any] struct {
	mu       sync.Mutex
	name     string
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	stats    *Stats
	now      func() time.Time
}

// New creates a Store. The name labels telemetry; stats may be shared with
// other stores. A nil now falls back to time.Now.
func New[V any](name string, capacity int, stats *Stats, now func() time.Time) *Store[V] {
	if capacity <= 0 {
		capacity = 1
	}
	if stats == nil {
		stats = NewStats()
	}
	if now == nil {
		now = time.Now
	}
	return &Store[V]{
		name:     name,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		stats:    stats,
		now:      now,
	}
}

// Get returns the value for key if present and not expired. Every call
// counts exactly one hit or miss.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	el, ok := s.entries[key]
	if !ok {
		s.recordMiss()
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if ent.ttl > 0 && s.now().Sub(ent.insertedAt) >= ent.ttl {
		s.removeLocked(el, "expired")
		s.recordMiss()
		return zero, false
	}
	s.order.MoveToFront(el)
	s.recordHit()
	return ent.value, true
}

// Put inserts or replaces the value for key with the given TTL. When the
// store is full the least-recently-used entry is evicted first.
func (s *Store[V]) Put(key string, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.insertedAt = s.now()
		ent.ttl = ttl
		s.order.MoveToFront(el)
		return
	}
	if s.order.Len() >= s.capacity {
		if oldest := s.order.Back(); oldest != nil {
			s.removeLocked(oldest, "lru")
		}
	}
	el := s.order.PushFront(&entry[V]{
		key:        key,
		value:      value,
		insertedAt: s.now(),
		ttl:        ttl,
	})
	s.entries[key] = el
}

// Clear drops all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
}

// Len returns the current entry count, including entries that expired but
// have not been touched since.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *Store[V]) removeLocked(el *list.Element, reason string) {
	ent := el.Value.(*entry[V])
	s.order.Remove(el)
	delete(s.entries, ent.key)
	telemetry.ObserveCacheEviction(s.name, reason)
}

func (s *Store[V]) recordHit() {
	s.stats.hit()
	telemetry.ObserveCacheLookup(s.name, "hit")
}

func (s *Store[V]) recordMiss() {
	s.stats.miss()
	telemetry.ObserveCacheLookup(s.name, "miss")
}
