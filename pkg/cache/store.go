// Package cache provides the bounded in-memory store used by the
// pipeline (result caches, rate-limit counters) and the cache
// optimiser (warming, dependency-driven invalidation, analytics).
package cache

import (
	"sync"
	"time"
)

type entry struct {
	data       any
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) > e.ttl
}

// Store is a concurrency-safe key/value store with per-entry TTL,
// oldest-entry eviction at capacity, and a background sweep for
// expired entries. Close stops the sweep goroutine.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cap     int

	hits    int64
	misses  int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store holding at most cap entries. When
// cleanupInterval > 0 a background sweep removes expired entries on
// that cadence.
func NewStore(cap int, cleanupInterval time.Duration) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		cap:     cap,
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.runSweep(cleanupInterval)
	}
	return s
}

// Set stores value under key with the given ttl. A ttl of zero means
// the entry never expires. When the store is at capacity the single
// entry with the smallest insertedAt is evicted first.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.cap {
		s.evictOldestLocked()
	}
	s.entries[key] = &entry{data: value, insertedAt: time.Now(), ttl: ttl}
}

// Get returns the value for key if present and not expired. An expired
// entry is deleted on access.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.miss()
		return nil, false
	}
	if e.expired(time.Now()) {
		s.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if current, ok := s.entries[key]; ok && current.expired(time.Now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		s.miss()
		return nil, false
	}
	s.hit()
	return e.data, true
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of live entries, including not-yet-swept
// expired ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns a snapshot of all keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns cumulative hit/miss counters and the current size.
func (s *Store) Stats() (hits, misses int64, size int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits, s.misses, len(s.entries)
}

// Close stops the background sweep. Idempotent.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Store) hit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

func (s *Store) miss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

// evictOldestLocked removes the entry with the smallest insertedAt.
// Caller holds the write lock.
func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range s.entries {
		if first || e.insertedAt.Before(oldest) {
			oldestKey, oldest = k, e.insertedAt
			first = false
		}
	}
	if !first {
		delete(s.entries, oldestKey)
	}
}

func (s *Store) runSweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}
}
