// Package cache provides an in-process key/value store with per-entry TTL,
// wildcard invalidation and a compute-if-absent helper driven by the TTL policy.
package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often expired entries are purged in the background
const DefaultSweepInterval = time.Minute

// TTLPolicy decides whether and for how long computed values are stored
type TTLPolicy interface {
	ShouldCache(category domain.AssetCategory, ctx domain.CacheContext) bool
	GetTTL(category domain.AssetCategory, ctx domain.CacheContext) time.Duration
}

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// expired reports whether the entry is no longer visible at now
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// Stats is a snapshot of store counters
type Stats struct {
	Entries     int    `json:"entries"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Sets        uint64 `json:"sets"`
	Deletes     uint64 `json:"deletes"`
	Expirations uint64 `json:"expirations"`
}

// Store is an in-memory cache. Create one with NewStore; the zero value is not usable.
type Store struct {
	policy        TTLPolicy
	now           func() time.Time
	sweepInterval time.Duration
	log           zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	hits        atomic.Uint64
	misses      atomic.Uint64
	sets        atomic.Uint64
	deletes     atomic.Uint64
	expirations atomic.Uint64

	lifecycleMu sync.Mutex
	stop        chan struct{}
	started     bool
	wg          sync.WaitGroup
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the wall clock (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSweepInterval sets the background sweep interval
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithLogger sets the store logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log.With().Str("component", "cache_store").Logger()
	}
}

// NewStore creates a store that uses policy for GetOrSet lifetimes
func NewStore(policy TTLPolicy, opts ...Option) *Store {
	s := &Store{
		policy:        policy,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		log:           zerolog.Nop(),
		entries:       make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value stored under key if it has not expired
func (s *Store) Get(key string) (any, bool) {
	key = NormalizeKey(key)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	if e.expired(now) {
		delete(s.entries, key)
		s.expirations.Add(1)
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return e.value, true
}

// GetStale returns the value under key even if it has expired, as long as
// it has not been swept yet. The bool is false only when no entry exists.
func (s *Store) GetStale(key string) (any, bool) {
	key = NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl, replacing any previous entry.
// A non-positive ttl stores nothing and removes the previous entry.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	key = NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		delete(s.entries, key)
		return
	}

	s.entries[key] = &entry{value: value, storedAt: s.now(), ttl: ttl}
	s.sets.Add(1)
}

// Delete removes key and reports whether it existed
func (s *Store) Delete(key string) bool {
	key = NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	s.deletes.Add(1)
	return true
}

// DeletePattern removes every key matching pattern and returns how many were removed.
// "*" matches any run of characters; everything else is literal.
func (s *Store) DeletePattern(pattern string) int {
	matcher := newPattern(pattern)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if matcher.match(key) {
			delete(s.entries, key)
			removed++
		}
	}
	s.deletes.Add(uint64(removed))
	return removed
}

// Keys returns the live (unexpired) keys, sorted
func (s *Store) Keys() []string {
	now := s.now()

	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for key, e := range s.entries {
		if !e.expired(now) {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of stored entries, including expired ones not yet swept
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store counters
func (s *Store) Stats() Stats {
	return Stats{
		Entries:     s.Len(),
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Sets:        s.sets.Load(),
		Deletes:     s.deletes.Load(),
		Expirations: s.expirations.Load(),
	}
}

// Sweep removes all expired entries and returns how many were removed
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.expirations.Add(uint64(removed))
	return removed
}

// Start launches the background sweep. Calling Start on a running store is a no-op.
func (s *Store) Start() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started {
		s.log.Warn().Msg("Cache sweep already started, ignoring")
		return
	}

	s.stop = make(chan struct{})
	s.started = true

	ticker := time.NewTicker(s.sweepInterval)
	stop := s.stop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					s.log.Debug().Int("removed", removed).Msg("Swept expired cache entries")
				}
			}
		}
	}()

	s.log.Info().Dur("interval", s.sweepInterval).Msg("Cache sweep started")
}

// Stop stops the background sweep and waits for it to exit. Safe to call repeatedly.
func (s *Store) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started {
		return
	}

	close(s.stop)
	s.wg.Wait()
	s.started = false
	s.log.Info().Msg("Cache sweep stopped")
}
