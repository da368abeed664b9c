// Package freshness decides whether persisted market data is fresh enough and
// coordinates external fetches: one fetch per key at a time, a category
// timeout on every fetch, and failover to stale durable data.
package freshness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/marketdata/internal/cache"
	"github.com/aristath/marketdata/internal/domain"
	"github.com/rs/zerolog"
)

// Defaults for Config fields left at zero
const (
	DefaultBatchConcurrency = 4
	DefaultPersistTimeout   = 15 * time.Second
)

// Policy is the TTL policy surface the service needs
type Policy interface {
	Now() time.Time
	GetTTL(category domain.AssetCategory, ctx domain.CacheContext) time.Duration
	FetchTimeout(category domain.AssetCategory) time.Duration
	ClosedSince(category domain.AssetCategory, ctx domain.CacheContext) (time.Time, bool)
}

// Config holds service tunables
type Config struct {
	BatchConcurrency int           // Max concurrent fetches in EnsureBatchData
	PersistTimeout   time.Duration // Budget for each background durable write
}

// Service coordinates durable reads, deduplicated fetches and failover
type Service struct {
	reader domain.RecordReader
	writer domain.RecordWriter
	policy Policy
	cache  *cache.Store
	cfg    Config
	log    zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]*call

	writes sync.WaitGroup
}

// NewService creates a freshness service
func NewService(
	store domain.RecordStore,
	policy Policy,
	cacheStore *cache.Store,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}

	return &Service{
		reader:   store,
		writer:   store,
		policy:   policy,
		cache:    cacheStore,
		cfg:      cfg,
		log:      log.With().Str("service", "freshness").Logger(),
		inFlight: make(map[string]*call),
	}
}

// EnsureData returns the latest value for (category, symbol): fresh durable data
// if available, otherwise the outcome of a deduplicated fetch, otherwise stale
// durable data. Returns nil only when nothing at all is available.
//
// Callers of the same key while it is being resolved share one outcome: the
// first caller checks durable storage and fetches, the rest wait for it.
func (s *Service) EnsureData(
	ctx context.Context,
	category domain.AssetCategory,
	symbol string,
	fetch domain.FetchFunc,
	forceRefresh bool,
) *Result {
	return s.resolve(ctx, category, symbol, fetch, !forceRefresh, forceRefresh)
}

// resolve leads or joins the call for a key. checkDurable makes the leader
// consult durable storage before fetching.
func (s *Service) resolve(
	ctx context.Context,
	category domain.AssetCategory,
	symbol string,
	fetch domain.FetchFunc,
	checkDurable bool,
	forceRefresh bool,
) *Result {
	key := inFlightKey(category, symbol)

	c, leader := s.begin(key)
	if leader {
		return s.lead(ctx, key, c, category, symbol, fetch, checkDurable)
	}

	result, ok := s.await(ctx, c)
	switch {
	case !ok:
		s.log.Debug().Err(ctx.Err()).Str("key", key).Msg("Stopped waiting for shared fetch")
		return s.failover(ctx, category, symbol, ctx.Err())
	case forceRefresh && result != nil && result.Source == SourceDurable:
		// Joined a durable hit; a forced refresh still needs a fetch
		return s.resolve(ctx, category, symbol, fetch, false, true)
	}
	return result
}

// lead resolves a registered key and publishes the outcome to its waiters.
// Reads run detached from the caller's cancellation since the outcome is shared.
func (s *Service) lead(
	ctx context.Context,
	key string,
	c *call,
	category domain.AssetCategory,
	symbol string,
	fetch domain.FetchFunc,
	checkDurable bool,
) *Result {
	shared := context.WithoutCancel(ctx)

	if checkDurable {
		record, err := s.reader.ReadLatest(shared, category, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Durable read failed, fetching")
		} else if record != nil && s.isFresh(category, record) {
			result := resultFromRecord(record, SourceDurable, false)
			s.release(key, c)
			s.finish(c, result)
			return result
		}
	}

	start := time.Now()
	observations, err := s.runFetch(ctx, category, fetch)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("category", string(category)).
			Str("symbol", symbol).
			Dur("elapsed", time.Since(start)).
			Msg("Fetch failed")

		result := s.failover(shared, category, symbol, err)
		s.release(key, c)
		s.finish(c, result)
		return result
	}

	latest, _ := domain.LatestObservation(observations)
	result := &Result{
		Category:  category,
		Symbol:    symbol,
		Value:     latest,
		AsOf:      latest.Time(),
		UpdatedAt: s.policy.Now(),
		Source:    SourceFetched,
	}

	s.finish(c, result)
	s.persist(ctx, category, symbol, observations, func() { s.release(key, c) })

	s.log.Debug().
		Str("category", string(category)).
		Str("symbol", symbol).
		Int("observations", len(observations)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched market data")

	return result
}

type fetchOutcome struct {
	observations []domain.Observation
	err          error
}

// runFetch races fetch against the category timeout. The fetch context is
// detached from the caller's cancellation; other callers may be waiting on it.
func (s *Service) runFetch(ctx context.Context, category domain.AssetCategory, fetch domain.FetchFunc) ([]domain.Observation, error) {
	timeout := s.policy.FetchTimeout(category)
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("fetch panicked: %v", r)}
			}
		}()
		observations, err := fetch(fetchCtx)
		done <- fetchOutcome{observations: observations, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("fetch %s: %w", category, out.err)
		}
		if len(out.observations) == 0 {
			return nil, ErrEmptyResult
		}
		return out.observations, nil
	case <-fetchCtx.Done():
		return nil, fmt.Errorf("%w after %s", ErrFetchTimeout, timeout)
	}
}

// persist writes observations in the background and invalidates read-through
// cache keys for the symbol once the write lands. done runs after the write,
// whether or not it succeeded.
func (s *Service) persist(
	ctx context.Context,
	category domain.AssetCategory,
	symbol string,
	observations []domain.Observation,
	done func(),
) {
	rows := make([]domain.Observation, len(observations))
	copy(rows, observations)
	detached := context.WithoutCancel(ctx)

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		defer done()

		writeCtx, cancel := context.WithTimeout(detached, s.cfg.PersistTimeout)
		defer cancel()

		if err := s.writer.Upsert(writeCtx, category, symbol, rows); err != nil {
			s.log.Error().
				Err(err).
				Str("category", string(category)).
				Str("symbol", symbol).
				Int("observations", len(rows)).
				Msg("Failed to persist fetched observations")
			return
		}

		removed := s.InvalidateSymbol(category, symbol)
		s.log.Debug().
			Str("category", string(category)).
			Str("symbol", symbol).
			Int("observations", len(rows)).
			Int("cache_invalidated", removed).
			Msg("Persisted fetched observations")
	}()
}

// failover serves the newest durable record, however old, tagged stale
func (s *Service) failover(ctx context.Context, category domain.AssetCategory, symbol string, cause error) *Result {
	record, err := s.reader.ReadLatest(ctx, category, symbol)
	if err != nil {
		s.log.Error().
			Err(err).
			AnErr("cause", cause).
			Str("category", string(category)).
			Str("symbol", symbol).
			Msg("Failover read failed, no data available")
		return nil
	}
	if record == nil {
		s.log.Warn().
			AnErr("cause", cause).
			Str("category", string(category)).
			Str("symbol", symbol).
			Msg("Fetch failed and no durable data exists")
		return nil
	}

	s.log.Info().
		AnErr("cause", cause).
		Str("category", string(category)).
		Str("symbol", symbol).
		Time("updated_at", record.UpdatedAt).
		Msg("Serving stale durable data")
	return resultFromRecord(record, SourceFailover, true)
}

// isFresh reports whether a durable record can be served without fetching.
// While a session-aware market is closed the record must also postdate the
// last close, so a mid-session write is not carried through the night.
func (s *Service) isFresh(category domain.AssetCategory, record *domain.PersistedRecord) bool {
	ttl := s.policy.GetTTL(category, domain.CacheContext{})
	if ttl <= 0 || record.Age(s.policy.Now()) >= ttl {
		return false
	}
	if since, closed := s.policy.ClosedSince(category, domain.CacheContext{}); closed && record.UpdatedAt.Before(since) {
		return false
	}
	return true
}

// InvalidateSymbol removes every cache key family for a symbol
func (s *Service) InvalidateSymbol(category domain.AssetCategory, symbol string) int {
	removed := 0
	for _, pattern := range cache.InvalidationPatterns(category, symbol) {
		removed += s.cache.DeletePattern(pattern)
	}
	return removed
}

// Invalidate removes one cache key
func (s *Service) Invalidate(key string) bool {
	return s.cache.Delete(key)
}

// InvalidatePattern removes every cache key matching pattern
func (s *Service) InvalidatePattern(pattern string) int {
	return s.cache.DeletePattern(pattern)
}

// Wait blocks until background durable writes have finished
func (s *Service) Wait() {
	s.writes.Wait()
}
