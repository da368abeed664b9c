package freshness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/marketdata/internal/cache"
	"github.com/aristath/marketdata/internal/domain"
	"github.com/aristath/marketdata/internal/modules/cachepolicy"
	"github.com/aristath/marketdata/internal/modules/market_hours"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockRecordStore is a testify mock of durable storage
type mockRecordStore struct {
	mock.Mock
}

func (m *mockRecordStore) ReadLatest(ctx context.Context, category domain.AssetCategory, symbol string) (*domain.PersistedRecord, error) {
	args := m.Called(ctx, category, symbol)
	record, _ := args.Get(0).(*domain.PersistedRecord)
	return record, args.Error(1)
}

func (m *mockRecordStore) ReadLatestMany(ctx context.Context, category domain.AssetCategory, symbols []string) (map[string]*domain.PersistedRecord, error) {
	args := m.Called(ctx, category, symbols)
	records, _ := args.Get(0).(map[string]*domain.PersistedRecord)
	return records, args.Error(1)
}

func (m *mockRecordStore) Upsert(ctx context.Context, category domain.AssetCategory, symbol string, observations []domain.Observation) error {
	args := m.Called(ctx, category, symbol, observations)
	return args.Error(0)
}

var testNow = time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)

var noRecord = (*domain.PersistedRecord)(nil)

type testEnv struct {
	service *Service
	store   *mockRecordStore
	cache   *cache.Store
}

func newTestEnv(now time.Time, cfg Config, opts ...cachepolicy.Option) *testEnv {
	clock := func() time.Time { return now }
	opts = append([]cachepolicy.Option{cachepolicy.WithClock(clock)}, opts...)
	policy := cachepolicy.NewPolicy(market_hours.NewMarketHoursService(), opts...)
	cacheStore := cache.NewStore(policy, cache.WithClock(clock))
	store := &mockRecordStore{}

	return &testEnv{
		service: NewService(store, policy, cacheStore, cfg, zerolog.Nop()),
		store:   store,
		cache:   cacheStore,
	}
}

func bar(date string, closeValue float64) domain.Observation {
	return domain.Observation{Date: date, Values: map[string]float64{"close": closeValue}}
}

func record(category domain.AssetCategory, symbol string, closeValue float64, updatedAt time.Time) *domain.PersistedRecord {
	return &domain.PersistedRecord{
		Category:  category,
		Symbol:    symbol,
		Value:     bar("2024-01-15", closeValue),
		AsOf:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		UpdatedAt: updatedAt,
	}
}

func countingFetch(calls *atomic.Int32, observations ...domain.Observation) domain.FetchFunc {
	return func(ctx context.Context) ([]domain.Observation, error) {
		calls.Add(1)
		return observations, nil
	}
}

func failingFetch(calls *atomic.Int32, err error) domain.FetchFunc {
	return func(ctx context.Context) ([]domain.Observation, error) {
		calls.Add(1)
		return nil, err
	}
}

func TestEnsureData_FreshDurableRecordSkipsFetch(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").
		Return(record(domain.CategoryCrypto, "BTC", 42000, testNow.Add(-30*time.Second)), nil)

	var calls atomic.Int32
	result := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", countingFetch(&calls, bar("2024-01-16", 1)), false)

	require.NotNil(t, result)
	assert.Equal(t, SourceDurable, result.Source)
	assert.False(t, result.Stale)
	assert.Equal(t, 42000.0, result.Value.Values["close"])
	assert.Equal(t, int32(0), calls.Load())
	env.store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureData_StaleRecordFetchesAndPersists(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").
		Return(record(domain.CategoryCrypto, "BTC", 41000, testNow.Add(-5*time.Minute)), nil).Once()
	env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.MatchedBy(func(obs []domain.Observation) bool {
		return len(obs) == 2
	})).Return(nil).Once()

	var calls atomic.Int32
	result := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC",
		countingFetch(&calls, bar("2024-01-15", 41500), bar("2024-01-16", 43000)), false)
	env.service.Wait()

	require.NotNil(t, result)
	assert.Equal(t, SourceFetched, result.Source)
	assert.Equal(t, "2024-01-16", result.Value.Date)
	assert.Equal(t, 43000.0, result.Value.Values["close"])
	assert.Equal(t, testNow, result.UpdatedAt)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, env.service.InFlight())
	env.store.AssertExpectations(t)
}

func TestEnsureData_ForceRefreshSkipsDurableCheck(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "ETH", mock.Anything).Return(nil).Once()

	var calls atomic.Int32
	result := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "ETH", countingFetch(&calls, bar("2024-01-16", 2500)), true)
	env.service.Wait()

	require.NotNil(t, result)
	assert.Equal(t, SourceFetched, result.Source)
	assert.Equal(t, int32(1), calls.Load())
	env.store.AssertNotCalled(t, "ReadLatest", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureData_ConcurrentCallersShareOneFetch(t *testing.T) {
	const callers = 10

	env := newTestEnv(testNow, Config{})
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(noRecord, nil)
	env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.Anything).Return(nil).Once()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]domain.Observation, error) {
		calls.Add(1)
		<-release
		return []domain.Observation{bar("2024-01-16", 43000)}, nil
	}

	results := make([]*Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, false)
		}(i)
	}

	key := inFlightKey(domain.CategoryCrypto, "BTC")
	require.Eventually(t, func() bool {
		return env.service.InFlight() == 1 && env.service.waiting(key) == callers-1
	}, 2*time.Second, time.Millisecond)

	close(release)
	wg.Wait()
	env.service.Wait()

	assert.Equal(t, int32(1), calls.Load(), "fetch must run exactly once")
	assert.Equal(t, 0, env.service.InFlight())

	sources := map[Source]int{}
	for _, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, 43000.0, result.Value.Values["close"])
		sources[result.Source]++
	}
	assert.Equal(t, 1, sources[SourceFetched])
	assert.Equal(t, callers-1, sources[SourceShared])
	env.store.AssertExpectations(t)
}

func TestEnsureData_FailoverServesStaleRecord(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	stale := record(domain.CategoryCrypto, "BTC", 39000, testNow.Add(-2*time.Hour))
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(stale, nil)

	var calls atomic.Int32
	result := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", failingFetch(&calls, errors.New("binance: 503")), false)

	require.NotNil(t, result)
	assert.Equal(t, SourceFailover, result.Source)
	assert.True(t, result.Stale)
	assert.Equal(t, 39000.0, result.Value.Values["close"])
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, env.service.InFlight())
	env.store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureData_FailoverWithoutRecordReturnsNil(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "NOPE").Return(noRecord, nil)

	var calls atomic.Int32
	result := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "NOPE", failingFetch(&calls, errors.New("unknown symbol")), false)

	assert.Nil(t, result)
	assert.Equal(t, 0, env.service.InFlight())
}

func TestEnsureData_WaitersOfFailedFetchShareFailover(t *testing.T) {
	const callers = 5

	env := newTestEnv(testNow, Config{})
	stale := record(domain.CategoryCrypto, "BTC", 39000, testNow.Add(-2*time.Hour))
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(stale, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]domain.Observation, error) {
		calls.Add(1)
		<-release
		return nil, errors.New("binance: 503")
	}

	results := make([]*Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, false)
		}(i)
	}

	key := inFlightKey(domain.CategoryCrypto, "BTC")
	require.Eventually(t, func() bool {
		return env.service.InFlight() == 1 && env.service.waiting(key) == callers-1
	}, 2*time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "a failed fetch must not be retried by its waiters")
	assert.Equal(t, 0, env.service.InFlight())
	for i, result := range results {
		require.NotNil(t, result, "caller %d", i)
		assert.Equal(t, SourceFailover, result.Source, "caller %d", i)
		assert.True(t, result.Stale, "caller %d", i)
		assert.Equal(t, 39000.0, result.Value.Values["close"], "caller %d", i)
	}
	// One durable check and one failover read, both by the leader
	env.store.AssertNumberOfCalls(t, "ReadLatest", 2)
	env.store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureData_OverlappingCallersFetchOnce(t *testing.T) {
	key := inFlightKey(domain.CategoryCrypto, "BTC")

	t.Run("joins during leader's durable read", func(t *testing.T) {
		env := newTestEnv(testNow, Config{})
		readGate := make(chan struct{})
		env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").
			Run(func(mock.Arguments) { <-readGate }).
			Return(noRecord, nil).Once()
		env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.Anything).Return(nil).Once()

		var calls atomic.Int32
		fetch := countingFetch(&calls, bar("2024-01-16", 50000))

		first := make(chan *Result, 1)
		go func() {
			first <- env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, false)
		}()
		require.Eventually(t, func() bool { return env.service.InFlight() == 1 }, 2*time.Second, time.Millisecond)

		second := make(chan *Result, 1)
		go func() {
			second <- env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, false)
		}()
		require.Eventually(t, func() bool { return env.service.waiting(key) == 1 }, 2*time.Second, time.Millisecond)

		close(readGate)
		a, b := <-first, <-second
		env.service.Wait()

		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, SourceFetched, a.Source)
		assert.Equal(t, SourceShared, b.Source)
		assert.Equal(t, a.Value, b.Value)
		env.store.AssertExpectations(t)
	})

	t.Run("arrives before leader's write lands", func(t *testing.T) {
		env := newTestEnv(testNow, Config{})
		writeGate := make(chan struct{})
		env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(noRecord, nil).Once()
		env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.Anything).
			Run(func(mock.Arguments) { <-writeGate }).
			Return(nil).Once()

		var calls atomic.Int32
		fetch := countingFetch(&calls, bar("2024-01-16", 50000))

		a := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, false)
		b := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, false)

		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, SourceFetched, a.Source)
		assert.Equal(t, SourceShared, b.Source)
		assert.Equal(t, 0, env.service.InFlight())

		close(writeGate)
		env.service.Wait()

		env.service.mu.Lock()
		assert.Empty(t, env.service.inFlight, "slot is released once the write lands")
		env.service.mu.Unlock()
		env.store.AssertExpectations(t)
	})
}

func TestEnsureData_CancelledWaiterStopsCounting(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(noRecord, nil)
	env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.Anything).Return(nil).Once()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]domain.Observation, error) {
		calls.Add(1)
		<-release
		return []domain.Observation{bar("2024-01-16", 43000)}, nil
	}

	leader := make(chan *Result, 1)
	go func() {
		leader <- env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, false)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, time.Millisecond)

	key := inFlightKey(domain.CategoryCrypto, "BTC")
	ctx, cancel := context.WithCancel(context.Background())
	follower := make(chan *Result, 1)
	go func() {
		follower <- env.service.EnsureData(ctx, domain.CategoryCrypto, "BTC", fetch, false)
	}()
	require.Eventually(t, func() bool { return env.service.waiting(key) == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	assert.Nil(t, <-follower, "no durable data to fall back on")
	assert.Equal(t, 0, env.service.waiting(key))
	assert.Equal(t, 1, env.service.InFlight())

	close(release)
	result := <-leader
	env.service.Wait()

	require.NotNil(t, result)
	assert.Equal(t, SourceFetched, result.Source)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsureData_ForcedWaiterOfDurableHitFetches(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	readGate := make(chan struct{})
	fresh := record(domain.CategoryCrypto, "BTC", 42000, testNow.Add(-10*time.Second))
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").
		Run(func(mock.Arguments) { <-readGate }).
		Return(fresh, nil).Once()
	env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.Anything).Return(nil).Once()

	var calls atomic.Int32
	fetch := countingFetch(&calls, bar("2024-01-16", 43000))

	plain := make(chan *Result, 1)
	go func() {
		plain <- env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, false)
	}()
	require.Eventually(t, func() bool { return env.service.InFlight() == 1 }, 2*time.Second, time.Millisecond)

	key := inFlightKey(domain.CategoryCrypto, "BTC")
	forced := make(chan *Result, 1)
	go func() {
		forced <- env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", fetch, true)
	}()
	require.Eventually(t, func() bool { return env.service.waiting(key) == 1 }, 2*time.Second, time.Millisecond)

	close(readGate)
	a, b := <-plain, <-forced
	env.service.Wait()

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, SourceDurable, a.Source)
	assert.Equal(t, 42000.0, a.Value.Values["close"])
	assert.Equal(t, SourceFetched, b.Source)
	assert.Equal(t, 43000.0, b.Value.Values["close"])
	assert.Equal(t, int32(1), calls.Load())
	env.store.AssertExpectations(t)
}

func TestEnsureData_TimeoutFreesSlot(t *testing.T) {
	env := newTestEnv(testNow, Config{}, cachepolicy.WithFetchTimeout(domain.CategoryCrypto, 20*time.Millisecond))
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(noRecord, nil)

	hang := func(ctx context.Context) ([]domain.Observation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	result := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", hang, false)

	assert.Nil(t, result)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, env.service.InFlight())

	// The slot is free: a later request triggers a new fetch
	env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.Anything).Return(nil).Once()
	var calls atomic.Int32
	result = env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", countingFetch(&calls, bar("2024-01-16", 1)), false)
	env.service.Wait()
	require.NotNil(t, result)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunFetch_Errors(t *testing.T) {
	env := newTestEnv(testNow, Config{}, cachepolicy.WithFetchTimeout(domain.CategoryCrypto, 20*time.Millisecond))
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := env.service.runFetch(ctx, domain.CategoryCrypto, func(ctx context.Context) ([]domain.Observation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrFetchTimeout)

	_, err = env.service.runFetch(ctx, domain.CategoryCrypto, func(ctx context.Context) ([]domain.Observation, error) {
		return []domain.Observation{}, nil
	})
	assert.ErrorIs(t, err, ErrEmptyResult)

	_, err = env.service.runFetch(ctx, domain.CategoryCrypto, func(ctx context.Context) ([]domain.Observation, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = env.service.runFetch(ctx, domain.CategoryCrypto, func(ctx context.Context) ([]domain.Observation, error) {
		panic("parser exploded")
	})
	assert.ErrorContains(t, err, "parser exploded")
}

func TestRunFetch_DetachedFromCallerCancellation(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	observations, err := env.service.runFetch(ctx, domain.CategoryCrypto, func(fctx context.Context) ([]domain.Observation, error) {
		if fctx.Err() != nil {
			return nil, fctx.Err()
		}
		return []domain.Observation{bar("2024-01-16", 1)}, nil
	})
	require.NoError(t, err)
	assert.Len(t, observations, 1)
}

func TestEnsureData_EmptyResultFailsOver(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	stale := record(domain.CategoryCrypto, "BTC", 39000, testNow.Add(-time.Hour))
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(stale, nil)

	var calls atomic.Int32
	result := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", countingFetch(&calls), false)

	require.NotNil(t, result)
	assert.True(t, result.Stale)
	assert.Equal(t, SourceFailover, result.Source)
}

func TestEnsureData_StorageFailuresDoNotFailRequest(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(noRecord, errors.New("database is locked"))
	env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.Anything).Return(errors.New("disk full")).Once()

	var calls atomic.Int32
	result := env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", countingFetch(&calls, bar("2024-01-16", 43000)), false)
	env.service.Wait()

	require.NotNil(t, result)
	assert.Equal(t, SourceFetched, result.Source)
	assert.Equal(t, 43000.0, result.Value.Values["close"])
	env.store.AssertExpectations(t)
}

func TestEnsureData_PersistInvalidatesCacheKeys(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	env.store.On("ReadLatest", mock.Anything, domain.CategoryCrypto, "BTC").Return(noRecord, nil)
	env.store.On("Upsert", mock.Anything, domain.CategoryCrypto, "BTC", mock.Anything).Return(nil).Once()

	historyKey := cache.HistoricalKey(domain.CategoryCrypto, "BTC", "", "", 100).String()
	otherKey := cache.LatestKey(domain.CategoryCrypto, "ETH").String()
	env.cache.Set(historyKey, "old", time.Hour)
	env.cache.Set(otherKey, "keep", time.Hour)

	var calls atomic.Int32
	env.service.EnsureData(context.Background(), domain.CategoryCrypto, "BTC", countingFetch(&calls, bar("2024-01-16", 1)), false)
	env.service.Wait()

	_, ok := env.cache.Get(historyKey)
	assert.False(t, ok)
	_, ok = env.cache.Get(otherKey)
	assert.True(t, ok)
}

func TestEnsureData_ClosedMarketRequiresPostCloseRecord(t *testing.T) {
	karachi, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)
	// Tuesday 16:00 PKT, PSX closed at 15:30
	now := time.Date(2024, 1, 16, 16, 0, 0, 0, karachi)

	tests := []struct {
		name        string
		updatedAt   time.Time
		expectFetch bool
	}{
		{"written after close is fresh", time.Date(2024, 1, 16, 15, 45, 0, 0, karachi), false},
		{"written mid-session is stale", time.Date(2024, 1, 16, 14, 0, 0, 0, karachi), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(now, Config{})
			env.store.On("ReadLatest", mock.Anything, domain.CategoryPKEquity, "OGDC").
				Return(record(domain.CategoryPKEquity, "OGDC", 120, tt.updatedAt), nil)
			env.store.On("Upsert", mock.Anything, domain.CategoryPKEquity, "OGDC", mock.Anything).Return(nil).Maybe()

			var calls atomic.Int32
			result := env.service.EnsureData(context.Background(), domain.CategoryPKEquity, "OGDC", countingFetch(&calls, bar("2024-01-16", 121)), false)
			env.service.Wait()

			require.NotNil(t, result)
			if tt.expectFetch {
				assert.Equal(t, int32(1), calls.Load())
				assert.Equal(t, SourceFetched, result.Source)
			} else {
				assert.Equal(t, int32(0), calls.Load())
				assert.Equal(t, SourceDurable, result.Source)
			}
		})
	}
}

func TestInvalidate(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	env.cache.Set("latest:crypto:BTC", 1, time.Hour)
	env.cache.Set("historical:crypto:BTC:all:all:0", 1, time.Hour)
	env.cache.Set("historical:crypto:BTC:all:all:10", 1, time.Hour)

	assert.True(t, env.service.Invalidate("latest:crypto:BTC"))
	assert.False(t, env.service.Invalidate("latest:crypto:BTC"))
	assert.Equal(t, 2, env.service.InvalidatePattern("historical:crypto:BTC:*"))
	assert.Equal(t, 0, env.cache.Len())
}

func TestCachedSeries(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	loads := 0
	load := func(ctx context.Context) ([]domain.Observation, error) {
		loads++
		return []domain.Observation{bar("2024-01-15", 1), bar("2024-01-16", 2)}, nil
	}

	first, err := env.service.CachedSeries(context.Background(), domain.CategoryCrypto, "BTC", domain.CacheContext{}, load)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := env.service.CachedSeries(context.Background(), domain.CategoryCrypto, "btc", domain.CacheContext{}, load)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Len(t, second.Value, 2)
	assert.Equal(t, 1, loads)

	_, err = env.service.CachedSeries(context.Background(), domain.CategoryCrypto, "BTC", domain.CacheContext{Refresh: true}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestCachedHistory_KeyedByRange(t *testing.T) {
	env := newTestEnv(testNow, Config{})
	loads := 0
	load := func(ctx context.Context) ([]domain.Observation, error) {
		loads++
		return []domain.Observation{bar("2024-01-15", 1)}, nil
	}
	ctx := context.Background()

	_, err := env.service.CachedHistory(ctx, domain.CategoryCrypto, "BTC", "2024-01-01", "", 0, domain.CacheContext{}, load)
	require.NoError(t, err)
	_, err = env.service.CachedHistory(ctx, domain.CategoryCrypto, "BTC", "2024-01-01", "", 0, domain.CacheContext{}, load)
	require.NoError(t, err)
	_, err = env.service.CachedHistory(ctx, domain.CategoryCrypto, "BTC", "2024-01-02", "", 0, domain.CacheContext{}, load)
	require.NoError(t, err)

	assert.Equal(t, 2, loads)
}
