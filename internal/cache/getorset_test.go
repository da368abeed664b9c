package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/aristath/marketdata/internal/modules/cachepolicy"
	"github.com/aristath/marketdata/internal/modules/market_hours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counting(value []float64, calls *int) ComputeFunc[[]float64] {
	return func(ctx context.Context) ([]float64, error) {
		*calls++
		return value, nil
	}
}

func TestGetOrSet_MissThenHit(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	ctx := context.Background()
	calls := 0

	first, err := GetOrSet(ctx, store, "series:crypto:BTC", counting([]float64{1, 2}, &calls), domain.CategoryCrypto, domain.CacheContext{})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, []float64{1, 2}, first.Value)

	second, err := GetOrSet(ctx, store, "series:crypto:BTC", counting([]float64{9}, &calls), domain.CategoryCrypto, domain.CacheContext{})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, []float64{1, 2}, second.Value)
	assert.Equal(t, 1, calls)
}

func TestGetOrSet_RefreshAlwaysComputes(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	ctx := context.Background()
	calls := 0
	refresh := domain.CacheContext{Refresh: true}

	store.Set("series:crypto:BTC", []float64{0}, time.Minute)

	for i := 0; i < 2; i++ {
		result, err := GetOrSet(ctx, store, "series:crypto:BTC", counting([]float64{7}, &calls), domain.CategoryCrypto, refresh)
		require.NoError(t, err)
		assert.False(t, result.FromCache)
		assert.Equal(t, []float64{7}, result.Value)
	}
	assert.Equal(t, 2, calls)
}

func TestGetOrSet_ExpiryRecomputes(t *testing.T) {
	store, clock := newTestStore(time.Minute)
	ctx := context.Background()
	calls := 0

	_, err := GetOrSet(ctx, store, "k", counting([]float64{1}, &calls), domain.CategoryCrypto, domain.CacheContext{})
	require.NoError(t, err)

	clock.Advance(time.Minute)

	result, err := GetOrSet(ctx, store, "k", counting([]float64{2}, &calls), domain.CategoryCrypto, domain.CacheContext{})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, []float64{2}, result.Value)
	assert.Equal(t, 2, calls)
}

func TestGetOrSet_ZeroTTLSkipsStorage(t *testing.T) {
	store, _ := newTestStore(0)
	calls := 0

	_, err := GetOrSet(context.Background(), store, "k", counting([]float64{1}, &calls), domain.CategoryCrypto, domain.CacheContext{})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestGetOrSet_ErrorPropagates(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	boom := errors.New("upstream down")

	_, err := GetOrSet(context.Background(), store, "k", func(ctx context.Context) (int, error) {
		return 0, boom
	}, domain.CategoryCrypto, domain.CacheContext{})

	assert.Same(t, boom, err)
	assert.Equal(t, 0, store.Len())
}

func TestGetOrSet_TypeMismatchIsMiss(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	store.Set("k", "a string", time.Minute)

	result, err := GetOrSet(context.Background(), store, "k", func(ctx context.Context) (int, error) {
		return 5, nil
	}, domain.CategoryCrypto, domain.CacheContext{})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 5, result.Value)

	value, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, 5, value)
}

func TestGetOrSet_WithMarketPolicy(t *testing.T) {
	karachi, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 1, 16, 16, 0, 0, 0, karachi)}
	policy := cachepolicy.NewPolicy(market_hours.NewMarketHoursService(), cachepolicy.WithClock(clock.Now))
	store := NewStore(policy, WithClock(clock.Now))

	key := LatestKey(domain.CategoryPKEquity, "OGDC").String()
	_, err = GetOrSet(context.Background(), store, key, func(ctx context.Context) (float64, error) {
		return 101.5, nil
	}, domain.CategoryPKEquity, domain.CacheContext{})
	require.NoError(t, err)

	// Valid until next open (09:15 Wednesday) and not a moment longer
	clock.Advance(17*time.Hour + 14*time.Minute)
	_, ok := store.Get(key)
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = store.Get(key)
	assert.False(t, ok)
}
