package cache

import (
	"context"

	"github.com/aristath/marketdata/internal/domain"
)

// Result is the outcome of GetOrSet
type Result[V any] struct {
	Value     V
	FromCache bool
}

// ComputeFunc produces a value on cache miss
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// GetOrSet returns the cached value under key, or computes and stores it using
// the store's TTL policy. A refresh context always computes. A cached value of
// a different type than V counts as a miss and is overwritten. Compute errors
// are returned unchanged and nothing is stored.
func GetOrSet[V any](
	ctx context.Context,
	store *Store,
	key string,
	compute ComputeFunc[V],
	category domain.AssetCategory,
	cctx domain.CacheContext,
) (Result[V], error) {
	if !store.policy.ShouldCache(category, cctx) {
		value, err := compute(ctx)
		if err != nil {
			return Result[V]{}, err
		}
		return Result[V]{Value: value}, nil
	}

	if cached, ok := store.Get(key); ok {
		if value, ok := cached.(V); ok {
			return Result[V]{Value: value, FromCache: true}, nil
		}
		store.log.Debug().Str("key", key).Msg("Cached value has unexpected type, recomputing")
	}

	value, err := compute(ctx)
	if err != nil {
		return Result[V]{}, err
	}

	if ttl := store.policy.GetTTL(category, cctx); ttl > 0 {
		store.Set(key, value, ttl)
	}

	return Result[V]{Value: value}, nil
}
