package freshness

import (
	"context"

	"github.com/aristath/marketdata/internal/cache"
	"github.com/aristath/marketdata/internal/domain"
)

// SeriesLoader reads a stored observation series
type SeriesLoader func(ctx context.Context) ([]domain.Observation, error)

// CachedSeries serves a full stored series through the cache store
func (s *Service) CachedSeries(
	ctx context.Context,
	category domain.AssetCategory,
	symbol string,
	cctx domain.CacheContext,
	load SeriesLoader,
) (cache.Result[[]domain.Observation], error) {
	key := cache.SeriesKey(category, symbol)
	return cache.GetOrSet(ctx, s.cache, key.String(), cache.ComputeFunc[[]domain.Observation](load), category, cctx)
}

// CachedHistory serves a ranged historical query through the cache store
func (s *Service) CachedHistory(
	ctx context.Context,
	category domain.AssetCategory,
	symbol, start, end string,
	limit int,
	cctx domain.CacheContext,
	load SeriesLoader,
) (cache.Result[[]domain.Observation], error) {
	key := cache.HistoricalKey(category, symbol, start, end, limit)
	if cctx.Refresh {
		key = key.WithRefresh()
	}
	return cache.GetOrSet(ctx, s.cache, key.String(), cache.ComputeFunc[[]domain.Observation](load), category, cctx)
}
