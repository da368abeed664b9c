package freshness

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BatchItem is one (category, symbol, fetch) request of a batch
type BatchItem struct {
	Category     domain.AssetCategory
	Symbol       string
	Fetch        domain.FetchFunc
	ForceRefresh bool
}

// EnsureBatchData resolves many symbols with one durable read per category and
// at most BatchConcurrency concurrent fetches. Every requested symbol is a key
// of the returned map; its value is nil when no data could be obtained.
// A symbol requested again under a different category is logged and skipped;
// the first occurrence wins.
func (s *Service) EnsureBatchData(ctx context.Context, items []BatchItem) map[string]*Result {
	batchID := uuid.NewString()
	log := s.log.With().Str("batch_id", batchID).Logger()
	start := time.Now()

	results := make(map[string]*Result, len(items))
	items = dedupeItems(items, results, log)

	var pending []BatchItem
	fresh := 0
	for category, group := range groupByCategory(items) {
		symbols := make([]string, 0, len(group))
		for _, item := range group {
			if !item.ForceRefresh {
				symbols = append(symbols, item.Symbol)
			}
		}

		var records map[string]*domain.PersistedRecord
		if len(symbols) > 0 {
			var err error
			records, err = s.reader.ReadLatestMany(ctx, category, symbols)
			if err != nil {
				log.Warn().Err(err).Str("category", string(category)).Int("symbols", len(symbols)).
					Msg("Bulk durable read failed, fetching whole category")
				records = nil
			}
		}

		for _, item := range group {
			if record, ok := records[item.Symbol]; ok && record != nil && !item.ForceRefresh && s.isFresh(category, record) {
				results[item.Symbol] = resultFromRecord(record, SourceDurable, false)
				fresh++
				continue
			}
			pending = append(pending, item)
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.BatchConcurrency)
	for _, item := range pending {
		item := item
		g.Go(func() error {
			result := s.resolve(ctx, item.Category, item.Symbol, item.Fetch, false, item.ForceRefresh)
			mu.Lock()
			results[item.Symbol] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // Items never return errors; failures become nil results

	missing := 0
	for _, result := range results {
		if result == nil {
			missing++
		}
	}

	log.Info().
		Int("items", len(items)).
		Int("fresh", fresh).
		Int("fetched", len(pending)).
		Int("missing", missing).
		Dur("elapsed", time.Since(start)).
		Msg("Batch ensure complete")

	return results
}

// dedupeItems seeds results with one nil entry per symbol and drops repeats.
// A repeat under another category would overwrite the first result, so it is
// reported.
func dedupeItems(items []BatchItem, results map[string]*Result, log zerolog.Logger) []BatchItem {
	seen := make(map[string]domain.AssetCategory, len(items))
	kept := make([]BatchItem, 0, len(items))
	for _, item := range items {
		if first, ok := seen[item.Symbol]; ok {
			if first != item.Category {
				log.Warn().
					Str("symbol", item.Symbol).
					Str("category", string(item.Category)).
					Str("kept_category", string(first)).
					Msg("Symbol requested under two categories, skipping duplicate")
			}
			continue
		}
		seen[item.Symbol] = item.Category
		results[item.Symbol] = nil
		kept = append(kept, item)
	}
	return kept
}

// groupByCategory groups items by category, keeping request order within a group
func groupByCategory(items []BatchItem) map[domain.AssetCategory][]BatchItem {
	groups := make(map[domain.AssetCategory][]BatchItem)
	for _, item := range items {
		groups[item.Category] = append(groups[item.Category], item)
	}
	return groups
}
