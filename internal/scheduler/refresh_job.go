package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/aristath/marketdata/internal/freshness"
	"github.com/aristath/marketdata/internal/scheduler/base"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BatchEnsurer resolves many symbols through the freshness layer
type BatchEnsurer interface {
	EnsureBatchData(ctx context.Context, items []freshness.BatchItem) map[string]*freshness.Result
}

// FetchBuilder returns the upstream fetch for one symbol
type FetchBuilder func(symbol string) domain.FetchFunc

// RefreshTarget is one watchlist: a category, its symbols and the source to fetch them from
type RefreshTarget struct {
	Category domain.AssetCategory
	Symbols  []string
	Fetch    FetchBuilder
}

// RefreshJob keeps watchlists warm by running them through EnsureBatchData.
// Fresh symbols cost one durable read; stale ones are fetched and persisted.
type RefreshJob struct {
	base.JobBase
	ensurer BatchEnsurer
	targets []RefreshTarget
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshJob creates a watchlist refresh job. Targets without symbols are ignored.
func NewRefreshJob(ensurer BatchEnsurer, targets []RefreshTarget, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	active := make([]RefreshTarget, 0, len(targets))
	for _, t := range targets {
		if len(t.Symbols) > 0 && t.Fetch != nil {
			active = append(active, t)
		}
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RefreshJob{
		ensurer: ensurer,
		targets: active,
		timeout: timeout,
		log:     log.With().Str("job", "watchlist_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "watchlist_refresh"
}

// Run refreshes every watchlist symbol. It fails only when no symbol could be resolved.
func (j *RefreshJob) Run() error {
	if len(j.targets) == 0 {
		return nil
	}

	runID := uuid.NewString()
	log := j.log.With().Str("run_id", runID).Logger()

	var items []freshness.BatchItem
	for _, target := range j.targets {
		for _, symbol := range target.Symbols {
			items = append(items, freshness.BatchItem{
				Category: target.Category,
				Symbol:   symbol,
				Fetch:    target.Fetch(symbol),
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results := j.ensurer.EnsureBatchData(ctx, items)

	var fetched, stale int
	var missing []string
	for _, item := range items {
		result := results[item.Symbol]
		switch {
		case result == nil:
			missing = append(missing, item.Symbol)
		case result.Stale:
			stale++
		case result.Source == freshness.SourceFetched:
			fetched++
		}
	}

	log.Info().
		Int("symbols", len(items)).
		Int("fetched", fetched).
		Int("stale", stale).
		Int("missing", len(missing)).
		Msg("Watchlist refresh completed")

	if len(missing) > 0 {
		log.Warn().Strs("symbols", missing).Msg("No data for watchlist symbols")
	}
	if len(missing) == len(items) {
		return fmt.Errorf("watchlist refresh: no data for any of %s", strings.Join(missing, ", "))
	}
	return nil
}
