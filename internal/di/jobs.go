package di

import (
	"fmt"

	"github.com/aristath/marketdata/internal/config"
	"github.com/aristath/marketdata/internal/domain"
	"github.com/aristath/marketdata/internal/scheduler"
	"github.com/aristath/marketdata/internal/storage"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and adds them to the scheduler
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	instances := &JobInstances{}

	// Watchlist refresh
	targets := watchlistTargets(container, cfg)
	if len(targets) > 0 {
		instances.Refresh = scheduler.NewRefreshJob(container.Freshness, targets, cfg.RefreshTimeout, log)
		if err := container.Scheduler.AddJob(cfg.RefreshSchedule, instances.Refresh); err != nil {
			return nil, fmt.Errorf("failed to register watchlist refresh job: %w", err)
		}
	} else {
		log.Info().Msg("All watchlists empty, watchlist refresh disabled")
	}

	// WAL checkpoints
	instances.WAL = scheduler.NewCheckWALCheckpointsJob(container.DB)
	instances.WAL.SetLogger(log)
	if err := container.Scheduler.AddJob(cfg.WALCheckSchedule, instances.WAL); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	// Integrity check, daily
	instances.Integrity = scheduler.NewCheckDatabaseIntegrityJob(container.DB)
	instances.Integrity.SetLogger(log)
	if err := container.Scheduler.AddJob("0 30 2 * * *", instances.Integrity); err != nil {
		return nil, fmt.Errorf("failed to register integrity check job: %w", err)
	}

	// Retention pruning
	if retention := cfg.Retention(); retention > 0 {
		instances.Prune = storage.NewPruneJob(container.Repo, retention, log)
		if err := container.Scheduler.AddJob(cfg.PruneSchedule, instances.Prune); err != nil {
			return nil, fmt.Errorf("failed to register prune job: %w", err)
		}
	}

	log.Info().Int("jobs", len(container.Scheduler.Jobs())).Msg("Jobs registered")

	return instances, nil
}

func watchlistTargets(container *Container, cfg *config.Config) []scheduler.RefreshTarget {
	watchlists := []struct {
		category domain.AssetCategory
		symbols  []string
	}{
		{domain.CategoryCrypto, cfg.WatchlistCrypto},
		{domain.CategoryPKEquity, cfg.WatchlistPSX},
		{domain.CategoryUSIndex, cfg.WatchlistUSIndex},
	}

	targets := make([]scheduler.RefreshTarget, 0, len(watchlists))
	for _, w := range watchlists {
		builder, ok := container.Sources.Builder(w.category)
		if !ok || len(w.symbols) == 0 {
			continue
		}
		targets = append(targets, scheduler.RefreshTarget{
			Category: w.category,
			Symbols:  w.symbols,
			Fetch:    scheduler.FetchBuilder(builder),
		})
	}
	return targets
}
