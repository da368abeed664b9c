package storage

import (
	"context"
	"time"

	"github.com/aristath/marketdata/internal/scheduler/base"
	"github.com/rs/zerolog"
)

// PruneJob removes observations older than the retention window.
// It should be scheduled to run daily.
type PruneJob struct {
	base.JobBase
	repo      *Repository
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewPruneJob creates a new retention prune job
func NewPruneJob(repo *Repository, retention time.Duration, log zerolog.Logger) *PruneJob {
	return &PruneJob{
		repo:      repo,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("job", "market_data_prune").Logger(),
	}
}

// Run deletes observations dated before now - retention
func (j *PruneJob) Run() error {
	cutoff := j.now().Add(-j.retention)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.repo.PruneOlderThan(ctx, cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune market data")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Str("cutoff", cutoff.Format("2006-01-02")).
			Msg("Pruned old observations")
	}

	return nil
}

// Name returns the job name for scheduling and logging
func (j *PruneJob) Name() string {
	return "market_data_prune"
}
