package scheduler

import (
	"database/sql"
	"fmt"

	"github.com/aristath/marketdata/internal/database"
	"github.com/rs/zerolog"
)

// CheckDatabaseIntegrityJob verifies integrity of the SQLite databases
type CheckDatabaseIntegrityJob struct {
	JobBase
	log       zerolog.Logger
	databases []*database.DB
}

// NewCheckDatabaseIntegrityJob creates a new CheckDatabaseIntegrityJob
func NewCheckDatabaseIntegrityJob(databases ...*database.DB) *CheckDatabaseIntegrityJob {
	return &CheckDatabaseIntegrityJob{
		log:       zerolog.Nop(),
		databases: databases,
	}
}

// SetLogger sets the logger for the job
func (j *CheckDatabaseIntegrityJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *CheckDatabaseIntegrityJob) Name() string {
	return "check_database_integrity"
}

// Run executes the integrity check. The first corrupted database fails the run.
func (j *CheckDatabaseIntegrityJob) Run() error {
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		if err := checkDatabaseIntegrity(db.Conn()); err != nil {
			// Corruption is not auto-recoverable
			j.log.Error().
				Err(err).
				Str("database", db.Name()).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", db.Name(), err)
		}

		j.log.Debug().Str("database", db.Name()).Msg("Database integrity OK")
	}

	j.log.Info().Msg("Database integrity check passed")
	return nil
}

// checkDatabaseIntegrity runs SQLite's PRAGMA integrity_check
func checkDatabaseIntegrity(db *sql.DB) error {
	var result string
	err := db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}

	return nil
}
