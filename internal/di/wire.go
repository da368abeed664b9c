// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/marketdata/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// This is the main entry point for dependency injection
// Order of operations:
// 1. Initialize the database
// 2. Initialize the repository
// 3. Initialize clients and services
// 4. Register jobs
// Background loops (cache sweeper, scheduler) are started by the caller.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	// Step 1: Initialize database
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Initialize repositories
	InitializeRepositories(container, cfg, log)

	// Step 3: Initialize services
	InitializeServices(container, cfg, log)

	// Step 4: Register jobs
	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.DB.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}
	container.Jobs = jobs

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// Close waits for background writes and closes the database.
// Stop the scheduler and the cache store before calling Close.
func (c *Container) Close() error {
	if c.Freshness != nil {
		c.Freshness.Wait()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
