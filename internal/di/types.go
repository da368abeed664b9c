/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server for access to services.
 */
package di

import (
	"github.com/aristath/marketdata/internal/cache"
	"github.com/aristath/marketdata/internal/clients/binance"
	"github.com/aristath/marketdata/internal/clients/investing"
	"github.com/aristath/marketdata/internal/clients/stockanalysis"
	"github.com/aristath/marketdata/internal/database"
	"github.com/aristath/marketdata/internal/freshness"
	"github.com/aristath/marketdata/internal/modules/cachepolicy"
	"github.com/aristath/marketdata/internal/modules/market_hours"
	"github.com/aristath/marketdata/internal/scheduler"
	"github.com/aristath/marketdata/internal/sources"
	"github.com/aristath/marketdata/internal/storage"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Database: one SQLite file holding every storage namespace
 * - Clients: upstream data sources (Binance, stockanalysis.com, investing.com)
 * - Services: TTL policy, cache store, freshness service
 * - Scheduler: watchlist refresh and maintenance jobs
 */
type Container struct {
	// Database
	DB *database.DB

	// Repositories
	Repo *storage.Repository

	// Clients
	BinanceClient       *binance.Client
	StockAnalysisClient *stockanalysis.Client
	InvestingClient     *investing.Client

	// Services
	MarketHours *market_hours.MarketHoursService
	Policy      *cachepolicy.Policy
	Cache       *cache.Store
	Freshness   *freshness.Service
	Sources     *sources.Registry

	// Background jobs
	Scheduler *scheduler.Scheduler
	Jobs      *JobInstances
}

// JobInstances holds the registered job instances for manual triggering and tests
type JobInstances struct {
	Refresh   *scheduler.RefreshJob // nil when every watchlist is empty
	WAL       *scheduler.CheckWALCheckpointsJob
	Integrity *scheduler.CheckDatabaseIntegrityJob
	Prune     *storage.PruneJob // nil when retention is disabled
}
