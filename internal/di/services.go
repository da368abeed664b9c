package di

import (
	"github.com/aristath/marketdata/internal/cache"
	"github.com/aristath/marketdata/internal/clients/binance"
	"github.com/aristath/marketdata/internal/clients/investing"
	"github.com/aristath/marketdata/internal/clients/stockanalysis"
	"github.com/aristath/marketdata/internal/config"
	"github.com/aristath/marketdata/internal/domain"
	"github.com/aristath/marketdata/internal/freshness"
	"github.com/aristath/marketdata/internal/modules/cachepolicy"
	"github.com/aristath/marketdata/internal/modules/market_hours"
	"github.com/aristath/marketdata/internal/scheduler"
	"github.com/aristath/marketdata/internal/sources"
	"github.com/aristath/marketdata/internal/storage"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the storage repository over the open database
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.Repo = storage.NewRepository(container.DB.Conn(), cfg.Namespaces, log)
}

// InitializeServices creates clients, the TTL policy, the cache store and the freshness service
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	// Clients
	container.BinanceClient = binance.NewClient(log)
	container.StockAnalysisClient = stockanalysis.NewClient(log)
	container.InvestingClient = investing.NewClient(log)

	// Upstream source per category; categories without one are served from storage
	container.Sources = sources.NewRegistry()
	container.Sources.Register(domain.CategoryCrypto, container.BinanceClient.Fetch)
	container.Sources.Register(domain.CategoryPKEquity, container.StockAnalysisClient.Fetch)
	container.Sources.Register(domain.CategoryUSIndex, container.InvestingClient.Fetch)

	container.MarketHours = market_hours.NewMarketHoursService()
	container.Policy = cachepolicy.NewPolicy(
		container.MarketHours,
		cachepolicy.WithFetchTimeouts(cfg.FetchTimeoutQuotes, cfg.FetchTimeoutSlow),
	)

	container.Cache = cache.NewStore(
		container.Policy,
		cache.WithSweepInterval(cfg.CacheSweepInterval),
		cache.WithLogger(log),
	)

	container.Freshness = freshness.NewService(
		container.Repo,
		container.Policy,
		container.Cache,
		freshness.Config{
			BatchConcurrency: cfg.BatchConcurrency,
			PersistTimeout:   cfg.PersistTimeout,
		},
		log,
	)

	container.Scheduler = scheduler.New(log)
}
