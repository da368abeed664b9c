// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/marketdata/internal/config"
	"github.com/aristath/marketdata/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the market data database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// marketdata.db - every storage namespace; rows can be re-fetched upstream
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileCache,
		Name:    "marketdata",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize marketdata database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate marketdata database: %w", err)
	}
	container.DB = db

	log.Info().Str("path", db.Path()).Msg("Database initialized")

	return container, nil
}
