// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/marketdata/internal/scheduler"
	"github.com/aristath/marketdata/internal/storage"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Directory of the durable store (always absolute)
	Port     int
	LogLevel string
	DevMode  bool // Pretty console logging

	CacheSweepInterval time.Duration
	BatchConcurrency   int
	PersistTimeout     time.Duration
	FetchTimeoutQuotes time.Duration
	FetchTimeoutSlow   time.Duration

	Namespaces storage.Namespaces

	RefreshSchedule  string
	RefreshTimeout   time.Duration
	WatchlistCrypto  []string
	WatchlistPSX     []string
	WatchlistUSIndex []string

	RetentionDays    int // 0 disables pruning
	PruneSchedule    string
	WALCheckSchedule string
}

// DatabasePath returns the path of the market data SQLite file
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "marketdata.db")
}

// Retention returns the retention window, or zero when pruning is disabled
func (c *Config) Retention() time.Duration {
	if c.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("MARKETDATA_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	namespaces, err := storage.ParseNamespaces(getEnv("MARKETDATA_NAMESPACES", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid MARKETDATA_NAMESPACES: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		CacheSweepInterval: getEnvAsDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		BatchConcurrency:   getEnvAsInt("BATCH_CONCURRENCY", 4),
		PersistTimeout:     getEnvAsDuration("PERSIST_TIMEOUT", 15*time.Second),
		FetchTimeoutQuotes: getEnvAsDuration("FETCH_TIMEOUT_QUOTES", 10*time.Second),
		FetchTimeoutSlow:   getEnvAsDuration("FETCH_TIMEOUT_SLOW", 30*time.Second),

		Namespaces: namespaces,

		RefreshSchedule:  getEnv("REFRESH_SCHEDULE", "0 */5 * * * *"),
		RefreshTimeout:   getEnvAsDuration("REFRESH_TIMEOUT", 2*time.Minute),
		WatchlistCrypto:  getEnvAsList("WATCHLIST_CRYPTO", nil),
		WatchlistPSX:     getEnvAsList("WATCHLIST_PSX", nil),
		WatchlistUSIndex: getEnvAsList("WATCHLIST_US_INDEX", nil),

		RetentionDays:    getEnvAsInt("RETENTION_DAYS", 0),
		PruneSchedule:    getEnv("PRUNE_SCHEDULE", "0 0 3 * * *"),
		WALCheckSchedule: getEnv("WAL_CHECK_SCHEDULE", "0 */30 * * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that numeric settings are usable and schedules parse
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.BatchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency))
	}
	if c.CacheSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_SWEEP_INTERVAL must be positive, got %s", c.CacheSweepInterval))
	}
	if c.PersistTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PERSIST_TIMEOUT must be positive, got %s", c.PersistTimeout))
	}
	if c.FetchTimeoutQuotes <= 0 || c.FetchTimeoutSlow <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT_QUOTES and FETCH_TIMEOUT_SLOW must be positive"))
	}
	if c.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("RETENTION_DAYS must not be negative, got %d", c.RetentionDays))
	}

	schedules := map[string]string{
		"REFRESH_SCHEDULE":   c.RefreshSchedule,
		"PRUNE_SCHEDULE":     c.PruneSchedule,
		"WAL_CHECK_SCHEDULE": c.WALCheckSchedule,
	}
	for _, key := range []string{"REFRESH_SCHEDULE", "PRUNE_SCHEDULE", "WAL_CHECK_SCHEDULE"} {
		if err := scheduler.ValidateSchedule(schedules[key]); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", key, schedules[key], err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
