package domain

import "context"

// FetchFunc reaches an external data source for one (category, symbol) pair.
// Supplied per call by the caller; must be safe to invoke at most once per fetch attempt.
type FetchFunc func(ctx context.Context) ([]Observation, error)

// RecordReader reads the latest persisted records from durable storage
type RecordReader interface {
	// ReadLatest returns the most recent record, or nil, nil if none exists
	ReadLatest(ctx context.Context, category AssetCategory, symbol string) (*PersistedRecord, error)

	// ReadLatestMany returns the most recent record per symbol in one query per namespace.
	// Symbols without records are absent from the map.
	ReadLatestMany(ctx context.Context, category AssetCategory, symbols []string) (map[string]*PersistedRecord, error)
}

// RecordWriter writes fetched observations to durable storage
type RecordWriter interface {
	// Upsert inserts or replaces observations keyed by (symbol, date)
	Upsert(ctx context.Context, category AssetCategory, symbol string, observations []Observation) error
}

// RecordStore combines reader and writer
type RecordStore interface {
	RecordReader
	RecordWriter
}
