package freshness

import (
	"time"

	"github.com/aristath/marketdata/internal/domain"
)

// Source tells where a Result came from
type Source string

const (
	// SourceDurable is a fresh record read from durable storage
	SourceDurable Source = "durable"
	// SourceFetched is a value fetched by this caller
	SourceFetched Source = "fetched"
	// SourceShared is a value fetched by a concurrent caller for the same key
	SourceShared Source = "shared"
	// SourceFailover is a stale durable record served after a failed fetch
	SourceFailover Source = "failover"
)

// Result is the latest observation for a (category, symbol) pair
type Result struct {
	Category  domain.AssetCategory `json:"category"`
	Symbol    string               `json:"symbol"`
	Value     domain.Observation   `json:"value"`
	AsOf      time.Time            `json:"as_of"`
	UpdatedAt time.Time            `json:"updated_at"`
	Source    Source               `json:"source"`
	Stale     bool                 `json:"stale"`
}

func resultFromRecord(record *domain.PersistedRecord, source Source, stale bool) *Result {
	return &Result{
		Category:  record.Category,
		Symbol:    record.Symbol,
		Value:     record.Value,
		AsOf:      record.AsOf,
		UpdatedAt: record.UpdatedAt,
		Source:    source,
		Stale:     stale,
	}
}

// as returns a copy of r tagged with source
func (r *Result) as(source Source) *Result {
	c := *r
	c.Source = source
	return &c
}
