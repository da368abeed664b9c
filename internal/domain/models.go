// Package domain provides core domain models and types.
package domain

import (
	"sort"
	"strings"
	"time"
)

// AssetCategory classifies an instrument for TTL policy, fetch timeouts and storage routing
type AssetCategory string

const (
	// CategoryCrypto represents 24/7 crypto pairs (Binance)
	CategoryCrypto AssetCategory = "crypto"
	// CategoryPKEquity represents Pakistan Stock Exchange listed equities
	CategoryPKEquity AssetCategory = "pk-equity"
	// CategoryUSEquity represents US listed equities
	CategoryUSEquity AssetCategory = "us-equity"
	// CategoryEquity is the generic equity category spanning both equity namespaces
	CategoryEquity AssetCategory = "equity"
	// CategoryMetals represents precious metals (priced on the US session)
	CategoryMetals AssetCategory = "metals"
	// CategoryPKIndex represents PSX indices (KSE-100 etc.)
	CategoryPKIndex AssetCategory = "pk-index"
	// CategoryUSIndex represents US indices (S&P 500 etc.)
	CategoryUSIndex AssetCategory = "us-index"
	// CategoryMacro represents central-bank statistical series
	CategoryMacro AssetCategory = "macro"
	// CategoryFinancials represents company financial statements
	CategoryFinancials AssetCategory = "financials"
	// CategoryDividends represents dividend histories
	CategoryDividends AssetCategory = "dividends"
)

// AllCategories lists every known category in a stable order
var AllCategories = []AssetCategory{
	CategoryCrypto,
	CategoryPKEquity,
	CategoryUSEquity,
	CategoryEquity,
	CategoryMetals,
	CategoryPKIndex,
	CategoryUSIndex,
	CategoryMacro,
	CategoryFinancials,
	CategoryDividends,
}

// ParseCategory parses a category name (case-insensitive, "_" accepted for "-")
func ParseCategory(s string) (AssetCategory, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for _, c := range AllCategories {
		if string(c) == normalized {
			return c, true
		}
	}
	return "", false
}

// IsValid reports whether the category is one of the known categories
func (c AssetCategory) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the category name
func (c AssetCategory) String() string {
	return string(c)
}

// CacheContext describes why a lookup is happening.
// It is supplied by the caller and never mutated by the cache layer.
type CacheContext struct {
	IsHistorical bool   `json:"is_historical"`
	MarketClosed *bool  `json:"market_closed,omitempty"` // Overrides the calendar when set
	Refresh      bool   `json:"refresh"`
	Date         string `json:"date,omitempty"` // YYYY-MM-DD, pins the lookup to a past date
}

// DateLayout is the layout of Observation.Date and CacheContext.Date
const DateLayout = "2006-01-02"

// Observation is one dated data point: an OHLCV bar, a macro print, a dividend, a metric set
type Observation struct {
	Date   string             `json:"date" msgpack:"date"`
	Values map[string]float64 `json:"values" msgpack:"values"`
}

// Time parses the observation date. Returns the zero time if the date is malformed.
func (o Observation) Time() time.Time {
	t, err := time.Parse(DateLayout, o.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Close returns the "close" value if present
func (o Observation) Close() (float64, bool) {
	v, ok := o.Values["close"]
	return v, ok
}

// LatestObservation returns the observation with the greatest date.
// Returns false if the slice is empty.
func LatestObservation(observations []Observation) (Observation, bool) {
	if len(observations) == 0 {
		return Observation{}, false
	}
	latest := observations[0]
	for _, o := range observations[1:] {
		if o.Date > latest.Date {
			latest = o
		}
	}
	return latest, true
}

// SortObservations sorts observations oldest first, in place
func SortObservations(observations []Observation) {
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Date < observations[j].Date
	})
}

// PersistedRecord is the latest durable record for a (category, symbol) pair.
// Owned by durable storage; this layer only reads and writes it.
type PersistedRecord struct {
	Category  AssetCategory `json:"category"`
	Symbol    string        `json:"symbol"`
	Namespace string        `json:"namespace"`
	Value     Observation   `json:"value"`
	AsOf      time.Time     `json:"as_of"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Age returns how long ago the record was written
func (r *PersistedRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.UpdatedAt)
}
