package cache

import (
	"strconv"
	"strings"

	"github.com/aristath/marketdata/internal/domain"
)

// KeyKind identifies a family of cache keys
type KeyKind string

const (
	KindHistorical KeyKind = "historical"
	KindLatest     KeyKind = "latest"
	KindSeries     KeyKind = "series"
)

// unbounded renders an empty range bound
const unbounded = "all"

// Key is a typed cache key. Render it with String.
type Key struct {
	Kind     KeyKind
	Category domain.AssetCategory
	Symbol   string
	Start    string // YYYY-MM-DD, historical only
	End      string // YYYY-MM-DD, historical only
	Limit    int    // historical only; 0 = no limit
	Refresh  bool
}

// HistoricalKey builds the key for a ranged historical query
func HistoricalKey(category domain.AssetCategory, symbol, start, end string, limit int) Key {
	return Key{Kind: KindHistorical, Category: category, Symbol: symbol, Start: start, End: end, Limit: limit}
}

// LatestKey builds the key for the latest observation of a symbol
func LatestKey(category domain.AssetCategory, symbol string) Key {
	return Key{Kind: KindLatest, Category: category, Symbol: symbol}
}

// SeriesKey builds the key for the full stored series of a symbol
func SeriesKey(category domain.AssetCategory, symbol string) Key {
	return Key{Kind: KindSeries, Category: category, Symbol: symbol}
}

// WithRefresh returns a copy of k flagged as a refresh lookup
func (k Key) WithRefresh() Key {
	k.Refresh = true
	return k
}

// String renders the canonical, normalized key.
// Category is lower-cased and symbol upper-cased.
func (k Key) String() string {
	parts := []string{string(k.Kind), categoryPart(k.Category), symbolPart(k.Symbol)}

	if k.Kind == KindHistorical {
		parts = append(parts, boundPart(k.Start), boundPart(k.End), strconv.Itoa(k.Limit))
	}
	if k.Refresh {
		parts = append(parts, "refresh")
	}

	return NormalizeKey(strings.Join(parts, ":"))
}

// InvalidationPatterns returns the patterns covering every key family for a
// symbol. Writes to one equity namespace also invalidate the generic equity
// keys and vice versa.
func InvalidationPatterns(category domain.AssetCategory, symbol string) []string {
	categories := []domain.AssetCategory{category}
	switch category {
	case domain.CategoryPKEquity, domain.CategoryUSEquity:
		categories = append(categories, domain.CategoryEquity)
	case domain.CategoryEquity:
		categories = append(categories, domain.CategoryPKEquity, domain.CategoryUSEquity)
	}

	sym := symbolPart(symbol)
	patterns := make([]string, 0, len(categories)*5)
	for _, c := range categories {
		cat := categoryPart(c)
		patterns = append(patterns,
			NormalizeKey(string(KindHistorical)+":"+cat+":"+sym+":*"),
			NormalizeKey(string(KindLatest)+":"+cat+":"+sym),
			NormalizeKey(string(KindLatest)+":"+cat+":"+sym+":*"),
			NormalizeKey(string(KindSeries)+":"+cat+":"+sym),
			NormalizeKey(string(KindSeries)+":"+cat+":"+sym+":*"),
		)
	}
	return patterns
}

func categoryPart(category domain.AssetCategory) string {
	return strings.ToLower(strings.TrimSpace(string(category)))
}

func symbolPart(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func boundPart(bound string) string {
	if bound == "" {
		return unbounded
	}
	return bound
}
