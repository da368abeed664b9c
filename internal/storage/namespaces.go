package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/marketdata/internal/domain"
)

// ErrUnknownNamespace is returned for categories with no storage namespace
var ErrUnknownNamespace = errors.New("no storage namespace for category")

// Namespaces maps each category to the storage namespaces it reads from.
// Writes go to the first namespace.
type Namespaces map[domain.AssetCategory][]string

// DefaultNamespaces is the category table used unless overridden by config
func DefaultNamespaces() Namespaces {
	return Namespaces{
		domain.CategoryCrypto:     {"crypto"},
		domain.CategoryPKEquity:   {"pk_equity"},
		domain.CategoryUSEquity:   {"us_equity"},
		domain.CategoryEquity:     {"pk_equity", "us_equity"},
		domain.CategoryMetals:     {"metals"},
		domain.CategoryPKIndex:    {"pk_index"},
		domain.CategoryUSIndex:    {"us_index"},
		domain.CategoryMacro:      {"macro"},
		domain.CategoryFinancials: {"financials"},
		domain.CategoryDividends:  {"dividends"},
	}
}

// Resolve returns the namespaces of a category
func (n Namespaces) Resolve(category domain.AssetCategory) ([]string, error) {
	namespaces, ok := n[category]
	if !ok || len(namespaces) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, category)
	}
	return namespaces, nil
}

// ParseNamespaces applies overrides of the form
// "equity=pk_equity,us_equity;metals=commodities" on top of the defaults.
func ParseNamespaces(overrides string) (Namespaces, error) {
	namespaces := DefaultNamespaces()
	if strings.TrimSpace(overrides) == "" {
		return namespaces, nil
	}

	for _, entry := range strings.Split(overrides, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, list, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid namespace entry %q: expected category=ns[,ns]", entry)
		}
		category, ok := domain.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("invalid namespace entry %q: unknown category %q", entry, name)
		}

		var resolved []string
		for _, ns := range strings.Split(list, ",") {
			if ns = strings.TrimSpace(ns); ns != "" {
				resolved = append(resolved, ns)
			}
		}
		if len(resolved) == 0 {
			return nil, fmt.Errorf("invalid namespace entry %q: no namespaces", entry)
		}
		namespaces[category] = resolved
	}

	return namespaces, nil
}
