// Package sources maps asset categories to the upstream clients that can fetch them.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/marketdata/internal/domain"
)

// ErrNoSource is returned by fetches for categories without a registered client
var ErrNoSource = errors.New("no upstream source for category")

// Builder returns the fetch for one symbol
type Builder func(symbol string) domain.FetchFunc

// Registry holds one Builder per category
type Registry struct {
	mu       sync.RWMutex
	builders map[domain.AssetCategory]Builder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{builders: make(map[domain.AssetCategory]Builder)}
}

// Register sets the builder of a category, replacing any previous one
func (r *Registry) Register(category domain.AssetCategory, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[category] = builder
}

// Has reports whether a category has a source
func (r *Registry) Has(category domain.AssetCategory) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[category]
	return ok
}

// Builder returns the builder of a category
func (r *Registry) Builder(category domain.AssetCategory) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[category]
	return b, ok
}

// Fetch returns the fetch for (category, symbol). Categories without a source
// get a fetch that fails with ErrNoSource, so stored data is still served.
func (r *Registry) Fetch(category domain.AssetCategory, symbol string) domain.FetchFunc {
	if b, ok := r.Builder(category); ok {
		return b(symbol)
	}
	return func(ctx context.Context) ([]domain.Observation, error) {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, category)
	}
}

// Categories returns the categories with a source, sorted
func (r *Registry) Categories() []domain.AssetCategory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]domain.AssetCategory, 0, len(r.builders))
	for c := range r.builders {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}
