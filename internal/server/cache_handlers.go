package server

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/marketdata/internal/cache"
	"github.com/aristath/marketdata/internal/domain"
)

// CacheInspector reads the cache store
type CacheInspector interface {
	Stats() cache.Stats
	Keys() []string
}

// CacheInvalidator removes cache keys
type CacheInvalidator interface {
	Invalidate(key string) bool
	InvalidatePattern(pattern string) int
	InvalidateSymbol(category domain.AssetCategory, symbol string) int
}

// CacheHandlers serves the cache inspection and invalidation endpoints
type CacheHandlers struct {
	inspector   CacheInspector
	invalidator CacheInvalidator
	log         zerolog.Logger
}

// NewCacheHandlers creates the cache handlers
func NewCacheHandlers(inspector CacheInspector, invalidator CacheInvalidator, log zerolog.Logger) *CacheHandlers {
	return &CacheHandlers{
		inspector:   inspector,
		invalidator: invalidator,
		log:         log.With().Str("handler", "cache").Logger(),
	}
}

// HandleStats handles GET /api/cache/stats
func (h *CacheHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, h.inspector.Stats())
}

// HandleKeys handles GET /api/cache/keys?pattern=
func (h *CacheHandlers) HandleKeys(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")

	keys := make([]string, 0)
	for _, key := range h.inspector.Keys() {
		if pattern == "" || cache.MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

// HandleDeleteKey handles DELETE /api/cache/keys/{key}
func (h *CacheHandlers) HandleDeleteKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !h.invalidator.Invalidate(key) {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}
	h.log.Info().Str("key", key).Msg("Cache key invalidated")
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{"removed": 1})
}

// HandleDeletePattern handles DELETE /api/cache?pattern=
func (h *CacheHandlers) HandleDeletePattern(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		http.Error(w, "pattern is required", http.StatusBadRequest)
		return
	}

	removed := h.invalidator.InvalidatePattern(pattern)
	h.log.Info().Str("pattern", pattern).Int("removed", removed).Msg("Cache pattern invalidated")
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{"removed": removed})
}

// HandleInvalidateSymbol handles POST /api/cache/invalidate/{category}/{symbol}
func (h *CacheHandlers) HandleInvalidateSymbol(w http.ResponseWriter, r *http.Request) {
	rawCategory := chi.URLParam(r, "category")
	category, ok := domain.ParseCategory(rawCategory)
	if !ok {
		http.Error(w, "Unknown category: "+rawCategory, http.StatusBadRequest)
		return
	}
	symbol := chi.URLParam(r, "symbol")

	removed := h.invalidator.InvalidateSymbol(category, symbol)
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"removed":  removed,
	})
}
