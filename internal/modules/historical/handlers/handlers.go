// Package handlers provides HTTP handlers for historical observation series.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/marketdata/internal/cache"
	"github.com/aristath/marketdata/internal/domain"
	"github.com/aristath/marketdata/internal/freshness"
	"github.com/aristath/marketdata/internal/storage"
	"github.com/rs/zerolog"
)

// SeriesCache serves ranged series reads through the cache store
type SeriesCache interface {
	CachedHistory(
		ctx context.Context,
		category domain.AssetCategory,
		symbol, start, end string,
		limit int,
		cctx domain.CacheContext,
		load freshness.SeriesLoader,
	) (cache.Result[[]domain.Observation], error)
}

// SeriesReader reads stored series from durable storage
type SeriesReader interface {
	ReadSeries(ctx context.Context, category domain.AssetCategory, symbol string, q storage.SeriesQuery) ([]domain.Observation, error)
}

// Handler handles historical data HTTP requests
type Handler struct {
	cache  SeriesCache
	reader SeriesReader
	now    func() time.Time
	log    zerolog.Logger
}

// NewHandler creates a new historical data handler
func NewHandler(
	seriesCache SeriesCache,
	reader SeriesReader,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		cache:  seriesCache,
		reader: reader,
		now:    time.Now,
		log:    log.With().Str("handler", "historical").Logger(),
	}
}

// HandleGetSeries handles GET /api/historical/{category}/{symbol}
// Query: start, end (YYYY-MM-DD, inclusive), limit (most recent N), refresh=true
func (h *Handler) HandleGetSeries(w http.ResponseWriter, r *http.Request, rawCategory, symbol string) {
	category, ok := domain.ParseCategory(rawCategory)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown category: %s", rawCategory), http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	start, end := query.Get("start"), query.Get("end")
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			http.Error(w, fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD", d), http.StatusBadRequest)
			return
		}
	}
	if start != "" && end != "" && start > end {
		http.Error(w, "start must not be after end", http.StatusBadRequest)
		return
	}

	limit := 0 // all
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	refresh, _ := strconv.ParseBool(query.Get("refresh"))
	// A range that ends before today can no longer change
	today := h.now().UTC().Format(domain.DateLayout)
	cctx := domain.CacheContext{
		IsHistorical: end != "" && end < today,
		Refresh:      refresh,
	}

	load := func(ctx context.Context) ([]domain.Observation, error) {
		return h.reader.ReadSeries(ctx, category, symbol, storage.SeriesQuery{Start: start, End: end, Limit: limit})
	}

	result, err := h.cache.CachedHistory(r.Context(), category, symbol, start, end, limit, cctx, load)
	if err != nil {
		h.log.Error().Err(err).Str("category", string(category)).Str("symbol", symbol).Msg("Failed to read series")
		http.Error(w, "Failed to read series", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"category":     category,
			"symbol":       symbol,
			"observations": result.Value,
			"count":        len(result.Value),
		},
		"metadata": map[string]interface{}{
			"timestamp":  h.now().Format(time.RFC3339),
			"from_cache": result.FromCache,
			"historical": cctx.IsHistorical,
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
