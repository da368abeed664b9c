// Package handlers provides HTTP handlers for latest market data lookups.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/aristath/marketdata/internal/freshness"
	"github.com/rs/zerolog"
)

// MaxBatchItems caps the number of symbols in one batch request
const MaxBatchItems = 200

// Ensurer resolves latest values through the freshness layer
type Ensurer interface {
	EnsureData(ctx context.Context, category domain.AssetCategory, symbol string, fetch domain.FetchFunc, forceRefresh bool) *freshness.Result
	EnsureBatchData(ctx context.Context, items []freshness.BatchItem) map[string]*freshness.Result
}

// FetchResolver returns the upstream fetch for (category, symbol)
type FetchResolver interface {
	Fetch(category domain.AssetCategory, symbol string) domain.FetchFunc
}

// Handler handles market data HTTP requests
type Handler struct {
	ensurer Ensurer
	sources FetchResolver
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(
	ensurer Ensurer,
	sources FetchResolver,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		ensurer: ensurer,
		sources: sources,
		now:     time.Now,
		log:     log.With().Str("handler", "market_data").Logger(),
	}
}

// HandleGetLatest handles GET /api/market-data/{category}/{symbol}
// Query: refresh=true forces an upstream fetch
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request, rawCategory, symbol string) {
	category, ok := domain.ParseCategory(rawCategory)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown category: %s", rawCategory), http.StatusBadRequest)
		return
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		http.Error(w, "Symbol is required", http.StatusBadRequest)
		return
	}

	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	result := h.ensurer.EnsureData(r.Context(), category, symbol, h.sources.Fetch(category, symbol), refresh)
	if result == nil {
		h.log.Warn().Str("category", string(category)).Str("symbol", symbol).Msg("No data available")
		http.Error(w, fmt.Sprintf("No data available for %s/%s", category, symbol), http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
			"source":    result.Source,
			"stale":     result.Stale,
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// BatchRequestItem is one entry of a batch request body
type BatchRequestItem struct {
	Category     string `json:"category"`
	Symbol       string `json:"symbol"`
	ForceRefresh bool   `json:"force_refresh"`
}

// BatchRequest is the body of POST /api/market-data/batch
type BatchRequest struct {
	Items []BatchRequestItem `json:"items"`
}

// HandleBatch handles POST /api/market-data/batch
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "At least one item is required", http.StatusBadRequest)
		return
	}
	if len(req.Items) > MaxBatchItems {
		http.Error(w, fmt.Sprintf("At most %d items per batch", MaxBatchItems), http.StatusBadRequest)
		return
	}

	items := make([]freshness.BatchItem, 0, len(req.Items))
	seen := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		category, ok := domain.ParseCategory(item.Category)
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown category: %s", item.Category), http.StatusBadRequest)
			return
		}
		symbol := strings.TrimSpace(item.Symbol)
		if symbol == "" {
			http.Error(w, "Symbol is required", http.StatusBadRequest)
			return
		}
		// Results are keyed by symbol
		if seen[symbol] {
			http.Error(w, fmt.Sprintf("Duplicate symbol: %s", symbol), http.StatusBadRequest)
			return
		}
		seen[symbol] = true

		items = append(items, freshness.BatchItem{
			Category:     category,
			Symbol:       symbol,
			Fetch:        h.sources.Fetch(category, symbol),
			ForceRefresh: item.ForceRefresh,
		})
	}

	results := h.ensurer.EnsureBatchData(r.Context(), items)

	resolved := 0
	for _, result := range results {
		if result != nil {
			resolved++
		}
	}

	response := map[string]interface{}{
		"data": results,
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
			"requested": len(items),
			"resolved":  resolved,
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
