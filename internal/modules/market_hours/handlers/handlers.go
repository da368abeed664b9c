// Package handlers provides HTTP handlers for market hours operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/marketdata/internal/modules/market_hours"
	"github.com/rs/zerolog"
)

// Handler handles market hours HTTP requests
type Handler struct {
	service *market_hours.MarketHoursService
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandler creates a new market hours handler
func NewHandler(
	service *market_hours.MarketHoursService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service: service,
		now:     time.Now,
		log:     log.With().Str("handler", "market_hours").Logger(),
	}
}

// HandleGetStatus handles GET /api/market-hours/status
// Returns current market status for all configured markets
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	exchangeCodes := market_hours.ExchangeCodes()
	markets := make([]*market_hours.MarketStatus, 0, len(exchangeCodes))
	for _, code := range exchangeCodes {
		status, err := h.service.GetMarketStatus(code, now)
		if err != nil {
			h.log.Warn().Err(err).Str("exchange", code).Msg("Failed to get market status")
			continue
		}
		markets = append(markets, status)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"timestamp": now.Format(time.RFC3339),
			"markets":   markets,
		},
		"metadata": metadata(),
	})
}

// HandleGetStatusByExchange handles GET /api/market-hours/status/{exchange}
// Accepts an exchange code (XKAR) or a common name (PSX, NYSE, Binance)
func (h *Handler) HandleGetStatusByExchange(w http.ResponseWriter, r *http.Request, exchange string) {
	status, err := h.service.GetMarketStatus(exchange, h.now())
	if err != nil {
		h.log.Debug().Err(err).Str("exchange", exchange).Msg("Unknown exchange requested")
		http.Error(w, "Exchange not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     status,
		"metadata": metadata(),
	})
}

// HandleGetOpenMarkets handles GET /api/market-hours/open-markets
// Returns list of currently open markets
func (h *Handler) HandleGetOpenMarkets(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	openMarkets := h.service.GetOpenMarkets(now)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"timestamp":    now.Format(time.RFC3339),
			"open_markets": openMarkets,
			"count":        len(openMarkets),
		},
		"metadata": metadata(),
	})
}

// HandleGetNextOpen handles GET /api/market-hours/next-open/{exchange}
func (h *Handler) HandleGetNextOpen(w http.ResponseWriter, r *http.Request, exchange string) {
	code := market_hours.GetExchangeCode(exchange)
	if code == "" {
		http.Error(w, "Exchange not found", http.StatusNotFound)
		return
	}

	now := h.now()
	session := h.service.Session(code, now)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"exchange":             code,
			"closed":               session.Closed,
			"next_open":            h.service.NextOpen(code, now).Format(time.RFC3339),
			"next_open_in_seconds": int64(session.NextOpenIn / time.Second),
			"previous_close":       h.service.PreviousClose(code, now).Format(time.RFC3339),
		},
		"metadata": metadata(),
	})
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
