// Package binance fetches daily crypto candles from the Binance public REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.binance.com"
	quoteAsset     = "USDT"
)

// MaxLimit is the largest number of candles Binance returns per request
const MaxLimit = 1000

// Client for the Binance klines endpoint
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Binance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "binance").Logger(),
	}
}

// NormalizeSymbol maps user spellings to a USDT pair: "btc", "BTC-USD" and
// "btc/usdt" all become "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	normalized = strings.NewReplacer("-", "", "_", "", "/", "").Replace(normalized)
	if strings.HasSuffix(normalized, quoteAsset) {
		return normalized
	}
	// BTCUSD is a USD quote; the USDT pair is used in its place
	normalized = strings.TrimSuffix(normalized, "USD")
	return normalized + quoteAsset
}

// apiError is the error body Binance returns on 4xx
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// GetDailyKlines returns up to limit daily candles for a symbol, oldest first
func (c *Client) GetDailyKlines(ctx context.Context, symbol string, limit int) ([]domain.Observation, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	pair := NormalizeSymbol(symbol)

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", "1d")
	params.Set("limit", strconv.Itoa(limit))
	endpoint := c.baseURL + "/api/v3/klines?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.log.Debug().Str("symbol", pair).Int("limit", limit).Msg("Fetching klines")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("binance returned status %d for %s: %s (code %d)", resp.StatusCode, pair, apiErr.Msg, apiErr.Code)
		}
		return nil, fmt.Errorf("binance returned status %d for %s", resp.StatusCode, pair)
	}

	// [openTime, open, high, low, close, volume, closeTime, ...]
	var klines [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, fmt.Errorf("failed to parse klines: %w", err)
	}

	observations := make([]domain.Observation, 0, len(klines))
	for i, kline := range klines {
		o, err := parseKline(kline)
		if err != nil {
			return nil, fmt.Errorf("kline %d for %s: %w", i, pair, err)
		}
		observations = append(observations, o)
	}

	domain.SortObservations(observations)
	return observations, nil
}

// Fetch returns the FetchFunc for a symbol, requesting the full candle window
func (c *Client) Fetch(symbol string) domain.FetchFunc {
	return func(ctx context.Context) ([]domain.Observation, error) {
		return c.GetDailyKlines(ctx, symbol, MaxLimit)
	}
}

func parseKline(fields []json.RawMessage) (domain.Observation, error) {
	if len(fields) < 6 {
		return domain.Observation{}, fmt.Errorf("expected at least 6 fields, got %d", len(fields))
	}

	var openTime int64
	if err := json.Unmarshal(fields[0], &openTime); err != nil {
		return domain.Observation{}, fmt.Errorf("invalid open time: %w", err)
	}

	names := []string{"open", "high", "low", "close", "volume"}
	values := make(map[string]float64, len(names))
	for i, name := range names {
		var raw string
		if err := json.Unmarshal(fields[i+1], &raw); err != nil {
			return domain.Observation{}, fmt.Errorf("invalid %s: %w", name, err)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		values[name] = v
	}

	return domain.Observation{
		Date:   time.UnixMilli(openTime).UTC().Format(domain.DateLayout),
		Values: values,
	}, nil
}
