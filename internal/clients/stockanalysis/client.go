// Package stockanalysis fetches Pakistan Stock Exchange price history from stockanalysis.com.
package stockanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://stockanalysis.com"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
)

// ErrNoData is returned when the API answers without a history payload
var ErrNoData = errors.New("stockanalysis returned no data")

// Client for the stockanalysis.com symbol history API
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new stockanalysis.com client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "stockanalysis").Logger(),
	}
}

// historyRow is one daily bar as returned by the API
type historyRow struct {
	T  string   `json:"t"`
	O  *float64 `json:"o"`
	H  *float64 `json:"h"`
	L  *float64 `json:"l"`
	C  *float64 `json:"c"`
	A  *float64 `json:"a"`
	V  *float64 `json:"v"`
	CH *float64 `json:"ch"`
}

// envelope is the {"status": ..., "data": [...]} response form
type envelope struct {
	Status interface{}     `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// GetHistory returns the daily price history of a PSX ticker, oldest first
func (c *Client) GetHistory(ctx context.Context, ticker string) ([]domain.Observation, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	endpoint := fmt.Sprintf("%s/api/symbol/a/PSX-%s/history", c.baseURL, ticker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Referer", "https://stockanalysis.com/")

	c.log.Debug().Str("ticker", ticker).Msg("Fetching PSX history")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stockanalysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stockanalysis returned status %d for %s", resp.StatusCode, ticker)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	rows, err := decodeRows(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ticker, err)
	}

	observations := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
		o, ok := row.observation()
		if !ok {
			c.log.Debug().Str("ticker", ticker).Str("t", row.T).Msg("Skipping row with invalid date")
			continue
		}
		observations = append(observations, o)
	}

	domain.SortObservations(observations)
	return observations, nil
}

// Fetch returns the FetchFunc for a ticker
func (c *Client) Fetch(ticker string) domain.FetchFunc {
	return func(ctx context.Context) ([]domain.Observation, error) {
		return c.GetHistory(ctx, ticker)
	}
}

// decodeRows accepts both a bare array and the status/data envelope
func decodeRows(raw json.RawMessage) ([]historyRow, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []historyRow
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse history rows: %w", err)
		}
		return rows, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		if env.Status != nil {
			return nil, fmt.Errorf("%w (status %v)", ErrNoData, env.Status)
		}
		return nil, ErrNoData
	}

	var rows []historyRow
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse history rows: %w", err)
	}
	return rows, nil
}

func (r historyRow) observation() (domain.Observation, bool) {
	if len(r.T) < len(domain.DateLayout) {
		return domain.Observation{}, false
	}
	date := r.T[:len(domain.DateLayout)]
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.Observation{}, false
	}

	values := make(map[string]float64, 7)
	fields := []struct {
		name  string
		value *float64
	}{
		{"open", r.O},
		{"high", r.H},
		{"low", r.L},
		{"close", r.C},
		{"adjusted_close", r.A},
		{"volume", r.V},
		{"change_pct", r.CH},
	}
	for _, f := range fields {
		if f.value != nil {
			values[f.name] = *f.value
		}
	}

	return domain.Observation{Date: date, Values: values}, true
}
