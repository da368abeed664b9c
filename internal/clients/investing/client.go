// Package investing fetches US index history from the investing.com financial data API.
package investing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.investing.com"

// SPX500InstrumentID is the investing.com id of the S&P 500 index
const SPX500InstrumentID = "166"

// DefaultLookback is how far back a full refresh reaches
const DefaultLookback = 10 * 365 * 24 * time.Hour

// ErrBlocked is returned when the API answers with an HTML page (bot protection)
var ErrBlocked = errors.New("investing.com returned HTML instead of JSON")

// ErrUnknownSymbol is returned by Fetch for symbols with no instrument id
var ErrUnknownSymbol = errors.New("no investing.com instrument for symbol")

// Instruments maps index symbols to investing.com instrument ids
var Instruments = map[string]string{
	"SPX":    SPX500InstrumentID,
	"SPX500": SPX500InstrumentID,
	"^GSPC":  SPX500InstrumentID,
	"GSPC":   SPX500InstrumentID,
}

var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Accept":          "*/*",
	"Accept-Language": "en-GB,en-US;q=0.9,en;q=0.8",
	"Origin":          "https://www.investing.com",
	"Referer":         "https://www.investing.com/",
	"domain-id":       "www",
}

// Client for the investing.com historical data endpoint
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
	log     zerolog.Logger
}

// NewClient creates a new investing.com client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
		log:     log.With().Str("client", "investing").Logger(),
	}
}

// GetHistory returns daily bars of an instrument between start and end
// (YYYY-MM-DD, inclusive), oldest first
func (c *Client) GetHistory(ctx context.Context, instrumentID, start, end string) ([]domain.Observation, error) {
	params := url.Values{}
	params.Set("start-date", start)
	params.Set("end-date", end)
	params.Set("time-frame", "Daily")
	params.Set("add-missing-rows", "false")
	endpoint := fmt.Sprintf("%s/api/financialdata/historical/%s?%s", c.baseURL, instrumentID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	c.log.Debug().
		Str("instrument", instrumentID).
		Str("start", start).
		Str("end", end).
		Msg("Fetching index history")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("investing.com request failed: %w", err)
	}
	defer resp.Body.Close()

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/html" {
		return nil, fmt.Errorf("%w (status %d)", ErrBlocked, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("investing.com returned status %d for instrument %s", resp.StatusCode, instrumentID)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}

	observations := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
		o, ok := row.observation()
		if !ok {
			continue
		}
		observations = append(observations, o)
	}

	domain.SortObservations(observations)
	return observations, nil
}

// Fetch returns the FetchFunc for an index symbol covering DefaultLookback up to today
func (c *Client) Fetch(symbol string) domain.FetchFunc {
	return func(ctx context.Context) ([]domain.Observation, error) {
		instrumentID, ok := Instruments[strings.ToUpper(strings.TrimSpace(symbol))]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		now := c.now().UTC()
		start := now.Add(-DefaultLookback).Format(domain.DateLayout)
		return c.GetHistory(ctx, instrumentID, start, now.Format(domain.DateLayout))
	}
}

// flexString holds a JSON string or number as text
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

type historyRow struct {
	RowDate          flexString `json:"rowDate"`
	RowDateTimestamp flexString `json:"rowDateTimestamp"`
	Close            flexString `json:"last_close"`
	Open             flexString `json:"last_open"`
	High             flexString `json:"last_max"`
	Low              flexString `json:"last_min"`
	Volume           flexString `json:"volume"`
	CloseRaw         flexString `json:"last_closeRaw"`
	OpenRaw          flexString `json:"last_openRaw"`
	HighRaw          flexString `json:"last_maxRaw"`
	LowRaw           flexString `json:"last_minRaw"`
}

func decodeRows(raw json.RawMessage) ([]historyRow, error) {
	trimmed := bytes.TrimSpace(raw)
	var rows []historyRow
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse history rows: %w", err)
		}
		return rows, nil
	}

	var env struct {
		Data []historyRow `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("unexpected response format: %w", err)
	}
	return env.Data, nil
}

func (r historyRow) observation() (domain.Observation, bool) {
	date, ok := parseDate(string(r.RowDateTimestamp), string(r.RowDate))
	if !ok {
		return domain.Observation{}, false
	}

	values := make(map[string]float64, 5)
	set := func(name string, v float64, ok bool) {
		if ok {
			values[name] = v
		}
	}
	v, ok := parsePrice(r.Open, r.OpenRaw)
	set("open", v, ok)
	v, ok = parsePrice(r.High, r.HighRaw)
	set("high", v, ok)
	v, ok = parsePrice(r.Low, r.LowRaw)
	set("low", v, ok)
	v, ok = parsePrice(r.Close, r.CloseRaw)
	set("close", v, ok)
	v, ok = ParseVolume(string(r.Volume))
	set("volume", v, ok)

	return domain.Observation{Date: date, Values: values}, true
}

// parseDate prefers the ISO timestamp ("2014-11-24T00:00:00.000Z") and falls
// back to the display date ("Nov 24, 2014")
func parseDate(timestamp, display string) (string, bool) {
	if timestamp != "" {
		if t, err := time.Parse(time.RFC3339, timestamp); err == nil {
			return t.UTC().Format(domain.DateLayout), true
		}
	}
	if display != "" {
		if t, err := time.Parse("Jan 2, 2006", display); err == nil {
			return t.Format(domain.DateLayout), true
		}
	}
	return "", false
}

func parsePrice(formatted, raw flexString) (float64, bool) {
	if raw != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64); err == nil {
			return v, true
		}
	}
	return ParseNumber(string(formatted))
}

// ParseNumber parses a formatted number such as "4,783.45"
func ParseNumber(s string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseVolume parses volumes with K/M/B suffixes such as "2.5B"
func ParseVolume(s string) (float64, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if cleaned == "" {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "B"):
		multiplier = 1e9
	case strings.HasSuffix(cleaned, "M"):
		multiplier = 1e6
	case strings.HasSuffix(cleaned, "K"):
		multiplier = 1e3
	}
	if multiplier != 1 {
		cleaned = cleaned[:len(cleaned)-1]
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}
