package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BTC", "BTCUSDT"},
		{"btc", "BTCUSDT"},
		{"BTC-USD", "BTCUSDT"},
		{"btc/usdt", "BTCUSDT"},
		{"ETH_USDT", "ETHUSDT"},
		{" SOLUSDT ", "SOLUSDT"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSymbol(tt.input))
		})
	}
}

func TestGetDailyKlines_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		// Deliberately newest first
		_, _ = w.Write([]byte(`[
			[1705363200000,"42500.10","43500.00","42000.00","43000.50","1234.5",1705449599999,"0",100,"0","0","0"],
			[1705276800000,"41800.00","42800.00","41500.00","42500.10","987.25",1705363199999,"0",90,"0","0","0"]
		]`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.baseURL = server.URL

	bars, err := client.GetDailyKlines(context.Background(), "btc", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "2024-01-15", bars[0].Date)
	assert.Equal(t, "2024-01-16", bars[1].Date)
	assert.Equal(t, map[string]float64{
		"open":   42500.10,
		"high":   43500.00,
		"low":    42000.00,
		"close":  43000.50,
		"volume": 1234.5,
	}, bars[1].Values)
}

func TestGetDailyKlines_ClampsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.baseURL = server.URL

	bars, err := client.Fetch("ETH")(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bars)

	_, err = client.GetDailyKlines(context.Background(), "ETH", 5000)
	require.NoError(t, err)
}

func TestGetDailyKlines_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.baseURL = server.URL

	_, err := client.GetDailyKlines(context.Background(), "NOPE", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid symbol.")
	assert.Contains(t, err.Error(), "NOPEUSDT")
}

func TestGetDailyKlines_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"short kline", `[[1705363200000,"1","2"]]`},
		{"bad number", `[[1705363200000,"x","2","3","4","5"]]`},
		{"numeric price", `[[1705363200000,1,2,3,4,5]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(zerolog.Nop())
			client.baseURL = server.URL

			_, err := client.GetDailyKlines(context.Background(), "BTC", 1)
			assert.Error(t, err)
		})
	}
}

func TestGetDailyKlines_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.baseURL = server.URL

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetDailyKlines(ctx, "BTC", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
