package market_hours

import (
	"sort"
	"strings"
	"time"
)

const (
	// ExchangeKarachi is the Pakistan Stock Exchange
	ExchangeKarachi = "XKAR"
	// ExchangeNewYork is the New York Stock Exchange session (also used for US indices and metals)
	ExchangeNewYork = "XNYS"
	// ExchangeCrypto is the always-open crypto venue
	ExchangeCrypto = "CRYPTO"
)

// Exchange name mapping from free-form names to exchange code
var exchangeNameToCode = map[string]string{
	"PSX":      ExchangeKarachi,
	"KSE":      ExchangeKarachi,
	"Karachi":  ExchangeKarachi,
	"Pakistan": ExchangeKarachi,
	"NYSE":     ExchangeNewYork,
	"NASDAQ":   ExchangeNewYork,
	"New York": ExchangeNewYork,
	"US":       ExchangeNewYork,
	"Binance":  ExchangeCrypto,
	"Crypto":   ExchangeCrypto,
}

// exchangeConfigs contains all market configurations
var exchangeConfigs = map[string]ExchangeConfig{
	ExchangeKarachi: {
		Code: ExchangeKarachi,
		Name: "Pakistan Stock Exchange",
		TradingHours: TradingHours{
			OpenHour:    9,
			OpenMinute:  15,
			CloseHour:   15,
			CloseMinute: 30,
		},
		Timezone: mustLoadLocation("Asia/Karachi"),
	},
	ExchangeNewYork: {
		Code: ExchangeNewYork,
		Name: "New York Stock Exchange",
		TradingHours: TradingHours{
			OpenHour:    9,
			OpenMinute:  30,
			CloseHour:   16,
			CloseMinute: 0,
		},
		Timezone: mustLoadLocation("America/New_York"),
	},
	ExchangeCrypto: {
		Code:       ExchangeCrypto,
		Name:       "Crypto (24/7)",
		Timezone:   time.UTC,
		AlwaysOpen: true,
	},
}

// GetExchangeCode returns the exchange code for an exchange name or code.
// Returns "" if the name is unknown.
func GetExchangeCode(exchangeName string) string {
	normalized := strings.TrimSpace(exchangeName)

	if _, exists := exchangeConfigs[normalized]; exists {
		return normalized
	}
	if _, exists := exchangeConfigs[strings.ToUpper(normalized)]; exists {
		return strings.ToUpper(normalized)
	}

	if code, ok := exchangeNameToCode[normalized]; ok {
		return code
	}
	for name, code := range exchangeNameToCode {
		if strings.EqualFold(normalized, name) {
			return code
		}
	}

	return ""
}

// getExchangeConfig returns the configuration for an exchange, or nil if unknown
func getExchangeConfig(exchangeName string) *ExchangeConfig {
	code := GetExchangeCode(exchangeName)
	if config, ok := exchangeConfigs[code]; ok {
		return &config
	}
	return nil
}

// ExchangeCodes returns all configured exchange codes, sorted
func ExchangeCodes() []string {
	codes := make([]string, 0, len(exchangeConfigs))
	for code := range exchangeConfigs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("market_hours: missing timezone " + name + ": " + err.Error())
	}
	return loc
}
