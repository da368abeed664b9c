package market_hours

import "time"

// TradingHours represents regular trading hours for an exchange, in exchange-local time
type TradingHours struct {
	OpenHour    int // Hour (0-23)
	OpenMinute  int // Minute (0-59)
	CloseHour   int // Hour (0-23)
	CloseMinute int // Minute (0-59)
}

// ExchangeConfig represents configuration for a single market
type ExchangeConfig struct {
	Code         string
	Name         string
	TradingHours TradingHours
	Timezone     *time.Location
	AlwaysOpen   bool // 24/7 venues (crypto) never close
}

// MarketSession is the derived open/closed state of a market at an instant
type MarketSession struct {
	Closed     bool
	NextOpenIn time.Duration
}

// MarketStatus represents the current status of a market
type MarketStatus struct {
	Open       bool   `json:"open"`
	Exchange   string `json:"exchange"`
	Name       string `json:"name"`
	Timezone   string `json:"timezone"`
	AlwaysOpen bool   `json:"always_open"`
	ClosesAt   string `json:"closes_at,omitempty"`  // Time when market closes (if open)
	OpensAt    string `json:"opens_at,omitempty"`   // Time when market opens (if closed)
	OpensDate  string `json:"opens_date,omitempty"` // Date when market opens (if closed and opens on a later day)
	NextOpenIn string `json:"next_open_in,omitempty"`
}
