// Package market_hours provides market session calendars: open/closed state and
// time until the next open, evaluated in each market's own timezone.
package market_hours

import (
	"fmt"
	"time"

	_ "time/tzdata" // Embedded zoneinfo so session math is correct on hosts without tzdata
)

// MarketHoursService provides market hours checking functionality.
// It is pure computation over calendar rules and never fails for known or unknown markets.
type MarketHoursService struct{}

// NewMarketHoursService creates a new market hours service
func NewMarketHoursService() *MarketHoursService {
	return &MarketHoursService{}
}

// IsClosed reports whether a market is closed at t.
// Unknown and always-open markets are never closed.
func (s *MarketHoursService) IsClosed(exchangeName string, t time.Time) bool {
	config := getExchangeConfig(exchangeName)
	if config == nil || config.AlwaysOpen {
		return false
	}
	return !isOpenAt(config, t.In(config.Timezone))
}

// IsMarketOpen checks if a market is currently open for trading
func (s *MarketHoursService) IsMarketOpen(exchangeName string, t time.Time) bool {
	return !s.IsClosed(exchangeName, t)
}

// TimeUntilNextOpen returns how long until the market next opens.
// Returns 0 if the market is open at t.
func (s *MarketHoursService) TimeUntilNextOpen(exchangeName string, t time.Time) time.Duration {
	next := s.NextOpen(exchangeName, t)
	if !next.After(t) {
		return 0
	}
	return next.Sub(t)
}

// NextOpen returns the next session open at or after t (t itself when open)
func (s *MarketHoursService) NextOpen(exchangeName string, t time.Time) time.Time {
	config := getExchangeConfig(exchangeName)
	if config == nil || config.AlwaysOpen {
		return t
	}

	marketTime := t.In(config.Timezone)
	if isOpenAt(config, marketTime) {
		return t
	}

	// Walk forward day by day in market-local time: today's open (if still ahead),
	// then the next weekday. A week always contains a weekday.
	for i := 0; i <= 7; i++ {
		candidate := time.Date(marketTime.Year(), marketTime.Month(), marketTime.Day()+i,
			config.TradingHours.OpenHour, config.TradingHours.OpenMinute, 0, 0, config.Timezone)
		if isWeekend(candidate) {
			continue
		}
		if candidate.After(marketTime) {
			return candidate
		}
	}

	return t
}

// PreviousClose returns the most recent session close at or before t.
// For always-open and unknown markets it returns t.
func (s *MarketHoursService) PreviousClose(exchangeName string, t time.Time) time.Time {
	config := getExchangeConfig(exchangeName)
	if config == nil || config.AlwaysOpen {
		return t
	}

	marketTime := t.In(config.Timezone)
	for i := 0; i <= 7; i++ {
		candidate := time.Date(marketTime.Year(), marketTime.Month(), marketTime.Day()-i,
			config.TradingHours.CloseHour, config.TradingHours.CloseMinute, 0, 0, config.Timezone)
		if isWeekend(candidate) {
			continue
		}
		if !candidate.After(marketTime) {
			return candidate
		}
	}

	return t
}

// Session returns the derived session state of a market at t
func (s *MarketHoursService) Session(exchangeName string, t time.Time) MarketSession {
	closed := s.IsClosed(exchangeName, t)
	session := MarketSession{Closed: closed}
	if closed {
		session.NextOpenIn = s.TimeUntilNextOpen(exchangeName, t)
	}
	return session
}

// GetOpenMarkets returns a list of currently open exchanges
func (s *MarketHoursService) GetOpenMarkets(t time.Time) []string {
	openMarkets := make([]string, 0)
	for _, code := range ExchangeCodes() {
		if s.IsMarketOpen(code, t) {
			openMarkets = append(openMarkets, code)
		}
	}
	return openMarkets
}

// GetMarketStatus returns detailed status for a market
func (s *MarketHoursService) GetMarketStatus(exchangeName string, t time.Time) (*MarketStatus, error) {
	config := getExchangeConfig(exchangeName)
	if config == nil {
		return nil, fmt.Errorf("exchange not found: %s", exchangeName)
	}

	marketTime := t.In(config.Timezone)
	isOpen := s.IsMarketOpen(config.Code, t)

	status := &MarketStatus{
		Open:       isOpen,
		Exchange:   config.Code,
		Name:       config.Name,
		Timezone:   config.Timezone.String(),
		AlwaysOpen: config.AlwaysOpen,
	}

	if config.AlwaysOpen {
		return status, nil
	}

	if isOpen {
		closeTime := time.Date(marketTime.Year(), marketTime.Month(), marketTime.Day(),
			config.TradingHours.CloseHour, config.TradingHours.CloseMinute, 0, 0, config.Timezone)
		status.ClosesAt = closeTime.Format("15:04")
	} else {
		nextOpen := s.NextOpen(config.Code, t).In(config.Timezone)
		status.OpensAt = nextOpen.Format("15:04")
		if nextOpen.YearDay() != marketTime.YearDay() || nextOpen.Year() != marketTime.Year() {
			status.OpensDate = nextOpen.Format("2006-01-02")
		}
		status.NextOpenIn = nextOpen.Sub(marketTime).Round(time.Minute).String()
	}

	return status, nil
}

// isOpenAt checks weekday and [open, close) in market-local time
func isOpenAt(config *ExchangeConfig, marketTime time.Time) bool {
	if isWeekend(marketTime) {
		return false
	}

	openTime := time.Date(marketTime.Year(), marketTime.Month(), marketTime.Day(),
		config.TradingHours.OpenHour, config.TradingHours.OpenMinute, 0, 0, config.Timezone)
	closeTime := time.Date(marketTime.Year(), marketTime.Month(), marketTime.Day(),
		config.TradingHours.CloseHour, config.TradingHours.CloseMinute, 0, 0, config.Timezone)

	return !marketTime.Before(openTime) && marketTime.Before(closeTime)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
