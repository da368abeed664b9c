// Package cachepolicy computes cache lifetimes and fetch timeouts per asset
// category, consulting the market calendar for session-aware categories.
package cachepolicy

import (
	"time"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/aristath/marketdata/internal/modules/market_hours"
)

// Calendar is the subset of the market calendar the policy consults
type Calendar interface {
	IsClosed(market string, t time.Time) bool
	TimeUntilNextOpen(market string, t time.Time) time.Duration
	PreviousClose(market string, t time.Time) time.Time
}

// categoryRule describes how one category is cached
type categoryRule struct {
	market       string        // market whose session drives TTL; "" if none
	sessionAware bool          // TTL follows the market's open/closed state
	ttl          time.Duration // TTL while open, or the fixed TTL
	fetchTimeout time.Duration
}

var categoryRules = map[domain.AssetCategory]categoryRule{
	domain.CategoryPKEquity:   {market: market_hours.ExchangeKarachi, sessionAware: true, ttl: TTLEquity, fetchTimeout: FetchTimeoutQuotes},
	domain.CategoryPKIndex:    {market: market_hours.ExchangeKarachi, sessionAware: true, ttl: TTLIndex, fetchTimeout: FetchTimeoutQuotes},
	domain.CategoryUSEquity:   {market: market_hours.ExchangeNewYork, sessionAware: true, ttl: TTLEquity, fetchTimeout: FetchTimeoutQuotes},
	domain.CategoryUSIndex:    {market: market_hours.ExchangeNewYork, sessionAware: true, ttl: TTLIndex, fetchTimeout: FetchTimeoutIndex},
	domain.CategoryMetals:     {market: market_hours.ExchangeNewYork, sessionAware: true, ttl: TTLMetals, fetchTimeout: FetchTimeoutQuotes},
	domain.CategoryCrypto:     {market: market_hours.ExchangeCrypto, ttl: TTLCrypto, fetchTimeout: FetchTimeoutQuotes},
	domain.CategoryMacro:      {ttl: TTLMacro, fetchTimeout: FetchTimeoutSlow},
	domain.CategoryFinancials: {ttl: TTLFinancials, fetchTimeout: FetchTimeoutSlow},
	domain.CategoryDividends:  {ttl: TTLDividends, fetchTimeout: FetchTimeoutSlow},
}

// Policy decides how long values live and how long fetches may take.
// All methods are total: unknown categories fall back to defaults.
type Policy struct {
	calendar      Calendar
	now           func() time.Time
	fetchTimeouts map[domain.AssetCategory]time.Duration
}

// Option configures a Policy
type Option func(*Policy)

// WithClock overrides the wall clock (tests)
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		p.now = now
	}
}

// WithFetchTimeout overrides the fetch timeout of one category.
// Non-positive durations are ignored.
func WithFetchTimeout(category domain.AssetCategory, d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.fetchTimeouts[category] = d
		}
	}
}

// WithFetchTimeouts overrides the quote and slow-category timeout families
func WithFetchTimeouts(quotes, slow time.Duration) Option {
	return func(p *Policy) {
		for category, rule := range categoryRules {
			switch rule.fetchTimeout {
			case FetchTimeoutQuotes:
				if quotes > 0 {
					p.fetchTimeouts[category] = quotes
				}
			case FetchTimeoutSlow:
				if slow > 0 {
					p.fetchTimeouts[category] = slow
				}
			}
		}
	}
}

// NewPolicy creates a policy backed by the given calendar
func NewPolicy(calendar Calendar, opts ...Option) *Policy {
	p := &Policy{
		calendar:      calendar,
		now:           time.Now,
		fetchTimeouts: make(map[domain.AssetCategory]time.Duration),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the policy's current time
func (p *Policy) Now() time.Time {
	return p.now()
}

// MarketFor returns the market whose session governs a category
func MarketFor(category domain.AssetCategory) (string, bool) {
	rule, ok := categoryRules[category]
	if !ok || rule.market == "" {
		return "", false
	}
	return rule.market, true
}

// IsSessionAware reports whether a category's TTL follows market hours
func IsSessionAware(category domain.AssetCategory) bool {
	return categoryRules[category].sessionAware
}

// ShouldCache returns false iff the caller asked for a refresh
func (p *Policy) ShouldCache(category domain.AssetCategory, ctx domain.CacheContext) bool {
	return !ctx.Refresh
}

// GetTTL returns how long a value computed now stays valid.
// Zero means "do not store".
func (p *Policy) GetTTL(category domain.AssetCategory, ctx domain.CacheContext) time.Duration {
	return p.ttlAt(category, ctx, p.now())
}

// ExpiresAt returns the absolute expiry of a value computed at now
func (p *Policy) ExpiresAt(category domain.AssetCategory, ctx domain.CacheContext, now time.Time) time.Time {
	return now.Add(p.ttlAt(category, ctx, now))
}

// MarketClosed reports whether the category's market is closed, honouring
// an explicit override in ctx. Categories without a session are never closed.
func (p *Policy) MarketClosed(category domain.AssetCategory, ctx domain.CacheContext) bool {
	return p.closedAt(category, ctx, p.now())
}

// ClosedSince returns the close of the last session when the category's
// market is currently closed.
func (p *Policy) ClosedSince(category domain.AssetCategory, ctx domain.CacheContext) (time.Time, bool) {
	now := p.now()
	if !p.closedAt(category, ctx, now) {
		return time.Time{}, false
	}
	return p.calendar.PreviousClose(categoryRules[category].market, now), true
}

// FetchTimeout returns how long one external fetch for the category may take
func (p *Policy) FetchTimeout(category domain.AssetCategory) time.Duration {
	if d, ok := p.fetchTimeouts[category]; ok {
		return d
	}
	if rule, ok := categoryRules[category]; ok {
		return rule.fetchTimeout
	}
	return FetchTimeoutQuotes
}

func (p *Policy) ttlAt(category domain.AssetCategory, ctx domain.CacheContext, now time.Time) time.Duration {
	if ctx.Refresh {
		return 0
	}
	if ctx.IsHistorical || ctx.Date != "" {
		return TTLHistorical
	}

	rule, ok := categoryRules[category]
	if !ok {
		return TTLDefault
	}

	if rule.sessionAware && p.closedAt(category, ctx, now) {
		// Caller may claim closed while the calendar says open; keep the open TTL then
		if wait := p.calendar.TimeUntilNextOpen(rule.market, now); wait > 0 {
			return wait
		}
	}

	return rule.ttl
}

func (p *Policy) closedAt(category domain.AssetCategory, ctx domain.CacheContext, now time.Time) bool {
	rule := categoryRules[category]
	if !rule.sessionAware {
		return false
	}
	if ctx.MarketClosed != nil {
		return *ctx.MarketClosed
	}
	return p.calendar.IsClosed(rule.market, now)
}
