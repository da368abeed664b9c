package cachepolicy

import "time"

// TTL constants for different asset categories.
// Session-aware categories use these only while their market is open.
const (
	// Pinned data (a specific past date never changes)
	TTLHistorical = 24 * time.Hour

	// Intraday quotes
	TTLEquity = 5 * time.Minute  // PSX / US equities while trading
	TTLIndex  = 5 * time.Minute  // KSE-100, S&P 500 while trading
	TTLMetals = 10 * time.Minute // Gold/silver follow the New York session
	TTLCrypto = time.Minute      // 24/7 markets, fixed window regardless of time of day

	// Slow-moving series
	TTLMacro      = 12 * time.Hour // Central-bank statistics
	TTLFinancials = 24 * time.Hour // Filings change quarterly
	TTLDividends  = 24 * time.Hour // Dividend announcements

	// Fallback for anything without an explicit rule
	TTLDefault = 15 * time.Minute
)

// Fetch timeout defaults per category family.
const (
	FetchTimeoutQuotes = 10 * time.Second
	FetchTimeoutIndex  = 20 * time.Second // investing.com is noticeably slower
	FetchTimeoutSlow   = 30 * time.Second // macro, financials, dividends
)
