package testing

import (
	"time"

	"github.com/aristath/marketdata/internal/domain"
)

// NewBarFixtures returns n consecutive daily OHLCV bars ending at end (oldest first)
func NewBarFixtures(end time.Time, n int, closeValue float64) []domain.Observation {
	bars := make([]domain.Observation, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		c := closeValue - float64(i)
		bars = append(bars, domain.Observation{
			Date: day.Format(domain.DateLayout),
			Values: map[string]float64{
				"open":   c - 0.5,
				"high":   c + 1,
				"low":    c - 1,
				"close":  c,
				"volume": 1_000_000 + float64(i)*1000,
			},
		})
	}
	return bars
}
