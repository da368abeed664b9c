package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected AssetCategory
		ok       bool
	}{
		{name: "exact", input: "crypto", expected: CategoryCrypto, ok: true},
		{name: "upper case", input: "PK-EQUITY", expected: CategoryPKEquity, ok: true},
		{name: "underscore", input: "us_index", expected: CategoryUSIndex, ok: true},
		{name: "whitespace", input: "  macro ", expected: CategoryMacro, ok: true},
		{name: "unknown", input: "bonds", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCategory(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAssetCategoryIsValid(t *testing.T) {
	for _, c := range AllCategories {
		assert.True(t, c.IsValid(), string(c))
	}
	assert.False(t, AssetCategory("CRYPTO").IsValid())
	assert.False(t, AssetCategory("bonds").IsValid())
}

func TestLatestObservation(t *testing.T) {
	_, ok := LatestObservation(nil)
	assert.False(t, ok)

	obs := []Observation{
		{Date: "2024-01-02", Values: map[string]float64{"close": 2}},
		{Date: "2024-01-05", Values: map[string]float64{"close": 5}},
		{Date: "2024-01-03", Values: map[string]float64{"close": 3}},
	}
	latest, ok := LatestObservation(obs)
	assert.True(t, ok)
	assert.Equal(t, "2024-01-05", latest.Date)

	closeValue, ok := latest.Close()
	assert.True(t, ok)
	assert.Equal(t, 5.0, closeValue)
}

func TestSortObservations(t *testing.T) {
	obs := []Observation{
		{Date: "2024-01-05"},
		{Date: "2023-12-31"},
		{Date: "2024-01-02"},
	}
	SortObservations(obs)
	assert.Equal(t, []string{"2023-12-31", "2024-01-02", "2024-01-05"},
		[]string{obs[0].Date, obs[1].Date, obs[2].Date})
}

func TestObservationTime(t *testing.T) {
	o := Observation{Date: "2024-03-15"}
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), o.Time())

	bad := Observation{Date: "15/03/2024"}
	assert.True(t, bad.Time().IsZero())
}

func TestPersistedRecordAge(t *testing.T) {
	now := time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)
	r := &PersistedRecord{UpdatedAt: now.Add(-90 * time.Minute)}
	assert.Equal(t, 90*time.Minute, r.Age(now))
}
