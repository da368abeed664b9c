package sources

import (
	"context"
	"testing"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Categories())

	var asked string
	r.Register(domain.CategoryCrypto, func(symbol string) domain.FetchFunc {
		asked = symbol
		return func(ctx context.Context) ([]domain.Observation, error) {
			return []domain.Observation{{Date: "2024-01-16", Values: map[string]float64{"close": 1}}}, nil
		}
	})
	r.Register(domain.CategoryPKEquity, func(symbol string) domain.FetchFunc { return nil })

	assert.True(t, r.Has(domain.CategoryCrypto))
	assert.False(t, r.Has(domain.CategoryMacro))
	assert.Equal(t, []domain.AssetCategory{domain.CategoryCrypto, domain.CategoryPKEquity}, r.Categories())

	obs, err := r.Fetch(domain.CategoryCrypto, "BTCUSDT")(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs, 1)
	assert.Equal(t, "BTCUSDT", asked)
}

func TestRegistry_MissingSource(t *testing.T) {
	r := NewRegistry()

	_, err := r.Fetch(domain.CategoryMacro, "CPI")(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)
	assert.Contains(t, err.Error(), "macro")

	_, ok := r.Builder(domain.CategoryMacro)
	assert.False(t, ok)
}
