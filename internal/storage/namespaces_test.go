package storage

import (
	"testing"

	"github.com/aristath/marketdata/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultNamespaces_CoverEveryCategory(t *testing.T) {
	namespaces := DefaultNamespaces()
	for _, category := range domain.AllCategories {
		resolved, err := namespaces.Resolve(category)
		require.NoError(t, err, category)
		assert.NotEmpty(t, resolved, category)
	}

	equity, err := namespaces.Resolve(domain.CategoryEquity)
	require.NoError(t, err)
	assert.Equal(t, []string{"pk_equity", "us_equity"}, equity)
}

func TestNamespaces_ResolveUnknown(t *testing.T) {
	_, err := DefaultNamespaces().Resolve(domain.AssetCategory("bonds"))
	assert.ErrorIs(t, err, ErrUnknownNamespace)
	assert.Contains(t, err.Error(), "bonds")
}

func TestParseNamespaces(t *testing.T) {
	tests := []struct {
		name      string
		overrides string
		check     map[domain.AssetCategory][]string
		wantErr   string
	}{
		{
			name:      "empty keeps defaults",
			overrides: "  ",
			check:     map[domain.AssetCategory][]string{domain.CategoryMetals: {"metals"}},
		},
		{
			name:      "overrides merge with defaults",
			overrides: "metals=commodities; equity = us_equity , pk_equity ;",
			check: map[domain.AssetCategory][]string{
				domain.CategoryMetals: {"commodities"},
				domain.CategoryEquity: {"us_equity", "pk_equity"},
				domain.CategoryCrypto: {"crypto"},
			},
		},
		{
			name:      "underscore category names",
			overrides: "pk_index=psx_index",
			check:     map[domain.AssetCategory][]string{domain.CategoryPKIndex: {"psx_index"}},
		},
		{name: "missing equals", overrides: "metals", wantErr: "expected category=ns"},
		{name: "unknown category", overrides: "bonds=b", wantErr: "unknown category"},
		{name: "no namespaces", overrides: "metals= , ", wantErr: "no namespaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			namespaces, err := ParseNamespaces(tt.overrides)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for category, want := range tt.check {
				assert.Equal(t, want, namespaces[category], category)
			}
		})
	}
}

func TestCodec_Roundtrip(t *testing.T) {
	payload, err := encodeValues(map[string]float64{"close": 1.25, "volume": 3})
	require.NoError(t, err)

	values, err := decodeValues(payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"close": 1.25, "volume": 3}, values)

	empty, err := encodeValues(nil)
	require.NoError(t, err)
	values, err = decodeValues(empty)
	require.NoError(t, err)
	assert.NotNil(t, values)
	assert.Empty(t, values)
}
