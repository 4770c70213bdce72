package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnitTruncates(t *testing.T) {
	cases := []struct {
		name     string
		display  float64
		decimals int
		want     uint64
	}{
		{"whole", 25, 6, 25_000_000},
		{"cycle total", 5220.9, 6, 5_220_900_000},
		{"sub-unit remainder dropped", 0.1234567, 6, 123_456},
		{"below one unit", 0.0000009, 6, 0},
		{"zero", 0, 6, 0},
		{"no decimals", 42.99, 0, 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToSmallestUnit(tc.display, tc.decimals)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToSmallestUnitRejectsNegative(t *testing.T) {
	_, err := ToSmallestUnit(-1, 6)
	require.Error(t, err)
}

func TestParseSmallestUnitTruncates(t *testing.T) {
	got, err := ParseSmallestUnit("1.9999999", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_999_999), got)

	_, err = ParseSmallestUnit("not-a-number", 6)
	require.Error(t, err)

	_, err = ParseSmallestUnit("-3", 6)
	require.Error(t, err)
}

func TestFromSmallestUnitRoundTrip(t *testing.T) {
	v, err := ParseSmallestUnit("5220.9", 6)
	require.NoError(t, err)
	assert.Equal(t, "5220.9", FromSmallestUnit(v, 6))
}
