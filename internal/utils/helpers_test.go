package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"60,50":      "60.5",
		"€ 1.234,56": "1234.56",
		"1,234.56":   "1234.56",
		"85,-":       "85",
		"1.234,-":    "1234",
		"12.50":      "12.5",
		"1.234":      "1234",
		"-7,25":      "-7.25",
		"(3.10)":     "-3.1",
		"100":        "100",
		"1.234.567":  "1234567",
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "%s -> %s", in, got)
	}

	_, err := ParseAmount("  € ")
	assert.ErrorIs(t, err, ErrEmptyAmount)
	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestNormalizeWeightIsIdempotent(t *testing.T) {
	for _, in := range []string{"45", "45.0", "45.00", "3,5", "0.125"} {
		once, err := NormalizeWeight(in)
		require.NoError(t, err)
		twice, err := NormalizeWeight(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
	w, _ := NormalizeWeight("45")
	assert.Equal(t, "45.00", w)
	assert.Equal(t, "20.50", FormatWeight(decimal.RequireFromString("20.5")))
}

func TestParseDutchDate(t *testing.T) {
	got, err := ParseDutchDate("3 maart 2025")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDutchDate("15 Oktober 2024")
	require.NoError(t, err)
	assert.Equal(t, time.October, got.Month())

	_, err = ParseDutchDate("maart 2025")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("01-02-2025", "2006-01-02", "02-01-2006")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("2025/02/01", "2006-01-02")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab…", Truncate("abcdef", 3))
}
