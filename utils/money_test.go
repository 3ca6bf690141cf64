package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1050), ToMinorUnits(decimal.RequireFromString("10.50")))
	assert.Equal(t, int64(1), ToMinorUnits(decimal.RequireFromString("0.005")))
	assert.Equal(t, int64(1000000), ToMinorUnits(decimal.NewFromInt(10000)))
	// 0.1 + 0.2 style drift must not leak into the integer amount.
	sum := decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2))
	assert.Equal(t, int64(30), ToMinorUnits(sum))
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, FromMinorUnits(500000).Equal(decimal.NewFromInt(5000)))
	assert.True(t, FromMinorUnits(1999).Equal(decimal.RequireFromString("19.99")))
}

func TestIsMoneyPrecise(t *testing.T) {
	assert.True(t, IsMoneyPrecise(decimal.RequireFromString("10.5")))
	assert.True(t, IsMoneyPrecise(decimal.RequireFromString("10.500")))
	assert.False(t, IsMoneyPrecise(decimal.RequireFromString("10.001")))
}

func TestMaxZero(t *testing.T) {
	assert.True(t, MaxZero(decimal.NewFromInt(-5)).IsZero())
	assert.True(t, MaxZero(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)))
}
