package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConverter_ToCAD(t *testing.T) {
	conv := NewConverter(DefaultRates())

	t.Run("converts USD using the table rate", func(t *testing.T) {
		got := conv.ToCAD(decimal.NewFromInt(100), "USD", "2024-07-15")
		assert.True(t, got.Equal(decimal.RequireFromString("137.9333333")),
			"got %s", got)
	})

	t.Run("CAD is the identity", func(t *testing.T) {
		for _, s := range []string{"0", "85.50", "-12.34", "0.005"} {
			x := decimal.RequireFromString(s)
			assert.True(t, conv.ToCAD(x, "CAD", "2024-01-01").Equal(x))
		}
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		upper := conv.ToCAD(decimal.NewFromInt(10), "EUR", "")
		lower := conv.ToCAD(decimal.NewFromInt(10), "eur", "")
		assert.True(t, upper.Equal(lower))
		assert.True(t, upper.Equal(decimal.RequireFromString("14.8")))
	})

	t.Run("unknown currency passes through unchanged", func(t *testing.T) {
		x := decimal.RequireFromString("42.42")
		assert.True(t, conv.ToCAD(x, "XYZ", "2024-01-01").Equal(x))
	})

	t.Run("date does not affect the result", func(t *testing.T) {
		a := conv.ToCAD(decimal.NewFromInt(50), "GBP", "2020-01-01")
		b := conv.ToCAD(decimal.NewFromInt(50), "GBP", "2024-12-31")
		assert.True(t, a.Equal(b))
	})
}

func TestConverter_CustomRateSource(t *testing.T) {
	conv := NewConverter(StaticRates{"USD": decimal.RequireFromString("1.38")})
	got := conv.ToCAD(decimal.NewFromInt(100), "USD", "")
	assert.True(t, got.Equal(decimal.NewFromInt(138)))
}
