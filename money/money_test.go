package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToAmount(t *testing.T) {
	d := decimal.RequireFromString("12.5")
	s := "7.25"

	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"nil", nil, "0"},
		{"decimal", d, "12.5"},
		{"decimal pointer", &d, "12.5"},
		{"nil decimal pointer", (*decimal.Decimal)(nil), "0"},
		{"int", 42, "42"},
		{"negative int64", int64(-3), "-3"},
		{"float", 10.75, "10.75"},
		{"NaN", math.NaN(), "0"},
		{"infinity", math.Inf(1), "0"},
		{"numeric string", " 1000.10 ", "1000.1"},
		{"string pointer", &s, "7.25"},
		{"empty string", "", "0"},
		{"garbage string", "abc", "0"},
		{"json number", json.Number("99.99"), "99.99"},
		{"bool", true, "0"},
		{"map", map[string]any{"x": 1}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAmount(tt.raw)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestRoundAndPercent(t *testing.T) {
	assert.Equal(t, "10.13", Round(decimal.RequireFromString("10.125")).StringFixed(2))
	assert.Equal(t, "200.00", Percent(decimal.NewFromInt(2000), decimal.NewFromInt(10)).StringFixed(2))
	assert.Equal(t, "0.33", Percent(decimal.NewFromInt(1), decimal.RequireFromString("33.333")).StringFixed(2))
}

func TestToAmount_OutOfRangeExponents(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"huge exponent string", "1e2000000000", "0"},
		{"huge exponent json number", json.Number("-5E30000000"), "0"},
		{"tiny exponent string", "1e-2000000000", "0"},
		{"huge float", 1e300, "0"},
		{"largest accepted exponent", "3e18", "3000000000000000000"},
		{"long fraction keeps value", "0.12345678901234567890123", "0.12345678901234567890123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAmount(tt.raw)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestRound_OutOfRangeIsZero(t *testing.T) {
	assert.True(t, Round(decimal.New(7, 1<<30)).IsZero())
	assert.True(t, Round(decimal.New(7, -(1<<30))).IsZero())
	assert.Equal(t, "0.01", Round(decimal.RequireFromString("0.005")).StringFixed(2))
	assert.Equal(t, "0.00", Round(decimal.RequireFromString("0.0049")).StringFixed(2))
}

func TestSum_IgnoresMalformedValues(t *testing.T) {
	total := Sum("100", nil, 50.5, "oops", decimal.NewFromInt(-20))
	assert.True(t, total.Equal(decimal.RequireFromString("130.5")), "got %s", total)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$1,234.50", Format(decimal.RequireFromString("1234.5"), "USD"))
	assert.Equal(t, "$0.00", Format(decimal.Zero, "usd"))
	assert.Equal(t, "12.00", Format(decimal.NewFromInt(12), "NOPE"))
}
