package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Construction Tests
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		minor    int64
		currency string
		want     int64
		wantCode string
	}{
		{"positive", 1599, USD, 1599, USD},
		{"zero", 0, HKD, 0, HKD},
		{"lower-case code", 7800, "hkd", 7800, HKD},
		{"ringgit", 4480, MYR, 4480, MYR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.minor, tt.currency)
			assert.Equal(t, tt.want, m.Amount())
			assert.Equal(t, tt.wantCode, m.Currency())
		})
	}
}

func TestNewFromDecimal(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{"precise decimal", "15.99", 1599},
		{"many decimals", "99.999", 10000},
		{"whole number", "500", 50000},
		{"rounds half up", "0.125", 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFromDecimal(decimal.RequireFromString(tt.amount), USD)
			assert.Equal(t, tt.want, m.Amount())
		})
	}
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "$15.99", New(1599, USD).Display())
	assert.Equal(t, "$31.98", NewFromDecimal(decimal.RequireFromString("31.98"), USD).Display())
	assert.Empty(t, (*Money)(nil).Display())
}

func TestToDecimal(t *testing.T) {
	d := New(12345, USD).ToDecimal()
	assert.True(t, d.Equal(decimal.RequireFromString("123.45")))
}

// ============================================================================
// Conversion Tests
// ============================================================================

func TestConverterConvert(t *testing.T) {
	c := DefaultConverter()

	tests := []struct {
		name   string
		amount string
		from   string
		to     string
		want   string
	}{
		{"same currency", "15.99", USD, USD, "15.99"},
		{"usd to hkd", "10", USD, HKD, "78"},
		{"hkd to usd", "78", HKD, USD, "10"},
		{"hkd to sgd", "78", HKD, SGD, "13.5"},
		{"case insensitive", "10", "usd", "hkd", "78"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Convert(decimal.RequireFromString(tt.amount), tt.from, tt.to)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestConverterUnsupported(t *testing.T) {
	c := DefaultConverter()

	_, err := c.Convert(decimal.NewFromInt(10), "JPY", USD)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = c.Convert(decimal.NewFromInt(10), USD, "BRL")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	assert.True(t, c.Supports("hkd"))
	assert.False(t, c.Supports("JPY"))
}

func TestNewConverterIgnoresNonPositiveRates(t *testing.T) {
	c := NewConverter(map[string]decimal.Decimal{
		"usd": decimal.NewFromInt(1),
		"XXX": decimal.Zero,
	})
	assert.True(t, c.Supports(USD))
	assert.False(t, c.Supports("XXX"))
}
