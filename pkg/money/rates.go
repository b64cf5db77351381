package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency is returned when a conversion involves a currency
// without a configured rate.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// DefaultUSDRates are units of each currency per one US dollar.
var DefaultUSDRates = map[string]decimal.Decimal{
	USD: decimal.NewFromInt(1),
	HKD: decimal.RequireFromString("7.80"),
	SGD: decimal.RequireFromString("1.35"),
	MYR: decimal.RequireFromString("4.48"),
	GBP: decimal.RequireFromString("0.79"),
	CNY: decimal.RequireFromString("7.28"),
	EUR: decimal.RequireFromString("0.93"),
}

// Converter converts amounts through a table of USD-based rates.
type Converter struct {
	usdRates map[string]decimal.Decimal
}

// NewConverter builds a converter from units-per-USD rates. Codes are
// upper-cased and non-positive rates are ignored.
func NewConverter(usdRates map[string]decimal.Decimal) *Converter {
	rates := make(map[string]decimal.Decimal, len(usdRates))
	for code, rate := range usdRates {
		if !rate.IsPositive() {
			continue
		}
		rates[strings.ToUpper(code)] = rate
	}
	return &Converter{usdRates: rates}
}

// DefaultConverter returns a converter using DefaultUSDRates.
func DefaultConverter() *Converter {
	return NewConverter(DefaultUSDRates)
}

// Supports reports whether the currency has a rate.
func (c *Converter) Supports(code string) bool {
	_, ok := c.usdRates[strings.ToUpper(code)]
	return ok
}

// Convert converts a decimal amount between currencies.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	fromRate, ok := c.usdRates[strings.ToUpper(from)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	toRate, ok := c.usdRates[strings.ToUpper(to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	return amount.Div(fromRate).Mul(toRate), nil
}
