// Package money holds subscription amounts as integer minor units tagged
// with an ISO-4217 code.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Supported ISO-4217 codes
const (
	USD = "USD"
	HKD = "HKD"
	SGD = "SGD"
	MYR = "MYR"
	GBP = "GBP"
	CNY = "CNY"
	EUR = "EUR"
)

// Money is an amount in a single currency.
type Money struct {
	m *money.Money
}

// New wraps amountMinor units of currencyCode.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, strings.ToUpper(currencyCode))}
}

// NewFromDecimal rounds amount half away from zero to the currency's minor
// unit. Unknown codes fall back to two decimal places.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	fraction := 2
	if c := money.GetCurrency(strings.ToUpper(currencyCode)); c != nil {
		fraction = c.Fraction
	}
	minor := amount.Shift(int32(fraction)).Round(0).IntPart()
	return New(minor, currencyCode)
}

// Amount is the value in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency is the upper-case ISO code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// ToDecimal returns the value in major units.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -int32(m.m.Currency().Fraction))
}

// Display formats the value with the currency's symbol, e.g. "$31.98".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}
