/*
Package money provides currency-tagged decimal amounts.

PURPOSE:
  Every monetary value in the loan ledger is a Money: a decimal.Decimal
  plus the Currency it is denominated in. Amounts in different currencies
  are tracked side by side but never combined; arithmetic across
  currencies returns ErrCurrencyMismatch instead of a silently wrong sum.

KEY CONCEPTS:
  - Currency: one of a fixed small set (USD, KHR)
  - MinorUnits: decimal places of the smallest coin (cents for USD)
  - Round / RoundDown: snap an amount to the currency's minor unit

PRECISION:
  Uses decimal.Decimal so that 105 / 30 is exactly 3.5 and the sum of
  thirty 3.5 installments is exactly 105. No float64 crosses this API
  except FromFloat for test and literal convenience.

USAGE:
  total := money.New("105.00", money.USD)
  per := total.DivRoundDown(decimal.NewFromInt(30))
  sum, err := money.Sum(money.USD, per, per)
*/
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

type Currency string

const (
	USD Currency = "USD"
	KHR Currency = "KHR"
)

// Currencies lists every supported currency code.
var Currencies = []Currency{USD, KHR}

var minorUnits = map[Currency]int32{
	USD: 2,
	KHR: 2,
}

var symbols = map[Currency]string{
	USD: "$",
	KHR: "៛",
}

// ParseCurrency accepts a case-insensitive ISO code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
	return c, nil
}

func (c Currency) Valid() bool {
	_, ok := minorUnits[c]
	return ok
}

func (c Currency) MinorUnits() int32 { return minorUnits[c] }
func (c Currency) Symbol() string    { return symbols[c] }
func (c Currency) String() string    { return string(c) }

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCurrencyMismatch is returned when two amounts in different
	// currencies meet in one operation.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrUnknownCurrency is returned for codes outside Currencies.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrInvalidAmount is returned when a string is not a decimal number.
	ErrInvalidAmount = errors.New("invalid amount")
)

// =============================================================================
// MONEY
// =============================================================================

type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// New parses s as a decimal. Use Parse when the input is untrusted.
func New(s string, c Currency) Money {
	m, err := Parse(s, c)
	if err != nil {
		return Zero(c)
	}
	return m
}

func Parse(s string, c Currency) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{Amount: d, Currency: c}, nil
}

func FromDecimal(d decimal.Decimal, c Currency) Money { return Money{Amount: d, Currency: c} }
func FromFloat(f float64, c Currency) Money          { return Money{Amount: decimal.NewFromFloat(f), Currency: c} }
func FromMinor(units int64, c Currency) Money {
	return Money{Amount: decimal.New(units, -c.MinorUnits()), Currency: c}
}
func Zero(c Currency) Money { return Money{Amount: decimal.Zero, Currency: c} }

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }
func (m Money) Neg() Money       { return Money{Amount: m.Amount.Neg(), Currency: m.Currency} }

func (m Money) Mul(s decimal.Decimal) Money { return Money{Amount: m.Amount.Mul(s), Currency: m.Currency} }

// Round snaps to the currency's minor unit, half away from zero.
func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(m.Currency.MinorUnits()), Currency: m.Currency}
}

// RoundDown truncates toward zero at the currency's minor unit.
func (m Money) RoundDown() Money {
	return Money{Amount: m.Amount.Truncate(m.Currency.MinorUnits()), Currency: m.Currency}
}

// DivRoundDown divides and truncates to the minor unit. The divisor must be non-zero.
func (m Money) DivRoundDown(d decimal.Decimal) Money {
	return Money{Amount: m.Amount.Div(d).Truncate(m.Currency.MinorUnits()), Currency: m.Currency}
}

// MinorUnits returns the amount as an integer count of minor units,
// rounded half away from zero.
func (m Money) MinorUnits() int64 {
	return m.Amount.Shift(m.Currency.MinorUnits()).Round(0).IntPart()
}

func (m Money) Add(o Money) (Money, error) {
	if err := m.same(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if err := m.same(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// MustAdd panics on a currency mismatch. For callers that already hold
// amounts known to share a currency (fields of one loan).
func (m Money) MustAdd(o Money) Money {
	r, err := m.Add(o)
	if err != nil {
		panic(err)
	}
	return r
}

func (m Money) MustSub(o Money) Money {
	r, err := m.Sub(o)
	if err != nil {
		panic(err)
	}
	return r
}

// Comparisons ignore the currency tag; callers compare amounts of one loan.
func (m Money) Equal(o Money) bool              { return m.Amount.Equal(o.Amount) }
func (m Money) GreaterThan(o Money) bool        { return m.Amount.GreaterThan(o.Amount) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.Amount.GreaterThanOrEqual(o.Amount) }
func (m Money) LessThan(o Money) bool           { return m.Amount.LessThan(o.Amount) }

func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}

// String renders the amount at the currency's precision, e.g. "105.00 USD".
func (m Money) String() string {
	return m.Amount.StringFixed(m.Currency.MinorUnits()) + " " + string(m.Currency)
}

// Display renders with the currency symbol, e.g. "$105.00".
func (m Money) Display() string {
	return m.Currency.Symbol() + m.Amount.StringFixed(m.Currency.MinorUnits())
}

func (m Money) same(o Money) error {
	if m.Currency != o.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return nil
}

// Sum adds amounts that must all be in currency c.
func Sum(c Currency, amounts ...Money) (Money, error) {
	total := Zero(c)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
