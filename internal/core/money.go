// Package core provides money parsing and handling utilities.
//
// Amounts are held as int64 minor units. Parsing and ratio arithmetic go
// through shopspring/decimal so no float rounding leaks into stored values.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol is the fixed display currency.
const CurrencySymbol = "₦"

var hundred = decimal.NewFromInt(100)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Returns ErrInvalidAmount for invalid
// formats, negative values or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseLimitToCents is ParseDecimalToCents that also accepts zero.
func ParseLimitToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, ErrInvalidLimit
	}
	return cents, nil
}

func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	// decimal accepts exponents; amounts typed by people never have them.
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// MoneyFromDecimal rounds a decimal major-unit amount to the nearest cent.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// String renders the amount with two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the amount with the display currency, e.g. "₦1234.50".
func (m Money) Format() string {
	if m.Cents < 0 {
		return "-" + CurrencySymbol + Money{Cents: -m.Cents}.String()
	}
	return CurrencySymbol + m.String()
}

// Float returns the amount in major units for JSON views and charts.
// Use cents for arithmetic.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// Percent returns part/total*100 rounded to two decimals, or 0 when total is 0.
func Percent(part, total Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	p := decimal.NewFromInt(part.Cents).
		Mul(hundred).
		DivRound(decimal.NewFromInt(total.Cents), 4).
		Round(2)
	f, _ := p.Float64()
	return f
}

// PercentChange returns (current-previous)/previous*100, defined as 0 when
// previous is 0.
func PercentChange(current, previous Money) float64 {
	if previous.Cents == 0 {
		return 0
	}
	return Percent(current.Sub(previous), previous)
}

// MarshalJSON encodes the amount as a major-unit number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a major-unit number or numeric string. Values are
// held to the same rules as typed amounts: no exponent and at most 1<<62
// cents in magnitude. A leading minus is kept so Validate can reject it.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	neg := strings.HasPrefix(s, "-")
	cents, err := parseCents(strings.TrimPrefix(s, "-"))
	if err != nil {
		return ErrInvalidAmount
	}
	if neg {
		cents = -cents
	}
	*m = Money{Cents: cents}
	return nil
}
