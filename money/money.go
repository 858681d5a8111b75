/*
Package money provides the cent-exact amount type used by every estimate
component.

PURPOSE:
  Form input arrives as free text ("1,250.00", "$40", "", "n/a"). It is parsed
  ONCE at the boundary into Money and never re-parsed mid-calculation. All
  arithmetic runs on decimal.Decimal and results are rounded to cents, so
  there is no floating-point drift across a multi-payer waterfall.

KEY OPERATIONS:
  Parse:       defensive text -> Money (invalid or missing -> 0)
  Cents:       round half away from zero to two places
  NonNegative: clamp below at zero
  Percent:     m x pct / 100, rounded to cents

USAGE:
  billed := money.Parse("1,000.00")
  coins := billed.Percent(decimal.NewFromInt(20)) // 200.00
  owed := money.Min(coins, room).NonNegative()

SEE ALSO:
  - adjudication/waterfall.go: the main consumer
  - factory/estimate.go: the text boundary
*/
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount held at cent precision
// =============================================================================

// Money is a currency amount. The zero value is $0.00.
type Money struct {
	Value decimal.Decimal
}

// Zero is $0.00.
var Zero = Money{}

var hundred = decimal.NewFromInt(100)

// New builds Money from a float and rounds it to cents.
func New(f float64) Money {
	return Money{Value: decimal.NewFromFloat(f)}.Cents()
}

// FromInt builds Money from whole dollars.
func FromInt(n int64) Money {
	return Money{Value: decimal.NewFromInt(n)}
}

// FromDecimal wraps a decimal and rounds it to cents.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Value: d}.Cents()
}

// Parse coerces free text to Money. Currency symbols, thousands separators
// and surrounding whitespace are ignored; anything unparseable is zero.
func Parse(s string) Money {
	d, ok := ParseDecimal(s)
	if !ok {
		return Zero
	}
	return FromDecimal(d)
}

// ParseDecimal is the shared text coercion used for amounts and percentages.
// ok is false for blank or malformed input.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (m Money) Cents() Money { return Money{Value: m.Value.Round(2)} }
func (m Money) Add(o Money) Money { return Money{Value: m.Value.Add(o.Value)}.Cents() }
func (m Money) Sub(o Money) Money { return Money{Value: m.Value.Sub(o.Value)}.Cents() }
func (m Money) Mul(f decimal.Decimal) Money { return Money{Value: m.Value.Mul(f)}.Cents() }
func (m Money) Neg() Money { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool { return m.Value.IsZero() }
func (m Money) IsPositive() bool { return m.Value.IsPositive() }
func (m Money) IsNegative() bool { return m.Value.IsNegative() }
func (m Money) Equal(o Money) bool { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.Value.GreaterThanOrEqual(o.Value) }
func (m Money) LessThan(o Money) bool { return m.Value.LessThan(o.Value) }

// Percent returns pct percent of m, rounded to cents.
func (m Money) Percent(pct decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(pct).Div(hundred)}.Cents()
}

// NonNegative clamps m at zero.
func (m Money) NonNegative() Money {
	if m.IsNegative() {
		return Zero
	}
	return m
}

// Clamp bounds m to [lo, hi].
func (m Money) Clamp(lo, hi Money) Money {
	return Max(lo, Min(m, hi))
}

// Float64 is for display and scoring only.
func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

// String renders the amount with exactly two decimals, e.g. "400.00".
func (m Money) String() string {
	return m.Value.StringFixed(2)
}

// Format renders the amount as dollars, e.g. "$1000.00".
func (m Money) Format() string {
	if m.IsNegative() {
		return "-$" + m.Neg().String()
	}
	return "$" + m.String()
}

// MarshalJSON writes a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a number or a string and never fails on bad text;
// it coerces it to zero like every other boundary parse.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*m = Zero
		return nil
	}
	*m = Parse(s)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Sum adds amounts left to right.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// IsCents reports whether m carries no more than two decimal places.
func IsCents(m Money) bool {
	return m.Value.Equal(m.Value.Round(2))
}
