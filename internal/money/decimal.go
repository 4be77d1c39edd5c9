// Package money provides exact decimal arithmetic for license prices and revenue.
package money

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// precision is wide enough for any realistic revenue total.
const precision = 34

// Decimal is an immutable exact decimal value.
type Decimal struct {
	value apd.Decimal
}

// Zero returns the zero value.
func Zero() Decimal {
	return Decimal{}
}

// Parse parses a decimal string such as "4.99".
func Parse(s string) (Decimal, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Decimal{}, fmt.Errorf("invalid decimal %q: not a finite number", s)
	}
	return Decimal{value: d}, nil
}

// MustParse is like Parse but panics on malformed input.
// Only use it for compile-time constants such as tier prices.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromInt64 returns the decimal representation of i.
func FromInt64(i int64) Decimal {
	var d apd.Decimal
	d.SetInt64(i)
	return Decimal{value: d}
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(precision)
	_, _ = ctx.Add(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Mul returns d * other.
func (d Decimal) Mul(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(precision)
	_, _ = ctx.Mul(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// MulInt returns d * n.
func (d Decimal) MulInt(n int64) Decimal {
	return d.Mul(FromInt64(n))
}

// Round rounds half-up to the given number of fractional digits.
func (d Decimal) Round(places int32) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(precision)
	ctx.Rounding = apd.RoundHalfUp
	_, _ = ctx.Quantize(&result, &d.value, -places)
	return Decimal{value: result}
}

// Cmp compares d and other and returns -1, 0 or +1.
func (d Decimal) Cmp(other Decimal) int {
	return d.value.Cmp(&other.value)
}

// IsZero reports whether d is zero.
func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

// Float64 converts d to the nearest float64.
func (d Decimal) Float64() float64 {
	f, err := d.value.Float64()
	if err != nil {
		return 0
	}
	return f
}

// String returns the plain decimal representation.
func (d Decimal) String() string {
	return d.value.Text('f')
}
