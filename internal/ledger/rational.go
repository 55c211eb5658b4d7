package ledger

import (
	"fmt"
	"math"

	"github.com/govalues/decimal"
)

// Rational is an exact split value: Num over Denom. A zero denominator is
// read as one.
type Rational struct {
	Num   int64
	Denom int64
}

// NewRational builds a value from minor units of the given fraction (e.g. 100 for cents).
func NewRational(num, denom int64) Rational { return Rational{Num: num, Denom: denom} }

func (r Rational) denom() int64 {
	if r.Denom == 0 {
		return 1
	}
	return r.Denom
}

// Decimal converts the value to a decimal. Inexact quotients are rounded
// half to even at the maximum decimal precision.
func (r Rational) Decimal() (decimal.Decimal, error) {
	num, err := decimal.New(r.Num, 0)
	if err != nil {
		return decimal.Decimal{}, err
	}
	denom := r.denom()
	if denom == 1 {
		return num, nil
	}
	d, err := decimal.New(denom, 0)
	if err != nil {
		return decimal.Decimal{}, err
	}
	q, err := num.Quo(d)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%d/%d: %w", r.Num, denom, err)
	}
	return q, nil
}

// ParseRational reads a decimal string such as "12.50" as 1250/100.
func ParseRational(s string) (Rational, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return Rational{}, fmt.Errorf("amount %q: %w", s, err)
	}
	if d.Coef() > math.MaxInt64 || d.Scale() > 18 {
		return Rational{}, fmt.Errorf("amount %q out of range", s)
	}
	num := int64(d.Coef())
	if d.IsNeg() {
		num = -num
	}
	denom := int64(1)
	for i := 0; i < d.Scale(); i++ {
		denom *= 10
	}
	return Rational{Num: num, Denom: denom}, nil
}

// IsPositive reports whether the value is strictly greater than zero.
func (r Rational) IsPositive() bool {
	return (r.Num > 0 && r.denom() > 0) || (r.Num < 0 && r.denom() < 0)
}

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.Num, r.denom()) }
