// Package decfloat implements the two-word decimal float used by Moon
// programs: a signed mantissa and a decimal exponent that marks where the
// decimal point falls in the mantissa's digit string.
//
//	12.345  =>  mantissa 12345, exponent 2
//	0.05    =>  mantissa 5,     exponent -1
//
// The functions here are the reference semantics for the code the
// generator emits; the VM tests compare the two.
package decfloat

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a decoded decimal float.
type Value struct {
	Mantissa int64
	Exponent int64
}

// Parse decodes a literal of the form D1.D2 (either part may be empty,
// an optional leading minus sign is accepted).
func Parse(text string) (Value, error) {
	s := text
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	digits := whole + frac
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return Value{}, fmt.Errorf("malformed float literal %q", text)
	}

	// leading zeros vanish in the integer conversion; the exponent must
	// shift with them or 0.5 would read back as 5
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	lost := len(digits) - len(trimmed)

	m, err := strconv.ParseInt(trimmed, 10, 32)
	if err != nil {
		return Value{}, fmt.Errorf("float literal %q: mantissa out of range", text)
	}
	if neg {
		m = -m
	}
	return Value{Mantissa: m, Exponent: int64(len(whole) - lost)}, nil
}

// Digits counts the decimal digits of |m|. Zero has one digit.
func Digits(m int64) int64 {
	if m < 0 {
		m = -m
	}
	n := int64(1)
	for m >= 10 {
		m /= 10
		n++
	}
	return n
}

// Float64 reconstructs mantissa × 10^(exponent − digits(mantissa)).
func (v Value) Float64() float64 {
	return float64(v.Mantissa) * math.Pow10(int(v.Exponent-Digits(v.Mantissa)))
}

// String renders the value the way a write statement prints it.
func (v Value) String() string {
	return fmt.Sprintf("%de%d", v.Mantissa, v.Exponent)
}

// Add returns l + r. stale is the exponent word held by the destination
// before the store; a zero sum reports its negation as the exponent.
func Add(l, r Value, stale int64) Value {
	return combine(l, r, stale)
}

// Sub returns l - r with the same zero-sum convention as Add.
func Sub(l, r Value, stale int64) Value {
	r.Mantissa = -r.Mantissa
	return combine(l, r, stale)
}

// Headroom is the ×100 scale applied to both mantissas before summing.
const Headroom = 100

// combine aligns, sums and normalizes. It departs from the plain
// digit-string recipe in two steps:
//
//   - alignment does not shift the smaller mantissa by the exponent
//     difference first; the difference is added to its digit width and
//     the ×10 widening loop does both jobs
//   - the result exponent is big.Exponent + Digits(sum) - bw - c, not
//     big.Exponent plus the trim counter, so a carry into a new digit
//     moves the decimal point (5.5+5.5 is 11e2, not 11e1)
//
// Parse likewise lowers the exponent by the leading zeros it drops.
func combine(l, r Value, stale int64) Value {
	big, small := r, l
	if l.Exponent > r.Exponent {
		big, small = l, r
	}

	bm, sm := big.Mantissa, small.Mantissa
	bw := Digits(bm)
	sw := Digits(sm) + (big.Exponent - small.Exponent)
	for bw < sw {
		bm *= 10
		bw++
	}
	for sw < bw {
		sm *= 10
		sw++
	}

	sum := bm*Headroom + sm*Headroom
	if sum == 0 {
		return Value{Mantissa: 0, Exponent: -stale}
	}
	c := int64(2)
	for sum%10 == 0 {
		sum /= 10
		c--
	}
	return Value{Mantissa: sum, Exponent: big.Exponent + Digits(sum) - bw - c}
}
