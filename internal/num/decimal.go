// Package num fixes the decimal conventions used across the engine.
//
// Prices and quantities are exact fixed-point values carried as
// shopspring decimals with at most Scale fractional digits. Parsing is
// the single choke point for user-supplied numbers: anything that gets
// past here is a well-formed, in-scale value the book can trust.
package num

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the maximum number of fractional digits accepted on the wire.
const Scale = 8

var (
	ErrMalformed   = errors.New("malformed decimal")
	ErrScale       = fmt.Errorf("more than %d fractional digits", Scale)
	ErrNotPositive = errors.New("value must be positive")
)

// Parse converts a wire string to a decimal. Rejects empty strings,
// non-numeric input, scientific notation, leading plus signs and values
// with more than Scale fractional digits.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, ErrMalformed
	}
	if strings.HasPrefix(s, "+") || strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if d.Exponent() < -Scale {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrScale, s)
	}
	return d, nil
}

// ParsePositive is Parse plus a strict positivity check. Quantities and
// limit prices both go through here.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotPositive, s)
	}
	return d, nil
}

// String renders a decimal in canonical wire form: no trailing zeros,
// no leading plus, no exponent ("1.10" renders as "1.1"). Any trailing
// fractional zeros left in the shopspring rendering are trimmed here.
func String(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
