package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const displayPrecision = 8

// SafeDivide divides a by b. A zero divisor yields zero and false instead of panicking.
func SafeDivide(a, b decimal.Decimal) (decimal.Decimal, bool) {
	if b.IsZero() {
		return decimal.Zero, false
	}
	return a.Div(b), true
}

// FormatDisplay rounds to 8 decimal places and strips trailing zeros.
func FormatDisplay(d decimal.Decimal) string {
	s := d.Round(displayPrecision).StringFixed(displayPrecision)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
