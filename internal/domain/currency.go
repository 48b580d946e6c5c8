package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Currency is a fiat currency the prices can be quoted in.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyCAD Currency = "CAD"
	CurrencyEUR Currency = "EUR"
)

// DefaultCurrency is selected until a user picks another one.
const DefaultCurrency = CurrencyUSD

// SupportedCurrencies lists every selectable currency.
var SupportedCurrencies = []Currency{CurrencyUSD, CurrencyCAD, CurrencyEUR}

// ErrUnsupportedCurrency is returned for codes outside SupportedCurrencies.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// ParseCurrency parses a currency code case-insensitively.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// Valid reports whether c is one of SupportedCurrencies.
func (c Currency) Valid() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// Query returns the lowercase code used in provider query parameters.
func (c Currency) Query() string {
	return strings.ToLower(string(c))
}

func (c Currency) String() string {
	return string(c)
}
