// Package amount holds the user-editable quantity of the primary asset.
package amount

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for non-numeric, zero or negative input.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// Holder keeps the base amount. Invalid edits leave the previous value in place.
type Holder struct {
	mu      sync.RWMutex
	def     decimal.Decimal
	current decimal.Decimal
}

// NewHolder creates a Holder initialized to def. def must be positive.
func NewHolder(def decimal.Decimal) (*Holder, error) {
	if !def.IsPositive() {
		return nil, fmt.Errorf("default %w, got %s", ErrInvalidAmount, def)
	}
	return &Holder{def: def, current: def}, nil
}

// Parse validates raw user input as a positive decimal.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d, nil
}

// Get returns the current amount.
func (h *Holder) Get() decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Default returns the configured default amount.
func (h *Holder) Default() decimal.Decimal {
	return h.def
}

// IsDefault reports whether the current amount equals the default.
func (h *Holder) IsDefault() bool {
	return h.Get().Equal(h.def)
}

// Set parses raw and replaces the current amount.
func (h *Holder) Set(raw string) error {
	d, err := Parse(raw)
	if err != nil {
		return err
	}
	h.store(d)
	return nil
}

// SetDecimal replaces the current amount with d if it is positive.
func (h *Holder) SetDecimal(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, d)
	}
	h.store(d)
	return nil
}

// Reset restores the default amount.
func (h *Holder) Reset() {
	h.store(h.def)
}

func (h *Holder) store(d decimal.Decimal) {
	h.mu.Lock()
	h.current = d
	h.mu.Unlock()
}
