package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceEntry is the price of one asset in the snapshot currency.
// Icon comes from a reference-currency lookup and does not change with the currency.
type PriceEntry struct {
	Price decimal.Decimal `json:"price"`
	Icon  string          `json:"icon,omitempty"`
}

// Prices maps every configured asset to its entry.
type Prices map[AssetID]PriceEntry

// Snapshot is a complete set of prices fetched in a single currency.
type Snapshot struct {
	Currency  Currency  `json:"currency"`
	Prices    Prices    `json:"prices"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Lookup returns the entry for id, or nil when the snapshot or the entry is missing.
func (s *Snapshot) Lookup(id AssetID) *PriceEntry {
	if s == nil {
		return nil
	}
	e, ok := s.Prices[id]
	if !ok {
		return nil
	}
	return &e
}

// Clone returns a deep copy so callers can't mutate store-owned maps.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	prices := make(Prices, len(s.Prices))
	for id, e := range s.Prices {
		prices[id] = e
	}
	return &Snapshot{Currency: s.Currency, Prices: prices, FetchedAt: s.FetchedAt}
}

// Status describes the outcome of the most recent completed fetch.
type Status string

const (
	StatusLoading Status = "loading" // nothing completed yet
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// PriceState is what the presentation layer reads from the price store.
// Snapshot holds the last good data and survives failed refreshes.
type PriceState struct {
	Status     Status     `json:"status"`
	Snapshot   *Snapshot  `json:"snapshot,omitempty"`
	Error      string     `json:"error,omitempty"`
	Refreshing bool       `json:"refreshing"`
	Currency   Currency   `json:"currency"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	FailedAt   *time.Time `json:"failedAt,omitempty"`
}

// HasLoaded reports whether any fetch has ever succeeded.
func (s PriceState) HasLoaded() bool {
	return s.Snapshot != nil
}

// Stale reports whether the shown snapshot is older than the last failed refresh
// or quoted in a currency other than the requested one.
func (s PriceState) Stale() bool {
	if s.Snapshot == nil {
		return false
	}
	return s.Status == StatusError || s.Snapshot.Currency != s.Currency
}

// Clone returns a deep copy of the state.
func (s PriceState) Clone() PriceState {
	out := s
	out.Snapshot = s.Snapshot.Clone()
	return out
}
