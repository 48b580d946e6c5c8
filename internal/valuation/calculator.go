// Package valuation derives display values from a price snapshot and the base amount.
// Everything here is pure; results are recomputed on every call.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/mtlprog/airdrop/internal/domain"
)

// Value is a derived number plus whether it is meaningful.
// Valid is false when a required price was missing or zero; Amount is then zero.
type Value struct {
	Amount decimal.Decimal `json:"amount"`
	Valid  bool            `json:"valid"`
}

// FiatValue returns amount × price. A missing or zero price yields zero.
func FiatValue(amount decimal.Decimal, price *domain.PriceEntry) decimal.Decimal {
	if price == nil || price.Price.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(price.Price)
}

// CrossAssetValue re-expresses fiat in units of other. A missing or zero price is unavailable.
func CrossAssetValue(fiat decimal.Decimal, other *domain.PriceEntry) Value {
	if other == nil {
		return Value{Amount: decimal.Zero}
	}
	v, ok := domain.SafeDivide(fiat, other.Price)
	return Value{Amount: v, Valid: ok}
}

// Derived is the full set of values shown next to the prices.
type Derived struct {
	Currency       domain.Currency `json:"currency,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PrimaryAsset   domain.AssetID  `json:"primaryAsset"`
	SecondaryAsset domain.AssetID  `json:"secondaryAsset"`
	Fiat           Value           `json:"fiat"`
	CrossAsset     Value           `json:"crossAsset"`
}

// Derive computes the fiat value of amount units of primary and its equivalent in secondary,
// using the prices and currency of snap. A nil snapshot yields unavailable values.
func Derive(snap *domain.Snapshot, amount decimal.Decimal, primary, secondary domain.AssetID) Derived {
	d := Derived{
		Amount:         amount,
		PrimaryAsset:   primary,
		SecondaryAsset: secondary,
		Fiat:           Value{Amount: decimal.Zero},
		CrossAsset:     Value{Amount: decimal.Zero},
	}
	if snap == nil {
		return d
	}
	d.Currency = snap.Currency

	primaryPrice := snap.Lookup(primary)
	fiat := FiatValue(amount, primaryPrice)
	d.Fiat = Value{Amount: fiat, Valid: primaryPrice != nil && !primaryPrice.Price.IsZero()}
	if !d.Fiat.Valid {
		return d
	}

	d.CrossAsset = CrossAssetValue(fiat, snap.Lookup(secondary))
	return d
}
