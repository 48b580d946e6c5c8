package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// AssetID is an asset identifier in the price provider's namespace, e.g. "debridge".
type AssetID string

// Asset pairs a provider identifier with the ticker shown to users.
type Asset struct {
	ID     AssetID `json:"id"`
	Symbol string  `json:"symbol"`
}

// ErrNoAssets is returned when an asset list parses to nothing.
var ErrNoAssets = errors.New("no assets configured")

// ParseAssets parses a comma-separated list of "SYMBOL:id" pairs.
// A bare "id" entry uses the upper-cased id as its symbol. Duplicated ids keep the first entry.
func ParseAssets(raw string) ([]Asset, error) {
	parts := lo.Filter(strings.Split(raw, ","), func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})

	assets := make([]Asset, 0, len(parts))
	for _, part := range parts {
		symbol, id, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found {
			id = symbol
			symbol = strings.ToUpper(symbol)
		}
		symbol = strings.TrimSpace(symbol)
		id = strings.TrimSpace(id)
		if id == "" || symbol == "" {
			return nil, fmt.Errorf("invalid asset entry %q", part)
		}
		assets = append(assets, Asset{ID: AssetID(id), Symbol: symbol})
	}

	assets = lo.UniqBy(assets, func(a Asset) AssetID { return a.ID })
	if len(assets) == 0 {
		return nil, ErrNoAssets
	}
	return assets, nil
}

// AssetIDs returns the identifiers of the given assets in order.
func AssetIDs(assets []Asset) []AssetID {
	return lo.Map(assets, func(a Asset, _ int) AssetID { return a.ID })
}

// FindAsset looks up an asset by identifier.
func FindAsset(assets []Asset, id AssetID) (Asset, bool) {
	return lo.Find(assets, func(a Asset) bool { return a.ID == id })
}
