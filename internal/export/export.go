package export

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/airdrop/internal/domain"
	"github.com/mtlprog/airdrop/internal/valuation"
)

// PriceRow is one asset line of the PRICES sheet.
type PriceRow struct {
	Symbol    string
	ID        domain.AssetID
	Price     decimal.Decimal
	Currency  domain.Currency
	Icon      string
	FetchedAt time.Time
}

// SheetWriter writes the current prices and derived values to a spreadsheet destination.
type SheetWriter interface {
	Write(ctx context.Context, rows []PriceRow, derived valuation.Derived) error
}

// AmountReader returns the current base amount.
type AmountReader interface {
	Get() decimal.Decimal
}

// Service turns committed price states into sheet rows and delegates writing to a SheetWriter.
type Service struct {
	assets    []domain.Asset
	primary   domain.AssetID
	secondary domain.AssetID
	amount    AmountReader
	writer    SheetWriter
}

// NewService creates a new export Service.
func NewService(assets []domain.Asset, primary, secondary domain.AssetID, amount AmountReader, writer SheetWriter) *Service {
	return &Service{
		assets:    assets,
		primary:   primary,
		secondary: secondary,
		amount:    amount,
		writer:    writer,
	}
}

// Export writes the snapshot in state. Implements worker.StateExporter.
func (s *Service) Export(ctx context.Context, state domain.PriceState) error {
	if state.Snapshot == nil {
		return fmt.Errorf("exporting prices: no snapshot")
	}

	rows := BuildRows(s.assets, state.Snapshot)
	derived := valuation.Derive(state.Snapshot, s.amount.Get(), s.primary, s.secondary)

	if err := s.writer.Write(ctx, rows, derived); err != nil {
		return fmt.Errorf("writing price sheet: %w", err)
	}
	return nil
}

// BuildRows returns one row per configured asset present in snap, in configuration order.
func BuildRows(assets []domain.Asset, snap *domain.Snapshot) []PriceRow {
	present := lo.Filter(assets, func(a domain.Asset, _ int) bool {
		return snap.Lookup(a.ID) != nil
	})
	return lo.Map(present, func(a domain.Asset, _ int) PriceRow {
		e := snap.Lookup(a.ID)
		return PriceRow{
			Symbol:    a.Symbol,
			ID:        a.ID,
			Price:     e.Price,
			Currency:  snap.Currency,
			Icon:      e.Icon,
			FetchedAt: snap.FetchedAt,
		}
	})
}
