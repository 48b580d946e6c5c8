package export

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/mtlprog/airdrop/internal/valuation"
)

const pricesSheet = "PRICES"

// SheetsWriter implements SheetWriter using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Write ensures the PRICES sheet exists, then clears and rewrites it.
func (w *SheetsWriter) Write(ctx context.Context, rows []PriceRow, derived valuation.Derived) error {
	if err := w.ensureSheet(ctx, pricesSheet); err != nil {
		return err
	}

	_, err := w.svc.Spreadsheets.Values.Clear(
		w.spreadsheetID,
		pricesSheet+"!A:F",
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing sheet: %w", err)
	}

	_, err = w.svc.Spreadsheets.Values.Update(
		w.spreadsheetID,
		pricesSheet+"!A1",
		&sheets.ValueRange{Values: buildValues(rows, derived)},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing sheet: %w", err)
	}

	return nil
}

// buildValues lays out the PRICES sheet.
// Columns: Symbol | Id | Price | Currency | Icon | Fetched, followed by a blank row and the derived values.
func buildValues(rows []PriceRow, derived valuation.Derived) [][]any {
	data := make([][]any, 0, len(rows)+5)
	data = append(data, []any{"Symbol", "Id", "Price", "Currency", "Icon", "Fetched"})

	for _, r := range rows {
		data = append(data, []any{
			r.Symbol, string(r.ID),
			toFloat(r.Price), string(r.Currency),
			r.Icon, r.FetchedAt.UTC().Format(time.RFC3339),
		})
	}

	data = append(data,
		[]any{},
		[]any{"Amount", string(derived.PrimaryAsset), toFloat(derived.Amount)},
		[]any{"Value", string(derived.Currency), validFloat(derived.Fiat)},
		[]any{"Value in", string(derived.SecondaryAsset), validFloat(derived.CrossAsset)},
	)
	return data
}

// ensureSheet creates the named sheet if it does not already exist.
func (w *SheetsWriter) ensureSheet(ctx context.Context, name string) error {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	for _, s := range spreadsheet.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return nil
		}
	}

	_, err = w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}}},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	return nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// validFloat leaves the cell empty for unavailable values instead of writing a fake zero.
func validFloat(v valuation.Value) any {
	if !v.Valid {
		return ""
	}
	return toFloat(v.Amount)
}
