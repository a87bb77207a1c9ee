package export

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/rose-token/treasury/internal/domain"
)

const monitoringSheet = "MONITORING"

// SheetsWriter appends one monitoring row per run to a Google Sheet.
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

// monitoringHeader defines the columns of the MONITORING sheet.
var monitoringHeader = []any{
	"Date", "NAV Price", "Hard Asset USD", "Total USD",
	"Circulating Supply", "Rebalance Needed",
}

// buildMonitoringRow builds the single data row for one run.
func buildMonitoringRow(b domain.VaultBreakdown, at time.Time) []any {
	return []any{
		at.UTC().Format("02.01.2006"),
		toFloat(b.Price),
		toFloat(b.HardAssetsUSD),
		toFloat(b.TotalUSD),
		toFloat(b.CirculatingSupply),
		b.RebalanceNeeded,
	}
}

// Write ensures the MONITORING sheet exists, writes the header row if the
// sheet is empty, then appends one data row.
func (w *SheetsWriter) Write(ctx context.Context, b domain.VaultBreakdown) error {
	if err := w.ensureSheets(ctx, monitoringSheet); err != nil {
		return fmt.Errorf("ensuring monitoring sheet: %w", err)
	}

	existing, err := w.svc.Spreadsheets.Values.Get(
		w.spreadsheetID, monitoringSheet+"!A1:A1",
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading monitoring header: %w", err)
	}

	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			monitoringSheet+"!A1",
			&sheets.ValueRange{Values: [][]any{monitoringHeader}},
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing monitoring header: %w", err)
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		monitoringSheet+"!A:F",
		&sheets.ValueRange{Values: [][]any{buildMonitoringRow(b, time.Now())}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending monitoring row: %w", err)
	}

	return nil
}

// ensureSheets creates any of the named sheets that do not already exist.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) error {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	existing := make(map[string]bool, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		existing[s.Properties.Title] = true
	}

	var requests []*sheets.Request
	for _, name := range names {
		if !existing[name] {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) == 0 {
		return nil
	}

	_, err = w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating sheets: %w", err)
	}

	return nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
