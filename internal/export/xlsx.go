package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/rose-token/treasury/internal/domain"
)

const reserveSheet = "RESERVE"

// XLSXWriter writes the reserve report to a local .xlsx file,
// overwriting it on each run.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates an XLSXWriter targeting the given file path.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write renders the breakdown into a single-sheet workbook.
func (w *XLSXWriter) Write(_ context.Context, b domain.VaultBreakdown) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", reserveSheet)

	rows := buildReserveRows(b)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("computing cell name: %w", err)
		}
		if err := f.SetSheetRow(reserveSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// buildReserveRows lays out the report: one row per asset, then totals.
func buildReserveRows(b domain.VaultBreakdown) [][]any {
	rows := [][]any{
		{"Asset", "Token", "Balance", "Price USD", "Value USD", "Share bps", "Target bps", "Active"},
	}
	for _, a := range b.Assets {
		rows = append(rows, []any{
			string(a.Key), a.Token,
			toFloat(a.Normalized), toFloat(a.PriceUSD), toFloat(a.ValueUSD),
			a.ShareBps, a.TargetBps, a.Active,
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Hard asset value USD", toFloat(b.HardAssetsUSD)},
		[]any{"Total value USD", toFloat(b.TotalUSD)},
		[]any{"NAV price", toFloat(b.Price)},
		[]any{"Circulating supply", toFloat(b.CirculatingSupply)},
		[]any{"Rebalance needed", b.RebalanceNeeded},
		[]any{"Generated at", b.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
	)
	return rows
}
