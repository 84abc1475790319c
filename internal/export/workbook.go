// Package export writes fitted trends to spreadsheet workbooks.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/trend"
)

// SummarySheet is the name of the per-rank statistics sheet.
const SummarySheet = "Summary"

const dateLayout = "2006-01-02"

var summaryHeaders = []string{
	"Rank", "Field", "Points", "First date", "Last date",
	"Slope (ln/s)", "Intercept", "r", "p", "Stderr",
	"Doubling (months)", "Projection date", "Projection",
}

var rankHeaders = []string{"Date", "Observed", "Predicted"}

// RankSheet returns the sheet name used for one rank.
func RankSheet(rank int) string {
	return fmt.Sprintf("Rank %d", rank)
}

// WriteWorkbook writes a Summary sheet and one sheet per rank to path.
func WriteWorkbook(path string, trends []model.RankTrend) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, trends); err != nil {
		return err
	}
	for _, t := range trends {
		if err := writeRank(f, t); err != nil {
			return fmt.Errorf("rank %d: %w", t.Rank, err)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export dir: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, trends []model.RankTrend) error {
	if err := setRow(f, SummarySheet, 1, toRow(summaryHeaders)); err != nil {
		return err
	}
	for i, t := range trends {
		first, last := "", ""
		if n := len(t.Dates); n > 0 {
			first = t.Dates[0].Format(dateLayout)
			last = t.Dates[n-1].Format(dateLayout)
		}
		projDate, projection := t.Projection()
		doubling := any(trend.DoublingMonths(t.Fit.Slope))
		if t.Fit.Slope <= 0 {
			doubling = "never"
		}
		row := []any{
			t.Rank, t.Field, len(t.Dates), first, last,
			t.Fit.Slope, t.Fit.Intercept, t.Fit.RValue, t.Fit.PValue, t.Fit.StdErr,
			doubling, projDate.Format(dateLayout), projection,
		}
		if err := setRow(f, SummarySheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", "M", 16)
}

func writeRank(f *excelize.File, t model.RankTrend) error {
	sheet := RankSheet(t.Rank)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, toRow(rankHeaders)); err != nil {
		return err
	}
	observed := make(map[time.Time]float64, len(t.Dates))
	for i, d := range t.Dates {
		observed[d] = t.Observed[i]
	}
	for i, d := range t.PredDates {
		row := []any{d.Format(dateLayout), nil, t.Predicted[i]}
		if v, ok := observed[d]; ok {
			row[1] = v
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "C", 16)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toRow(headers []string) []any {
	out := make([]any, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}
