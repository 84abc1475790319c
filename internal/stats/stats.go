// Package stats contains trend reporting for the terminal.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/trend"
)

const sparkChars = " .:-=+*#%@"

const dayLayout = "2006-01-02"

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal-minVal <= 1e-12*math.Max(math.Abs(maxVal), math.Abs(minVal)) {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints one row of fit statistics per rank.
func RenderSummary(w io.Writer, report Report) error {
	if len(report.Trends) == 0 {
		_, err := fmt.Fprintln(w, "No trends found.")
		return err
	}
	if _, err := fmt.Fprintf(w, "Summary (%d snapshots)\n", len(report.Snapshots)); err != nil {
		return err
	}
	headers := []string{"Rank", "Points", "First", "Last", "Growth/yr", "Doubling", "r", "p", "Stderr", "Last value", "Projected"}
	rows := make([][]string, 0, len(report.Trends))
	for _, t := range report.Trends {
		rows = append(rows, summaryRow(t))
	}
	rightAlign := map[int]bool{1: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true, 10: true}
	if err := formatTable(w, headers, rows, rightAlign); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func summaryRow(t model.RankTrend) []string {
	first, last := "-", "-"
	lastValue := "-"
	if n := len(t.Dates); n > 0 {
		first = t.Dates[0].Format(dayLayout)
		last = t.Dates[n-1].Format(dayLayout)
		lastValue = formatValue(t.Observed[n-1])
	}
	projDate, projected := t.Projection()
	return []string{
		fmt.Sprintf("%d", t.Rank),
		fmt.Sprintf("%d", len(t.Dates)),
		first,
		last,
		fmt.Sprintf("x%.3f", trend.AnnualGrowth(t.Fit.Slope)),
		formatMonths(trend.DoublingMonths(t.Fit.Slope)),
		fmt.Sprintf("%.4f", t.Fit.RValue),
		fmt.Sprintf("%.3g", t.Fit.PValue),
		fmt.Sprintf("%.3g", t.Fit.StdErr),
		lastValue,
		fmt.Sprintf("%s @ %s", formatValue(projected), projDate.Format("2006-01")),
	}
}

// RenderCurves plots log10 observed values and the fitted trend of every rank on shared axes.
func RenderCurves(w io.Writer, report Report, totalWidth, height int, useColor bool) error {
	if len(report.Trends) == 0 {
		return nil
	}
	series := make([]Series, 0, len(report.Trends)*2)
	for i, t := range report.Trends {
		name := fmt.Sprintf("rank %d", t.Rank)
		series = append(series,
			Series{
				Name:    name,
				X:       trend.Seconds(t.Dates),
				Y:       log10s(t.Observed),
				Style:   styleSolid,
				Color:   i,
				Scatter: true,
			},
			Series{
				Name:  name + " trend",
				X:     trend.Seconds(t.PredDates),
				Y:     log10s(t.Predicted),
				Style: styleDashed,
				Color: i,
			},
		)
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Performance Trends (log10)", series, width, height, YearAxis, Log10Axis, useColor)
}

// RenderHistory prints stored fits grouped by rank with a sparkline of the slope over runs.
func RenderHistory(w io.Writer, fits []model.FitRecord) error {
	if len(fits) == 0 {
		_, err := fmt.Fprintln(w, "No history found.")
		return err
	}
	byRank := make(map[int][]model.FitRecord)
	for _, f := range fits {
		byRank[f.Rank] = append(byRank[f.Rank], f)
	}
	ranks := make([]int, 0, len(byRank))
	for rank := range byRank {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)

	if _, err := fmt.Fprintln(w, "History"); err != nil {
		return err
	}
	headers := []string{"Rank", "Runs", "Latest run", "Points", "Doubling", "r", "Projected", "Slope trend"}
	rows := make([][]string, 0, len(ranks))
	for _, rank := range ranks {
		recs := byRank[rank]
		latest := recs[len(recs)-1]
		slopes := make([]float64, len(recs))
		for i, rec := range recs {
			slopes[i] = rec.Slope
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", rank),
			fmt.Sprintf("%d", len(recs)),
			latest.CreatedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", latest.Points),
			formatMonths(trend.DoublingMonths(latest.Slope)),
			fmt.Sprintf("%.4f", latest.RValue),
			fmt.Sprintf("%s @ %s", formatValue(latest.Projection), latest.ProjDate.Format("2006-01")),
			Sparkline(slopes),
		})
	}
	rightAlign := map[int]bool{1: true, 3: true, 4: true, 5: true, 6: true}
	if err := formatTable(w, headers, rows, rightAlign); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func log10s(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Log10(v)
	}
	return out
}

func formatMonths(months float64) string {
	if math.IsInf(months, 1) || math.IsNaN(months) {
		return "never"
	}
	return fmt.Sprintf("%.1f mo", months)
}

func formatValue(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e15:
		return fmt.Sprintf("%.2fP", v/1e15)
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fG", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fk", v/1e3)
	default:
		return fmt.Sprintf("%.4g", v)
	}
}
