package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/hpctrend/internal/model"
)

func TestPlotSeries(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Test Plot", []Series{
		{Name: "A", X: []float64{0, 1, 2, 3, 4}, Y: []float64{1, 2, 3, 2, 1}},
		{Name: "B", X: []float64{0, 1, 2, 3, 4}, Y: []float64{1, 1, 2, 3, 4}, Style: styleDashed},
	}, 10, 4, nil, nil)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Test Plot") {
		t.Fatalf("expected title in output")
	}
	if !strings.Contains(out, "Legend:") || !strings.Contains(out, "B (dashed)") {
		t.Fatalf("expected legend in output, got %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	expectedMin := 1 + 4 + 1 + 1
	if len(lines) < expectedMin {
		t.Fatalf("expected at least %d lines of output, got %d", expectedMin, len(lines))
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes for buffer output")
	}
}

func TestPlotSeriesSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "Empty", []Series{{Name: "A"}}, 10, 4, nil, nil); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestPlotSeriesWithColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	err := PlotSeriesWithColor(&buf, "", []Series{
		{Name: "A", X: []float64{0, 1}, Y: []float64{0, 1}, Color: 1},
	}, 10, 4, nil, nil, true)
	if err != nil {
		t.Fatalf("PlotSeriesWithColor failed: %v", err)
	}
	if !strings.Contains(buf.String(), colorPalette[1].code) {
		t.Fatalf("expected green color code in output")
	}
}

func TestPlotWidthFor(t *testing.T) {
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width, got %d", got)
	}
	if got := PlotWidthFor(100); got != 100-axisLabelWidth-3 {
		t.Fatalf("unexpected width %d", got)
	}
}

func TestAxisLabels(t *testing.T) {
	if got := Log10Axis(3); got != "1.00k" {
		t.Fatalf("unexpected log label %q", got)
	}
	sec := float64(time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC).Unix())
	if got := YearAxis(sec); got != "2020-06" {
		t.Fatalf("unexpected date label %q", got)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil); got != "" {
		t.Fatalf("expected empty sparkline, got %q", got)
	}
	if got := Sparkline([]float64{0, 9}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{2e-8, 2e-8, 2e-8}); len(got) != 3 || got[0] != sparkChars[len(sparkChars)/2] {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
}

func sampleReport() Report {
	d := func(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }
	return Report{
		Snapshots: []model.Snapshot{{Date: d(2020, time.June)}, {Date: d(2020, time.December)}},
		Trends: []model.RankTrend{{
			Rank:      1,
			Field:     "r-max",
			Dates:     []time.Time{d(2020, time.June), d(2020, time.December)},
			Observed:  []float64{1000, 2000},
			PredDates: []time.Time{d(2020, time.June), d(2020, time.December), d(2021, time.June)},
			Predicted: []float64{1000, 2000, 4000},
			Fit:       model.Fit{Slope: 4.4e-8, RValue: 1, N: 2},
		}},
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, sampleReport()); err != nil {
		t.Fatalf("RenderSummary failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Summary (2 snapshots)", "Doubling", "2020-06-01", "2020-12-01", "2.00k", "4.00k @ 2021-06"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary, got %q", want, out)
		}
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, Report{}); err != nil {
		t.Fatalf("RenderSummary failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No trends found.") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRenderCurves(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderCurves(&buf, sampleReport(), 80, 6, false); err != nil {
		t.Fatalf("RenderCurves failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "rank 1 (points)") || !strings.Contains(out, "rank 1 trend (dashed)") {
		t.Fatalf("expected legend entries, got %q", out)
	}
	if !strings.Contains(out, "2020-06") || !strings.Contains(out, "2021-06") {
		t.Fatalf("expected date axis labels, got %q", out)
	}
}

func TestRenderHistory(t *testing.T) {
	base := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	fits := []model.FitRecord{
		{RunID: "a", CreatedAt: base, Rank: 500, Points: 10, Slope: 1e-8, ProjDate: base},
		{RunID: "a", CreatedAt: base, Rank: 1, Points: 10, Slope: 2e-8, ProjDate: base},
		{RunID: "b", CreatedAt: base.Add(time.Hour), Rank: 1, Points: 11, Slope: 3e-8, ProjDate: base},
	}
	var buf bytes.Buffer
	if err := RenderHistory(&buf, fits); err != nil {
		t.Fatalf("RenderHistory failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected title, header and 2 rows, got %q", lines)
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[2]), "1") || !strings.HasPrefix(strings.TrimSpace(lines[3]), "500") {
		t.Fatalf("expected ranks sorted ascending, got %q", lines[2:])
	}
	if !strings.Contains(lines[2], " @") {
		t.Fatalf("expected slope sparkline for rank 1, got %q", lines[2])
	}
}
