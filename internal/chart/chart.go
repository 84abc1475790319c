// Package chart renders fitted trends as raster images.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/trend"
)

// Renderer draws a set of trends to w.
type Renderer interface {
	Render(w io.Writer, trends []model.RankTrend) error
}

// ErrNoTrends is returned when there is nothing to draw.
var ErrNoTrends = errors.New("no trends to render")

var palette = []color.RGBA{
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}, // red
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}, // green
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff}, // brown
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff}, // purple
}

// PNG renders a semilog chart with gonum/plot.
type PNG struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
	Title  string
}

// NewPNG sizes the chart from a run configuration.
func NewPNG(cfg model.Config) PNG {
	return PNG{
		Width:  vg.Length(cfg.WidthInches) * vg.Inch,
		Height: vg.Length(cfg.HeightInches) * vg.Inch,
		DPI:    cfg.DPI,
		Title:  fmt.Sprintf("TOP500 %s trends", cfg.Field),
	}
}

// Render draws observed points and dashed trend lines for every rank.
func (p PNG) Render(w io.Writer, trends []model.RankTrend) error {
	if len(trends) == 0 {
		return ErrNoTrends
	}
	plt, err := p.build(trends)
	if err != nil {
		return err
	}
	canvas := vgimg.NewWith(vgimg.UseWH(p.Width, p.Height), vgimg.UseDPI(p.DPI))
	plt.Draw(draw.New(canvas))
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func (p PNG) build(trends []model.RankTrend) (*plot.Plot, error) {
	plt := plot.New()
	plt.Title.Text = p.Title
	plt.X.Label.Text = "Date"
	plt.Y.Label.Text = "Performance (GFlops/sec)"
	plt.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	plt.Y.Scale = plot.LogScale{}
	plt.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	plt.Legend.Top = true
	plt.Legend.Left = true
	plt.Add(plotter.NewGrid())

	for i, t := range trends {
		c := palette[i%len(palette)]

		points, err := plotter.NewScatter(xys(trend.Seconds(t.Dates), t.Observed))
		if err != nil {
			return nil, fmt.Errorf("rank %d points: %w", t.Rank, err)
		}
		points.GlyphStyle.Color = c
		points.GlyphStyle.Shape = draw.CircleGlyph{}
		points.GlyphStyle.Radius = vg.Points(3)

		line, err := plotter.NewLine(xys(trend.Seconds(t.PredDates), t.Predicted))
		if err != nil {
			return nil, fmt.Errorf("rank %d trend: %w", t.Rank, err)
		}
		line.LineStyle.Color = c
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

		plt.Add(points, line)
		plt.Legend.Add(fmt.Sprintf("rank = %d", t.Rank), points, line)
	}
	return plt, nil
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts
}

// SaveFile renders trends into path. The file appears only once fully written.
func SaveFile(r Renderer, path string, trends []model.RankTrend) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".hpctrend-*.png")
	if err != nil {
		return fmt.Errorf("failed to create temp image: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := r.Render(tmpFile, trends); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp image: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move image into place: %w", err)
	}
	return nil
}
