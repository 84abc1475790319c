package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series is a named set of (x, y) points for terminal plotting.
// Points are drawn as isolated dots when Scatter is set, otherwise joined.
type Series struct {
	Name    string
	X       []float64
	Y       []float64
	Style   int
	Color   int
	Scatter bool
}

// Axis labels an axis position.
type Axis func(v float64) string

type bounds struct {
	minX, maxX float64
	minY, maxY float64
}

type lineStyle struct {
	name   string
	period int
	on     int
}

type ansiColor struct {
	name string
	code string
}

const (
	defaultPlotHeight   = 12
	minPlotWidth        = 10
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
	axisLabelWidth      = 9
)

const (
	styleSolid = iota
	styleDashed
)

var lineStyles = []lineStyle{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
	{name: "dashdot", period: 8, on: 3},
}

var colorPalette = []ansiColor{
	{name: "red", code: "\x1b[31m"},
	{name: "green", code: "\x1b[32m"},
	{name: "yellow", code: "\x1b[33m"},
	{name: "magenta", code: "\x1b[35m"},
	{name: "cyan", code: "\x1b[36m"},
	{name: "blue", code: "\x1b[34m"},
}

// PlotSeries renders a multi-line text plot with shared axes for all series.
func PlotSeries(w io.Writer, title string, series []Series, width, height int, xLabel, yLabel Axis) error {
	return plotSeries(w, title, series, width, height, xLabel, yLabel, false)
}

// PlotSeriesWithColor renders a multi-line text plot with optional forced color output.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, xLabel, yLabel Axis, forceColor bool) error {
	return plotSeries(w, title, series, width, height, xLabel, yLabel, forceColor)
}

func plotSeries(w io.Writer, title string, series []Series, width, height int, xLabel, yLabel Axis, forceColor bool) error {
	series = filterSeries(series)
	if len(series) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = autoPlotWidth()
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}
	if xLabel == nil {
		xLabel = numberAxis
	}
	if yLabel == nil {
		yLabel = numberAxis
	}

	b := seriesBounds(series)
	dotsW, dotsH := width*2, height*4

	seriesCells := make([][][]uint8, 0, len(series))
	for range series {
		seriesCells = append(seriesCells, makeCells(height, width))
	}
	for si, s := range series {
		style := lineStyles[s.Style%len(lineStyles)]
		prevX, prevY := -1, -1
		for i := range s.X {
			px := scaleToDots(s.X[i], b.minX, b.maxX, dotsW)
			py := dotsH - 1 - scaleToDots(s.Y[i], b.minY, b.maxY, dotsH)
			if s.Scatter {
				setBrailleDot(seriesCells[si], px, py)
				continue
			}
			if prevX >= 0 {
				drawLine(prevX, prevY, px, py, func(dx, dy int) {
					if style.shouldPlot(dx) {
						setBrailleDot(seriesCells[si], dx, dy)
					}
				})
			} else {
				setBrailleDot(seriesCells[si], px, py)
			}
			prevX, prevY = px, py
		}
	}

	useColor := shouldUseColor(w, forceColor)
	axisLabels := makeAxisLabels(height, b.minY, b.maxY, yLabel)

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(padLeft(axisLabels[y], axisLabelWidth))
		row.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			mask, colorIdx := composeCell(seriesCells, series, x, y)
			ch := brailleFromMask(mask)
			if useColor && colorIdx >= 0 {
				row.WriteString(colorPalette[colorIdx%len(colorPalette)].code)
				row.WriteRune(ch)
				row.WriteString(colorReset)
			} else {
				row.WriteRune(ch)
			}
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, renderXAxis(b, width, xLabel)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, renderLegend(series, useColor)); err != nil {
		return err
	}
	return nil
}

func filterSeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		n := len(s.X)
		if len(s.Y) < n {
			n = len(s.Y)
		}
		if n == 0 {
			continue
		}
		s.X, s.Y = s.X[:n], s.Y[:n]
		out = append(out, s)
	}
	return out
}

func seriesBounds(series []Series) bounds {
	b := bounds{
		minX: math.Inf(1), maxX: math.Inf(-1),
		minY: math.Inf(1), maxY: math.Inf(-1),
	}
	for _, s := range series {
		for i := range s.X {
			b.minX = math.Min(b.minX, s.X[i])
			b.maxX = math.Max(b.maxX, s.X[i])
			b.minY = math.Min(b.minY, s.Y[i])
			b.maxY = math.Max(b.maxY, s.Y[i])
		}
	}
	if math.Abs(b.maxX-b.minX) < 1e-9 {
		b.minX--
		b.maxX++
	}
	if math.Abs(b.maxY-b.minY) < 1e-9 {
		b.minY--
		b.maxY++
	}
	return b
}

func scaleToDots(v, lo, hi float64, dots int) int {
	if dots <= 1 {
		return 0
	}
	pos := (v - lo) / (hi - lo)
	d := int(math.Round(pos * float64(dots-1)))
	if d < 0 {
		d = 0
	}
	if d >= dots {
		d = dots - 1
	}
	return d
}

func autoPlotWidth() int {
	return PlotWidthFor(terminalWidth())
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	axisWidth := axisLabelWidth + runewidth.StringWidth(axisSeparator)
	plotWidth := totalWidth - axisWidth
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(height int, minY, maxY float64, label Axis) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = label(maxY)
	if height > 2 {
		labels[height/2] = label(minY + (maxY-minY)*float64(height-1-height/2)/float64(height-1))
	}
	if height > 1 {
		labels[height-1] = label(minY)
	}
	return labels
}

func renderXAxis(b bounds, width int, label Axis) string {
	indent := strings.Repeat(" ", axisLabelWidth+runewidth.StringWidth(axisSeparator))
	left := label(b.minX)
	right := label(b.maxX)
	gap := width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if gap < 1 {
		return indent + left
	}
	return indent + left + strings.Repeat(" ", gap) + right
}

func padLeft(s string, width int) string {
	s = runewidth.Truncate(s, width, "")
	return strings.Repeat(" ", width-runewidth.StringWidth(s)) + s
}

func numberAxis(v float64) string {
	return fmt.Sprintf("%.3g", v)
}

// Log10Axis labels a log10 axis with the underlying value.
func Log10Axis(v float64) string {
	return formatValue(math.Pow(10, v))
}

// YearAxis labels an epoch-seconds axis with the calendar month.
func YearAxis(v float64) string {
	return time.Unix(int64(v), 0).UTC().Format("2006-01")
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func composeCell(seriesCells [][][]uint8, series []Series, x, y int) (uint8, int) {
	var mask uint8
	colorIdx := -1
	for i, cells := range seriesCells {
		if y < 0 || y >= len(cells) {
			continue
		}
		if x < 0 || x >= len(cells[y]) {
			continue
		}
		cellMask := cells[y][x]
		if cellMask == 0 {
			continue
		}
		if colorIdx == -1 {
			colorIdx = series[i].Color
		}
		mask |= cellMask
	}
	return mask, colorIdx
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%ls.period < ls.on
}

func renderLegend(series []Series, useColor bool) string {
	parts := make([]string, 0, len(series))
	marker := brailleFromMask(0x01)
	for _, s := range series {
		styleName := lineStyles[s.Style%len(lineStyles)].name
		if s.Scatter {
			styleName = "points"
		}
		label := fmt.Sprintf("%c %s (%s)", marker, s.Name, styleName)
		if useColor {
			color := colorPalette[s.Color%len(colorPalette)].code
			label = color + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) {
		return
	}
	if cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
