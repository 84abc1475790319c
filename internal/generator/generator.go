// Package generator builds synthetic ranking list snapshots.
package generator

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/verte-zerg/hpctrend/internal/model"
)

// Options describes a synthetic list series.
type Options struct {
	Dir    string
	From   int
	To     int
	Months []int
	Sites  int
	// Top is the rank 1 value in the first list.
	Top float64
	// Growth is the yearly growth factor of every rank.
	Growth float64
	// Tail is the ratio of the last rank to rank 1.
	Tail float64
	// Noise is the standard deviation of the multiplicative log-normal noise.
	Noise float64
}

// DefaultOptions resembles the published lists of recent years.
func DefaultOptions() Options {
	return Options{
		Dir:    "data",
		From:   2015,
		To:     2024,
		Months: []int{6, 11},
		Sites:  500,
		Top:    33.86e6,
		Growth: 1.6,
		Tail:   0.007,
		Noise:  0.05,
	}
}

// Generator produces randomized list snapshots.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Values returns the field values of every site at date, rank 1 first.
// Values never increase with rank.
func (g *Generator) Values(opts Options, start, date time.Time) []float64 {
	years := date.Sub(start).Hours() / (24 * 365.2425)
	top := opts.Top * math.Pow(opts.Growth, years)
	alpha := 0.0
	if opts.Sites > 1 && opts.Tail > 0 {
		alpha = -math.Log(opts.Tail) / math.Log(float64(opts.Sites))
	}
	values := make([]float64, opts.Sites)
	for i := range values {
		v := top * math.Pow(float64(i+1), -alpha)
		if opts.Noise > 0 {
			v *= math.Exp(opts.Noise * g.rnd.NormFloat64())
		}
		values[i] = v
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	return values
}

// Write renders one list in the ranking list XML format.
func Write(w io.Writer, values []float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(bw, "<top500:list xmlns:top500=%q>\n", model.TOP500Namespace)
	for i, v := range values {
		rank := i + 1
		fmt.Fprintf(bw, "  <top500:site>\n")
		fmt.Fprintf(bw, "    <top500:rank>%d</top500:rank>\n", rank)
		fmt.Fprintf(bw, "    <top500:system-name>synthetic-%03d</top500:system-name>\n", rank)
		fmt.Fprintf(bw, "    <top500:r-max>%.2f</top500:r-max>\n", v)
		fmt.Fprintf(bw, "    <top500:r-peak>%.2f</top500:r-peak>\n", v*1.4)
		fmt.Fprintf(bw, "  </top500:site>\n")
	}
	fmt.Fprintf(bw, "</top500:list>\n")
	return bw.Flush()
}

// FileName returns the snapshot name for date, following the input convention.
func FileName(date time.Time) string {
	return "TOP500_" + date.Format("200601") + ".xml"
}

// Generate writes one list per publication month between opts.From and opts.To.
// It returns the written paths, oldest first.
func (g *Generator) Generate(opts Options) ([]string, error) {
	if opts.Sites <= 0 {
		return nil, fmt.Errorf("sites must be greater than 0")
	}
	if opts.Top <= 0 || opts.Growth <= 0 {
		return nil, fmt.Errorf("top value and growth must be positive")
	}
	if opts.From > opts.To {
		return nil, fmt.Errorf("invalid year range %d-%d", opts.From, opts.To)
	}
	if len(opts.Months) == 0 {
		return nil, fmt.Errorf("at least one month is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	months := append([]int(nil), opts.Months...)
	sort.Ints(months)
	start := time.Date(opts.From, time.Month(months[0]), 1, 0, 0, 0, 0, time.UTC)

	var paths []string
	for year := opts.From; year <= opts.To; year++ {
		for _, m := range months {
			if m < 1 || m > 12 {
				return paths, fmt.Errorf("invalid month %d", m)
			}
			date := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
			path := filepath.Join(opts.Dir, FileName(date))
			if err := writeFile(path, g.Values(opts, start, date)); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func writeFile(path string, values []float64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".generated-*.xml")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if err := Write(tmpFile, values); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}
