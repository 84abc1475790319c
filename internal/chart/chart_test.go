package chart

import (
	"bytes"
	"errors"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/verte-zerg/hpctrend/internal/model"
)

func sampleTrends() []model.RankTrend {
	d := func(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }
	mk := func(rank int, scale float64) model.RankTrend {
		return model.RankTrend{
			Rank:      rank,
			Field:     "r-max",
			Dates:     []time.Time{d(2020, time.June), d(2020, time.November), d(2021, time.June)},
			Observed:  []float64{1000 * scale, 2000 * scale, 4000 * scale},
			PredDates: []time.Time{d(2020, time.June), d(2020, time.November), d(2021, time.June), d(2021, time.December)},
			Predicted: []float64{1000 * scale, 1900 * scale, 4100 * scale, 8000 * scale},
		}
	}
	return []model.RankTrend{mk(1, 100), mk(10, 10), mk(50, 3), mk(500, 1), mk(1000, 0.5)}
}

func smallPNG() PNG {
	return PNG{Width: 4 * vg.Inch, Height: 3 * vg.Inch, DPI: 50, Title: "test"}
}

func TestRenderWritesPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, smallPNG().Render(&buf, sampleTrends()))

	cfg, err := png.DecodeConfig(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestRenderNoTrends(t *testing.T) {
	err := smallPNG().Render(io.Discard, nil)
	assert.True(t, errors.Is(err, ErrNoTrends))
}

func TestNewPNGFromConfig(t *testing.T) {
	p := NewPNG(model.Config{Field: "r-max", DPI: 150, WidthInches: 34, HeightInches: 20})
	assert.Equal(t, 34*vg.Inch, p.Width)
	assert.Equal(t, 20*vg.Inch, p.Height)
	assert.Equal(t, 150, p.DPI)
	assert.Contains(t, p.Title, "r-max")
}

func TestSaveFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "120000.png")
	require.NoError(t, SaveFile(smallPNG(), path, sampleTrends()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	_, err = png.DecodeConfig(f)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveFileRenderError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.png")
	err := SaveFile(smallPNG(), path, nil)
	require.ErrorIs(t, err, ErrNoTrends)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
