package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/hpctrend/internal/model"
)

type site struct {
	rank int
	rmax string
}

func listXML(sites ...site) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<top500:list xmlns:top500="` + model.TOP500Namespace + `">` + "\n")
	for _, s := range sites {
		fmt.Fprintf(&b, "  <top500:site>\n    <top500:rank>%d</top500:rank>\n", s.rank)
		fmt.Fprintf(&b, "    <top500:system-name>sys-%d</top500:system-name>\n", s.rank)
		fmt.Fprintf(&b, "    <top500:r-max>%s</top500:r-max>\n  </top500:site>\n", s.rmax)
	}
	b.WriteString("</top500:list>\n")
	return b.String()
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func defaultOptions(dir string) Options {
	return Options{
		Dir:         dir,
		DatePattern: DefaultDatePattern,
		DateLayout:  DefaultDateLayout,
		Namespace:   model.TOP500Namespace,
	}
}

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestParseCaptureDate(t *testing.T) {
	pattern, err := DatePattern(DefaultDatePattern)
	require.NoError(t, err)

	cases := map[string]time.Time{
		"TOP500_202006.xml":        month(2020, time.June),
		"prefix_199311_suffix.xml": month(1993, time.November),
		"list_201811":              month(2018, time.November),
	}
	for name, want := range cases {
		got, err := ParseCaptureDate(name, pattern, DefaultDateLayout)
		require.NoError(t, err, name)
		assert.True(t, want.Equal(got), "%s: want %s got %s", name, want, got)
	}

	for _, name := range []string{"nodate.xml", "TOP500_2020.xml", "x_202013.xml", "_abcdef.xml", "TOP500_20200612_x.xml", "TOP500_2020061.xml"} {
		_, err := ParseCaptureDate(name, pattern, DefaultDateLayout)
		assert.ErrorIs(t, err, ErrBadFilename, name)
	}
}

func TestDatePatternRequiresGroup(t *testing.T) {
	_, err := DatePattern(`^\d+`)
	assert.Error(t, err)
	_, err = DatePattern(`(`)
	assert.Error(t, err)
}

func TestLoadOrdersByDate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TOP500_202101.xml", listXML(site{1, "4000"}))
	writeFile(t, dir, "TOP500_202001.xml", listXML(site{1, "1000"}))
	writeFile(t, dir, "TOP500_202007.xml", listXML(site{1, "2000"}))
	writeFile(t, dir, ".DS_Store", "junk")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

	coll, err := Load(defaultOptions(dir))
	require.NoError(t, err)
	require.Equal(t, 3, coll.Len())

	want := []time.Time{month(2020, time.January), month(2020, time.July), month(2021, time.January)}
	assert.Equal(t, want, coll.Dates())
	assert.Equal(t, filepath.Join(dir, "TOP500_202001.xml"), coll.Snapshots()[0].Path)
}

func TestLoadFailsFast(t *testing.T) {
	t.Run("bad filename", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "TOP500_202001.xml", listXML(site{1, "1"}))
		writeFile(t, dir, "notes.xml", listXML(site{1, "1"}))
		_, err := Load(defaultOptions(dir))
		assert.ErrorIs(t, err, ErrBadFilename)
	})
	t.Run("invalid xml", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "TOP500_202001.xml", "<top500:list><unclosed>")
		_, err := Load(defaultOptions(dir))
		assert.Error(t, err)
	})
	t.Run("duplicate month", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "TOP500_202001.xml", listXML(site{1, "1"}))
		writeFile(t, dir, "GREEN500_202001.xml", listXML(site{1, "2"}))
		_, err := Load(defaultOptions(dir))
		assert.ErrorIs(t, err, ErrDuplicateSnapshot)
	})
	t.Run("missing directory", func(t *testing.T) {
		_, err := Load(defaultOptions(filepath.Join(t.TempDir(), "missing")))
		assert.Error(t, err)
	})
}

func TestSeriesRankInEverySnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TOP500_202001.xml", listXML(site{1, "1000"}, site{2, "900"}))
	writeFile(t, dir, "TOP500_202007.xml", listXML(site{1, "2000"}, site{2, "1500"}))
	writeFile(t, dir, "TOP500_202101.xml", listXML(site{1, "4000"}, site{2, "3000"}))

	coll, err := Load(defaultOptions(dir))
	require.NoError(t, err)

	series, err := coll.Series(1, "r-max")
	require.NoError(t, err)
	assert.Equal(t, coll.Dates(), series.Dates)
	assert.Equal(t, []string{"1000", "2000", "4000"}, series.Values)

	values, err := series.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 2000, 4000}, values)
}

func TestSeriesSkipsSnapshotsWithoutRank(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TOP500_202001.xml", listXML(site{1, "1000"}))
	writeFile(t, dir, "TOP500_202007.xml", listXML(site{1, "2000"}, site{10, "700"}))

	coll, err := Load(defaultOptions(dir))
	require.NoError(t, err)

	series, err := coll.Series(10, "r-max")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{month(2020, time.July)}, series.Dates)
	assert.Equal(t, []string{"700"}, series.Values)

	absent, err := coll.Series(500, "r-max")
	require.NoError(t, err)
	assert.Empty(t, absent.Dates)
	assert.Empty(t, absent.Values)
	assert.Equal(t, 0, absent.Len())
}

func TestSeriesFirstDuplicateWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TOP500_202001.xml", listXML(site{1, "1000"}, site{1, "999"}))

	coll, err := Load(defaultOptions(dir))
	require.NoError(t, err)
	series, err := coll.Series(1, "r-max")
	require.NoError(t, err)
	assert.Equal(t, []string{"1000"}, series.Values)
}

func TestSeriesErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TOP500_202001.xml", listXML(site{1, "fast"}))
	coll, err := Load(defaultOptions(dir))
	require.NoError(t, err)

	_, err = coll.Series(1, "r-peak")
	assert.ErrorIs(t, err, ErrMissingElement)

	series, err := coll.Series(1, "r-max")
	require.NoError(t, err)
	_, err = series.Float64s()
	assert.Error(t, err)

	badRank := t.TempDir()
	writeFile(t, badRank, "TOP500_202001.xml",
		`<l:list xmlns:l="`+model.TOP500Namespace+`"><l:site><l:rank>first</l:rank></l:site></l:list>`)
	coll, err = Load(defaultOptions(badRank))
	require.NoError(t, err)
	_, err = coll.Series(1, "r-max")
	assert.ErrorIs(t, err, ErrBadRank)
}

func TestFindHonoursNamespace(t *testing.T) {
	doc, err := Parse(strings.NewReader(
		`<list xmlns:a="urn:other" xmlns:t="` + model.TOP500Namespace + `">` +
			`<site><a:rank>7</a:rank><t:rank>3</t:rank></site></list>`))
	require.NoError(t, err)

	record := doc.Root.Children[0]
	node := record.Find(model.TOP500Namespace, "rank")
	require.NotNil(t, node)
	assert.Equal(t, "3", node.Text)

	anyNS := record.Find("", "rank")
	require.NotNil(t, anyNS)
	assert.Equal(t, "7", anyNS.Text)
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, err := Parse(strings.NewReader(`<?xml version="1.0"?>`))
	assert.Error(t, err)
}
