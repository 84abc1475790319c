package trendui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/stats"
)

func sampleReport(cfg model.Config) stats.Report {
	d := func(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }
	trends := make([]model.RankTrend, 0, len(cfg.Ranks))
	for _, rank := range cfg.Ranks {
		trends = append(trends, model.RankTrend{
			Rank:      rank,
			Field:     cfg.Field,
			Dates:     []time.Time{d(2020, time.June), d(2020, time.December)},
			Observed:  []float64{1000, 2000},
			PredDates: []time.Time{d(2020, time.June), d(2020, time.December), d(2021, time.June)},
			Predicted: []float64{1000, 2000, 4000},
			Fit:       model.Fit{Slope: 4.4e-8, RValue: 1, N: 2},
		})
	}
	return stats.Report{
		Config:    cfg,
		Snapshots: []model.Snapshot{{Date: d(2020, time.June)}, {Date: d(2020, time.December)}},
		Trends:    trends,
	}
}

func newTestModel(t *testing.T, build BuildFunc) *Model {
	t.Helper()
	cfg := model.Config{DataDir: "data", Field: "r-max", Ranks: []int{1, 500}, Steps: 1, StepMonths: 6}
	m := NewModel(cfg, build, nil, model.HistoryConfig{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func TestViewShowsTabsAndOverview(t *testing.T) {
	m := newTestModel(t, func(cfg model.Config) (stats.Report, error) {
		return sampleReport(cfg), nil
	})
	view := m.View()
	for _, want := range []string{"Overview", "Curves", "History", "Snapshots", "Rank 1 doubling"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
	if got := len(strings.Split(view, "\n")); got != 40 {
		t.Fatalf("expected view to fill 40 lines, got %d", got)
	}
}

func TestTabNavigationWraps(t *testing.T) {
	m := newTestModel(t, func(cfg model.Config) (stats.Report, error) {
		return sampleReport(cfg), nil
	})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.activeTab != tabHistory {
		t.Fatalf("expected history tab, got %d", m.activeTab)
	}
	if !strings.Contains(m.View(), "History is disabled.") {
		t.Fatalf("expected disabled history message")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabCurves {
		t.Fatalf("expected curves tab, got %d", m.activeTab)
	}
	if !strings.Contains(m.View(), "Legend:") {
		t.Fatalf("expected plot legend on curves tab")
	}
}

func TestBuildErrorShown(t *testing.T) {
	m := newTestModel(t, func(cfg model.Config) (stats.Report, error) {
		return stats.Report{}, errors.New("no snapshots")
	})
	view := m.View()
	if !strings.Contains(view, "Failed to build trends.") || !strings.Contains(view, "no snapshots") {
		t.Fatalf("expected build error in view")
	}
}

func TestApplyFilterRebuilds(t *testing.T) {
	var got model.Config
	m := newTestModel(t, func(cfg model.Config) (stats.Report, error) {
		got = cfg
		return sampleReport(cfg), nil
	})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.filterMode {
		t.Fatalf("expected settings mode")
	}
	m.filterInputs[0].SetValue("10, 50")
	m.filterInputs[2].SetValue("4")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filterMode {
		t.Fatalf("expected settings to be applied, error %q", m.filterError)
	}
	if len(got.Ranks) != 2 || got.Ranks[0] != 10 || got.Ranks[1] != 50 || got.Steps != 4 {
		t.Fatalf("unexpected rebuild config %+v", got)
	}
}

func TestApplyFilterRejectsBadRanks(t *testing.T) {
	m := newTestModel(t, func(cfg model.Config) (stats.Report, error) {
		return sampleReport(cfg), nil
	})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	m.filterInputs[0].SetValue("1,1")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.filterMode || !strings.Contains(m.filterError, "duplicate") {
		t.Fatalf("expected duplicate rank error, got %q", m.filterError)
	}
}

func TestParseRanks(t *testing.T) {
	ranks, err := parseRanks(" 1,10 50 ")
	if err != nil {
		t.Fatalf("parseRanks: %v", err)
	}
	if formatRanks(ranks) != "1,10,50" {
		t.Fatalf("unexpected ranks %v", ranks)
	}
	for _, bad := range []string{"", "0", "x"} {
		if _, err := parseRanks(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFitLines(t *testing.T) {
	out := fitLines("a\nb\nc", 3, 2)
	if out != "a  \nb  " {
		t.Fatalf("unexpected fitLines output %q", out)
	}
}
