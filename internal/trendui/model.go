// Package trendui provides the Bubble Tea trend viewer.
package trendui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/stats"
	"github.com/verte-zerg/hpctrend/internal/store"
	"github.com/verte-zerg/hpctrend/internal/trend"
)

const (
	tabOverview = iota
	tabCurves
	tabHistory
)

const (
	plotHeight = 16
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// BuildFunc produces a report for a configuration.
type BuildFunc func(cfg model.Config) (stats.Report, error)

// Model implements the Bubble Tea trend viewer.
type Model struct {
	cfg     model.Config
	build   BuildFunc
	store   *store.Store
	history model.HistoryConfig

	report  stats.Report
	fits    []model.FitRecord
	errMsg  string
	histErr string

	tabs      []string
	activeTab int
	viewports []viewport.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a viewer. st may be nil when history is disabled.
func NewModel(cfg model.Config, build BuildFunc, st *store.Store, history model.HistoryConfig) *Model {
	m := &Model{
		cfg:     cfg,
		build:   build,
		store:   st,
		history: history,
		tabs:    []string{"Overview", "Curves", "History"},
	}
	m.initInputs()
	m.initViewports()
	m.refreshReport()
	m.refreshHistory()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		case "r":
			m.refreshReport()
			m.refreshHistory()
			m.updateLayout()
			m.renderTabContents()
			return m, nil
		case "g", "home":
			m.viewports[m.activeTab].GotoTop()
			return m, nil
		case "G", "end":
			m.viewports[m.activeTab].GotoBottom()
			return m, nil
		default:
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Ranks: "),
		newFilterInput("Field: "),
		newFilterInput("Steps: "),
		newFilterInput("Step months: "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	if len(m.filterInputs) == 0 {
		return
	}
	m.filterInputs[0].SetValue(formatRanks(m.cfg.Ranks))
	m.filterInputs[1].SetValue(m.cfg.Field)
	m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Steps))
	m.filterInputs[3].SetValue(strconv.Itoa(m.cfg.StepMonths))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	settings := padLines(m.renderSettingsSummary(), m.width)
	return tabs + "\n" + settings
}

func (m *Model) renderSettingsSummary() string {
	summary := fmt.Sprintf("Settings: dir=%s  field=%s  ranks=%s  horizon=%dx%d months",
		m.cfg.DataDir, m.cfg.Field, formatRanks(m.cfg.Ranks), m.cfg.Steps, m.cfg.StepMonths)
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func (m *Model) renderHelp() string {
	return headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Settings: /  Reload: r  Quit: q")
}

func (m *Model) renderFilterHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: ctrl+c")
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.renderFilterHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshReport() {
	report, err := m.build(m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.report = stats.Report{}
		m.renderTabContents()
		return
	}
	m.errMsg = ""
	m.report = report
	m.renderTabContents()
}

func (m *Model) refreshHistory() {
	m.histErr = ""
	m.fits = nil
	if m.store == nil {
		return
	}
	fits, err := m.store.ListFits(context.Background(), m.history)
	if err != nil {
		m.histErr = err.Error()
		return
	}
	m.fits = fits
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	if m.errMsg != "" {
		m.viewports[tabOverview].SetContent("Failed to build trends.")
		m.viewports[tabCurves].SetContent("Failed to build trends.")
	} else {
		m.viewports[tabOverview].SetContent(renderOverview(m.report, width))
		m.viewports[tabCurves].SetContent(renderCurves(m.report, width))
	}
	m.viewports[tabHistory].SetContent(renderHistory(m.store != nil, m.fits, m.histErr))
}

func renderOverview(report stats.Report, width int) string {
	if len(report.Trends) == 0 {
		return "No trends found."
	}
	cards := renderSummaryCards(report, width)
	fits := tableMutedStyle.Render(buildFitTable(report.Trends, width).View())
	return strings.TrimRight(cards+"\n\n"+fits, "\n")
}

func renderSummaryCards(report stats.Report, width int) string {
	first, last := "-", "-"
	if n := len(report.Snapshots); n > 0 {
		first = report.Snapshots[0].Date.Format("2006-01")
		last = report.Snapshots[n-1].Date.Format("2006-01")
	}
	top := report.Trends[0]
	projDate, projected := top.Projection()
	cards := []string{
		metricCard("Snapshots", fmt.Sprintf("%d", len(report.Snapshots))),
		metricCard("First list", first),
		metricCard("Last list", last),
		metricCard(fmt.Sprintf("Rank %d doubling", top.Rank), formatMonths(trend.DoublingMonths(top.Fit.Slope))),
		metricCard(fmt.Sprintf("Rank %d at %s", top.Rank, projDate.Format("2006-01")), formatGFlops(projected)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func buildFitTable(trends []model.RankTrend, width int) table.Model {
	columns := []table.Column{
		{Title: "Rank", Width: 5},
		{Title: "Points", Width: 6},
		{Title: "Growth/yr", Width: 10},
		{Title: "Doubling", Width: 10},
		{Title: "r", Width: 7},
		{Title: "p", Width: 9},
		{Title: "Projected", Width: 12},
	}
	rows := make([]table.Row, 0, len(trends))
	for _, t := range trends {
		_, projected := t.Projection()
		rows = append(rows, table.Row{
			strconv.Itoa(t.Rank),
			strconv.Itoa(len(t.Dates)),
			fmt.Sprintf("x%.3f", trend.AnnualGrowth(t.Fit.Slope)),
			formatMonths(trend.DoublingMonths(t.Fit.Slope)),
			fmt.Sprintf("%.4f", t.Fit.RValue),
			fmt.Sprintf("%.3g", t.Fit.PValue),
			formatGFlops(projected),
		})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)
	t.SetWidth(width)
	t.SetStyles(fitTableStyles())
	return t
}

func fitTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell
	return styles
}

func renderCurves(report stats.Report, width int) string {
	if len(report.Trends) == 0 {
		return "No trends found."
	}
	var buf bytes.Buffer
	if err := stats.RenderCurves(&buf, report, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func renderHistory(enabled bool, fits []model.FitRecord, errMsg string) string {
	if !enabled {
		return "History is disabled."
	}
	if errMsg != "" {
		return fmt.Sprintf("Failed to load history: %s", errMsg)
	}
	var buf bytes.Buffer
	if err := stats.RenderHistory(&buf, fits); err != nil {
		return fmt.Sprintf("Failed to render history: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	ranks, err := parseRanks(m.filterInputs[0].Value())
	if err != nil {
		return err
	}
	field := strings.TrimSpace(m.filterInputs[1].Value())
	if field == "" {
		return fmt.Errorf("field is required")
	}
	steps, err := strconv.Atoi(strings.TrimSpace(m.filterInputs[2].Value()))
	if err != nil || steps < 0 {
		return fmt.Errorf("invalid steps (use 0 or positive integer)")
	}
	stepMonths, err := strconv.Atoi(strings.TrimSpace(m.filterInputs[3].Value()))
	if err != nil || stepMonths < 1 {
		return fmt.Errorf("invalid step months (use integer >= 1)")
	}
	m.cfg.Ranks = ranks
	m.cfg.Field = field
	m.cfg.Steps = steps
	m.cfg.StepMonths = stepMonths
	return nil
}

func parseRanks(input string) ([]int, error) {
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(parts) == 0 {
		return nil, fmt.Errorf("at least one rank is required")
	}
	seen := make(map[int]struct{}, len(parts))
	ranks := make([]int, 0, len(parts))
	for _, part := range parts {
		rank, err := strconv.Atoi(part)
		if err != nil || rank < 1 {
			return nil, fmt.Errorf("invalid rank %q", part)
		}
		if _, ok := seen[rank]; ok {
			return nil, fmt.Errorf("duplicate rank %d", rank)
		}
		seen[rank] = struct{}{}
		ranks = append(ranks, rank)
	}
	return ranks, nil
}

func formatRanks(ranks []int) string {
	parts := make([]string, len(ranks))
	for i, r := range ranks {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ",")
}

func formatMonths(months float64) string {
	if months <= 0 || months > 1e6 {
		return "never"
	}
	return fmt.Sprintf("%.1f mo", months)
}

func formatGFlops(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.2f PF", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2f TF", v/1e3)
	default:
		return fmt.Sprintf("%.2f GF", v)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
