package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/hpctrend/internal/config"
	"github.com/verte-zerg/hpctrend/internal/fetch"
	"github.com/verte-zerg/hpctrend/internal/generator"
	"github.com/verte-zerg/hpctrend/internal/logger"
	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/snapshot"
	"github.com/verte-zerg/hpctrend/internal/stats"
	"github.com/verte-zerg/hpctrend/internal/store"
	"github.com/verte-zerg/hpctrend/internal/trendui"
)

const (
	firstListYear    = 1993
	defaultViewRuns  = 20
	defaultGenFrom   = 2015
	defaultGenSeed   = 0
	defaultGenSites  = 500
	defaultGenNoise  = 0.05
	defaultGenGrowth = 1.6
	defaultGenTop    = 33.86e6
)

var (
	historyRank int
	historyLast int

	fetchFrom int
	fetchTo   int

	genFrom   int
	genTo     int
	genSites  int
	genSeed   int64
	genNoise  float64
	genGrowth float64
	genTop    float64
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Browse fitted trends in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runViewCmd,
	}
}

func runViewCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	var st *store.Store
	if s.Run.History {
		st, err = store.Open(config.DefaultDBPath())
		if err != nil {
			logger.Named("view").Warn().Err(err).Msg("history unavailable")
			st = nil
		} else {
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logger.Named("view").Warn().Err(cerr).Msg("failed to close db")
				}
			}()
		}
	}

	m := trendui.NewModel(s.Run, stats.BuildReport, st, model.HistoryConfig{Last: defaultViewRuns})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run trend viewer: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show fits recorded by previous runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyRank, "rank", 0, "limit to one rank")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to the last N runs")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	if historyRank < 0 || historyLast < 0 {
		return fmt.Errorf("--rank and --last must be >= 0")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Named("history").Warn().Err(cerr).Msg("failed to close db")
		}
	}()

	fits, err := st.ListFits(cmd.Context(), model.HistoryConfig{Rank: historyRank, Last: historyLast})
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if err := stats.RenderHistory(cmd.OutOrStdout(), fits); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download published list snapshots into the snapshot directory",
		Args:  cobra.NoArgs,
		RunE:  runFetchCmd,
	}
	cmd.Flags().IntVar(&fetchFrom, "from", firstListYear, "first year to download")
	cmd.Flags().IntVar(&fetchTo, "to", time.Now().Year(), "last year to download")
	return cmd
}

func runFetchCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := logger.Named("fetch")
	results, err := fetch.Download(cmd.Context(), fetch.Options{
		Dir:         s.Run.DataDir,
		URLTemplate: s.URLTemplate,
		Months:      s.FetchMonths,
		From:        fetchFrom,
		To:          fetchTo,
		Until:       time.Now(),
	})
	downloaded := 0
	for _, res := range results {
		if !res.Cached {
			downloaded++
			log.Info().Str("path", res.Path).Msg("downloaded")
		}
	}
	if err != nil {
		return fmt.Errorf("failed to download snapshots: %w", err)
	}
	log.Info().Int("downloaded", downloaded).Int("cached", len(results)-downloaded).Msg("snapshots ready")
	return nil
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic list snapshots into the snapshot directory",
		Args:  cobra.NoArgs,
		RunE:  runGenerateCmd,
	}
	cmd.Flags().IntVar(&genFrom, "from", defaultGenFrom, "first year")
	cmd.Flags().IntVar(&genTo, "to", time.Now().Year()-1, "last year")
	cmd.Flags().IntVar(&genSites, "sites", defaultGenSites, "sites per list")
	cmd.Flags().Int64Var(&genSeed, "seed", defaultGenSeed, "random seed (0 uses the current time)")
	cmd.Flags().Float64Var(&genNoise, "noise", defaultGenNoise, "log-normal noise per value")
	cmd.Flags().Float64Var(&genGrowth, "growth", defaultGenGrowth, "yearly growth factor")
	cmd.Flags().Float64Var(&genTop, "top", defaultGenTop, "rank 1 value of the first list")
	return cmd
}

func runGenerateCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	opts := generator.DefaultOptions()
	opts.Dir = s.Run.DataDir
	opts.From = genFrom
	opts.To = genTo
	opts.Months = s.FetchMonths
	opts.Sites = genSites
	opts.Noise = genNoise
	opts.Growth = genGrowth
	opts.Top = genTop

	gen := generator.New()
	if genSeed != 0 {
		gen = generator.NewSeeded(genSeed)
	}
	paths, err := gen.Generate(opts)
	if err != nil {
		return fmt.Errorf("failed to generate snapshots: %w", err)
	}
	logger.Named("generate").Info().Int("files", len(paths)).Str("dir", opts.Dir).Msg("snapshots written")
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# hpctrend configuration
# Uncomment a value to enable it. Environment (HPCTREND_*) and CLI flags override config values.

[input]
# dir = %q                    # Snapshot directory
# date-pattern = %q           # Filename regexp; the first group holds the date
# date-layout = %q            # Go time layout of the captured date
# namespace = %q

[trend]
# field = %q                  # List field to fit
# ranks = [1, 10, 50, 500]
# step-months = %d
# steps = %d

[output]
# dir = %q
# name-layout = %q            # Go time layout of the chart file name
# dpi = %d
# width = %.1f                # Inches
# height = %.1f               # Inches
# open = true                 # Open the chart in a viewer
# xlsx = ""                   # Also write a workbook

[history]
# enabled = true

[log]
# level = %q
# format = %q                 # console or json

[fetch]
# url-template = %q
# months = [6, 11]
`,
		config.DefaultDataDir,
		snapshot.DefaultDatePattern,
		snapshot.DefaultDateLayout,
		model.TOP500Namespace,
		config.DefaultField,
		config.DefaultStepMonths,
		config.DefaultSteps,
		config.DefaultOutputDir,
		config.DefaultNameLayout,
		config.DefaultDPI,
		config.DefaultWidth,
		config.DefaultHeight,
		config.DefaultLogLevel,
		config.DefaultLogFormat,
		config.DefaultURLTemplate,
	)
}
