// Package main provides the CLI entrypoint for hpctrend.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/hpctrend/internal/chart"
	"github.com/verte-zerg/hpctrend/internal/config"
	"github.com/verte-zerg/hpctrend/internal/export"
	"github.com/verte-zerg/hpctrend/internal/logger"
	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/stats"
	"github.com/verte-zerg/hpctrend/internal/store"
)

var (
	configPath string
	logLevel   string
	dataDir    string

	runField      string
	runRanks      []int
	runSteps      int
	runStepMonths int
	runOutDir     string
	runDPI        int
	runXLSX       string
	runNoOpen     bool
	runNoHistory  bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hpctrend",
		Short:         "Fit and chart TOP500 performance trends",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runTrendCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", config.DefaultConfigPath(), "config file path")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (trace, debug, info, warn, error, off)")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "snapshot directory")

	f := rootCmd.Flags()
	f.StringVar(&runField, "field", config.DefaultField, "list field to fit")
	f.IntSliceVar(&runRanks, "ranks", config.DefaultRanks, "ranks to fit")
	f.IntVar(&runSteps, "steps", config.DefaultSteps, "number of extrapolation steps")
	f.IntVar(&runStepMonths, "step-months", config.DefaultStepMonths, "months per extrapolation step")
	f.StringVar(&runOutDir, "out", config.DefaultOutputDir, "chart output directory")
	f.IntVar(&runDPI, "dpi", config.DefaultDPI, "chart resolution")
	f.StringVar(&runXLSX, "xlsx", "", "also write a workbook to this path")
	f.BoolVar(&runNoOpen, "no-open", false, "do not open the chart in a viewer")
	f.BoolVar(&runNoHistory, "no-history", false, "do not record the run in the history database")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newGenerateCmd())

	return rootCmd
}

// loadSettings resolves defaults, config file and environment, then applies
// flags the user set explicitly.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	s, err := config.Load(configPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyString(cmd, "log-level", &s.LogLevel, logLevel)
	applyString(cmd, "data", &s.Run.DataDir, dataDir)
	applyString(cmd, "field", &s.Run.Field, runField)
	applyInts(cmd, "ranks", &s.Run.Ranks, runRanks)
	applyInt(cmd, "steps", &s.Run.Steps, runSteps)
	applyInt(cmd, "step-months", &s.Run.StepMonths, runStepMonths)
	applyString(cmd, "out", &s.Run.OutputDir, runOutDir)
	applyInt(cmd, "dpi", &s.Run.DPI, runDPI)
	applyString(cmd, "xlsx", &s.Run.XLSXPath, runXLSX)
	if changed(cmd, "no-open") && runNoOpen {
		s.Run.Open = false
	}
	if changed(cmd, "no-history") && runNoHistory {
		s.Run.History = false
	}

	if err := config.Validate(s); err != nil {
		return config.Settings{}, err
	}
	logger.Init(logger.Options{Level: s.LogLevel, Format: s.LogFormat})
	return s, nil
}

func runTrendCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	cfg := s.Run
	log := logger.Named("run")
	now := time.Now()

	report, err := stats.BuildReport(cfg)
	if err != nil {
		return err
	}
	log.Debug().Int("snapshots", len(report.Snapshots)).Int("ranks", len(report.Trends)).Msg("trends fitted")

	outPath := outputPath(cfg, now)
	if err := chart.SaveFile(chart.NewPNG(cfg), outPath, report.Trends); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	log.Info().Str("path", outPath).Msg("chart written")

	if cfg.XLSXPath != "" {
		if err := export.WriteWorkbook(cfg.XLSXPath, report.Trends); err != nil {
			return fmt.Errorf("failed to write workbook: %w", err)
		}
		log.Info().Str("path", cfg.XLSXPath).Msg("workbook written")
	}

	if err := stats.RenderSummary(cmd.OutOrStdout(), report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if cfg.History {
		if err := recordRun(cmd.Context(), cfg, report, outPath); err != nil {
			log.Warn().Err(err).Msg("failed to record run history")
		}
	}
	if cfg.Open {
		if err := openViewer(s.Viewer, outPath); err != nil {
			log.Warn().Err(err).Str("path", outPath).Msg("failed to open viewer")
		}
	}
	return nil
}

func outputPath(cfg model.Config, now time.Time) string {
	return filepath.Join(cfg.OutputDir, now.Format(cfg.NameLayout)+".png")
}

func recordRun(ctx context.Context, cfg model.Config, report stats.Report, outPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Named("run").Warn().Err(cerr).Msg("failed to close db")
		}
	}()
	run := model.RunRecord{
		CreatedAt:  report.GeneratedAt,
		DataDir:    cfg.DataDir,
		Snapshots:  len(report.Snapshots),
		OutputPath: outPath,
	}
	id, err := st.InsertRun(ctx, run, report.Trends)
	if err != nil {
		return err
	}
	logger.Named("run").Debug().Str("run_id", id).Msg("run recorded")
	return nil
}

func changed(cmd *cobra.Command, name string) bool {
	return cmd.Flags().Lookup(name) != nil && cmd.Flags().Changed(name)
}

func applyString(cmd *cobra.Command, name string, target *string, value string) {
	if changed(cmd, name) {
		*target = value
	}
}

func applyInt(cmd *cobra.Command, name string, target *int, value int) {
	if changed(cmd, name) {
		*target = value
	}
}

func applyInts(cmd *cobra.Command, name string, target *[]int, value []int) {
	if changed(cmd, name) {
		*target = append([]int(nil), value...)
	}
}
