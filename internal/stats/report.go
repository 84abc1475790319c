package stats

import (
	"fmt"
	"time"

	"github.com/verte-zerg/hpctrend/internal/logger"
	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/snapshot"
	"github.com/verte-zerg/hpctrend/internal/trend"
)

// Report contains the fitted trends of one run.
type Report struct {
	GeneratedAt time.Time
	Config      model.Config
	Snapshots   []model.Snapshot
	Trends      []model.RankTrend
}

// BuildReport loads the snapshots named by cfg and fits every configured rank.
func BuildReport(cfg model.Config) (Report, error) {
	coll, err := snapshot.Load(snapshot.OptionsFromConfig(cfg))
	if err != nil {
		return Report{}, err
	}
	return FitCollection(coll, cfg)
}

// FitCollection fits every configured rank of an already loaded collection.
// The first rank that cannot be fitted aborts the report.
func FitCollection(coll *snapshot.Collection, cfg model.Config) (Report, error) {
	log := logger.Named("report")
	log.Debug().Int("snapshots", coll.Len()).Str("field", cfg.Field).Msg("fitting ranks")

	horizon := trend.Horizon{StepMonths: cfg.StepMonths, Steps: cfg.Steps}
	trends := make([]model.RankTrend, 0, len(cfg.Ranks))
	for _, rank := range cfg.Ranks {
		series, err := coll.Series(rank, cfg.Field)
		if err != nil {
			return Report{}, err
		}
		t, err := trend.FitSeries(series, horizon)
		if err != nil {
			return Report{}, fmt.Errorf("failed to fit %s: %w", cfg.Field, err)
		}
		log.Debug().
			Int("rank", rank).
			Int("points", series.Len()).
			Float64("slope", t.Fit.Slope).
			Float64("r", t.Fit.RValue).
			Msg("fitted rank")
		trends = append(trends, t)
	}

	return Report{
		GeneratedAt: time.Now(),
		Config:      cfg,
		Snapshots:   coll.Snapshots(),
		Trends:      trends,
	}, nil
}
