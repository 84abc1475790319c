// Package model defines shared data structures.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TOP500Namespace is the XML namespace used by TOP500 list snapshots.
const TOP500Namespace = "http://www.top500.org/xml/top500/1.0"

// Config defines a trend run.
type Config struct {
	DataDir     string `validate:"required"`
	DatePattern string `validate:"required"`
	DateLayout  string `validate:"required"`
	Namespace   string
	Field       string `validate:"required"`
	Ranks       []int  `validate:"required,min=1,dive,gt=0"`
	StepMonths  int    `validate:"gt=0"`
	Steps       int    `validate:"gte=0"`

	OutputDir    string  `validate:"required"`
	NameLayout   string  `validate:"required"`
	DPI          int     `validate:"gt=0,lte=1200"`
	WidthInches  float64 `validate:"gt=0"`
	HeightInches float64 `validate:"gt=0"`
	Open         bool
	XLSXPath     string
	History      bool
}

// HistoryConfig defines filters for the run history listing.
type HistoryConfig struct {
	Rank int
	Last int
}

// Snapshot is one dated ranking list.
type Snapshot struct {
	Date time.Time
	Path string
}

// Series holds the raw values of one field for one rank, ordered by date.
type Series struct {
	Rank   int
	Field  string
	Dates  []time.Time
	Values []string
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.Dates)
}

// Float64s parses the raw values as numbers.
func (s Series) Float64s() ([]float64, error) {
	out := make([]float64, len(s.Values))
	for i, raw := range s.Values {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("rank %d %s at %s: %w", s.Rank, s.Field, s.Dates[i].Format("2006-01"), err)
		}
		out[i] = v
	}
	return out, nil
}

// Fit summarizes a regression in log space.
type Fit struct {
	Slope           float64
	Intercept       float64
	RValue          float64
	PValue          float64
	StdErr          float64
	InterceptStdErr float64
	N               int
}

// RankTrend is an extracted series together with its fitted trend.
type RankTrend struct {
	Rank      int
	Field     string
	Dates     []time.Time
	Observed  []float64
	PredDates []time.Time
	Predicted []float64
	Fit       Fit
}

// Projection returns the last predicted point.
func (t RankTrend) Projection() (time.Time, float64) {
	if len(t.PredDates) == 0 {
		return time.Time{}, 0
	}
	last := len(t.PredDates) - 1
	return t.PredDates[last], t.Predicted[last]
}

// FitRecord is a stored fit from a previous run.
type FitRecord struct {
	RunID      string
	CreatedAt  time.Time
	Rank       int
	Field      string
	Points     int
	FirstDate  time.Time
	LastDate   time.Time
	Slope      float64
	Intercept  float64
	RValue     float64
	PValue     float64
	StdErr     float64
	ProjDate   time.Time
	Projection float64
}

// RunRecord summarizes a stored run.
type RunRecord struct {
	ID         string
	CreatedAt  time.Time
	DataDir    string
	Snapshots  int
	OutputPath string
}
