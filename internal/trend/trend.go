// Package trend fits log-linear growth trends and extrapolates them.
package trend

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/verte-zerg/hpctrend/internal/model"
)

// Fitting errors.
var (
	ErrInsufficientData = errors.New("insufficient data for regression")
	ErrNonPositive      = errors.New("value must be positive for a log fit")
)

// Horizon describes how far a trend is extrapolated.
type Horizon struct {
	StepMonths int
	Steps      int
}

// DefaultHorizon extrapolates eight years in half-year steps.
var DefaultHorizon = Horizon{StepMonths: 6, Steps: 16}

// Regression holds ordinary least-squares statistics for y = Intercept + Slope*x.
type Regression struct {
	Slope           float64
	Intercept       float64
	RValue          float64
	PValue          float64
	StdErr          float64
	InterceptStdErr float64
	N               int
}

// Fit computes an ordinary least-squares regression of y on x.
// PValue is two-sided for a zero slope under Student's t with n-2 degrees of freedom.
func Fit(x, y []float64) (Regression, error) {
	if len(x) != len(y) {
		return Regression{}, fmt.Errorf("x and y lengths differ: %d != %d", len(x), len(y))
	}
	n := len(x)
	if n < 2 {
		return Regression{}, fmt.Errorf("%w: %d points", ErrInsufficientData, n)
	}
	xMean, xVar := stat.PopMeanVariance(x, nil)
	if xVar == 0 {
		return Regression{}, fmt.Errorf("%w: all x values equal", ErrInsufficientData)
	}
	_, yVar := stat.PopMeanVariance(y, nil)

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	reg := Regression{Slope: slope, Intercept: intercept, N: n}

	if yVar == 0 {
		// Flat series: no correlation to test.
		reg.PValue = 1
		return reg, nil
	}
	r := stat.Correlation(x, y, nil)
	// Clamp rounding noise so 1-r^2 stays non-negative.
	r = math.Max(-1, math.Min(1, r))
	reg.RValue = r

	df := float64(n - 2)
	if df == 0 {
		return reg, nil
	}
	reg.StdErr = math.Sqrt((1 - r*r) * yVar / xVar / df)
	reg.InterceptStdErr = reg.StdErr * math.Sqrt(xVar+xMean*xMean)
	if 1-r*r == 0 {
		return reg, nil
	}
	t := r * math.Sqrt(df/((1-r)*(1+r)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	reg.PValue = 2 * dist.Survival(math.Abs(t))
	return reg, nil
}

// Predict evaluates the fitted line at each x.
func (r Regression) Predict(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = r.Intercept + r.Slope*v
	}
	return out
}

// Model converts the regression to its shared representation.
func (r Regression) Model() model.Fit {
	return model.Fit{
		Slope:           r.Slope,
		Intercept:       r.Intercept,
		RValue:          r.RValue,
		PValue:          r.PValue,
		StdErr:          r.StdErr,
		InterceptStdErr: r.InterceptStdErr,
		N:               r.N,
	}
}

// FutureDates returns steps dates after last, spaced stepMonths apart.
// Offsets are taken from last, not chained.
func FutureDates(last time.Time, stepMonths, steps int) []time.Time {
	if steps <= 0 {
		return nil
	}
	out := make([]time.Time, steps)
	for i := 0; i < steps; i++ {
		out[i] = last.AddDate(0, (i+1)*stepMonths, 0)
	}
	return out
}

// Seconds converts dates to Unix epoch seconds.
func Seconds(dates []time.Time) []float64 {
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = float64(d.Unix())
	}
	return out
}

// FitSeries fits ln(value) against epoch seconds and predicts at the observed
// dates followed by the extrapolated horizon. Predictions are returned in the
// value domain.
func FitSeries(series model.Series, horizon Horizon) (model.RankTrend, error) {
	values, err := series.Float64s()
	if err != nil {
		return model.RankTrend{}, err
	}
	if len(values) < 2 {
		return model.RankTrend{}, fmt.Errorf("rank %d: %w: %d points", series.Rank, ErrInsufficientData, len(values))
	}
	logs := make([]float64, len(values))
	for i, v := range values {
		if v <= 0 {
			return model.RankTrend{}, fmt.Errorf("rank %d at %s: %w: %g",
				series.Rank, series.Dates[i].Format("2006-01"), ErrNonPositive, v)
		}
		logs[i] = math.Log(v)
	}

	reg, err := Fit(Seconds(series.Dates), logs)
	if err != nil {
		return model.RankTrend{}, fmt.Errorf("rank %d: %w", series.Rank, err)
	}

	last := series.Dates[len(series.Dates)-1]
	predDates := make([]time.Time, 0, len(series.Dates)+horizon.Steps)
	predDates = append(predDates, series.Dates...)
	predDates = append(predDates, FutureDates(last, horizon.StepMonths, horizon.Steps)...)

	predicted := reg.Predict(Seconds(predDates))
	for i, v := range predicted {
		predicted[i] = math.Exp(v)
	}

	return model.RankTrend{
		Rank:      series.Rank,
		Field:     series.Field,
		Dates:     append([]time.Time(nil), series.Dates...),
		Observed:  values,
		PredDates: predDates,
		Predicted: predicted,
		Fit:       reg.Model(),
	}, nil
}

// DoublingMonths returns the time for a log-space slope (per second) to double the value.
func DoublingMonths(slope float64) float64 {
	if slope <= 0 {
		return math.Inf(1)
	}
	const secondsPerMonth = 365.2425 * 24 * 3600 / 12
	return math.Ln2 / slope / secondsPerMonth
}

// AnnualGrowth returns the yearly growth factor implied by a log-space slope (per second).
func AnnualGrowth(slope float64) float64 {
	const secondsPerYear = 365.2425 * 24 * 3600
	return math.Exp(slope * secondsPerYear)
}
