package forecast

import (
	"fmt"
	"math"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Point is one month of a univariate series.
type Point struct {
	Month domain.MonthKey
	Value float64
}

// Target selects which monthly mean the engine is trained on.
type Target string

const (
	TargetMeanTemp     Target = "mean_temp"
	TargetMeanHighTemp Target = "mean_high_temp"
	TargetMeanLowTemp  Target = "mean_low_temp"
)

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	switch t := Target(s); t {
	case TargetMeanTemp, TargetMeanHighTemp, TargetMeanLowTemp:
		return t, nil
	default:
		return "", fmt.Errorf("unknown forecast target %q", s)
	}
}

// Value extracts the target column from one monthly aggregate.
func (t Target) Value(m domain.MonthlyAggregate) float64 {
	switch t {
	case TargetMeanTemp:
		return m.MeanTemp
	case TargetMeanLowTemp:
		return m.MeanLowTemp
	default:
		return m.MeanHighTemp
	}
}

// Series projects monthly aggregates onto the target column, preserving order.
func (t Target) Series(monthly []domain.MonthlyAggregate) []Point {
	out := make([]Point, len(monthly))
	for i, m := range monthly {
		out[i] = Point{Month: m.Month, Value: t.Value(m)}
	}
	return out
}

// Window keeps points within [from, to]. A zero bound is open.
func Window(series []Point, from, to domain.MonthKey) []Point {
	var out []Point
	for _, p := range series {
		if !from.IsZero() && p.Month.Before(from) {
			continue
		}
		if !to.IsZero() && to.Before(p.Month) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// AttachActuals returns a copy of results with Actual set wherever actuals
// holds the same month. Months without an actual keep a nil Actual.
func AttachActuals(results []domain.ForecastResult, actuals []Point) []domain.ForecastResult {
	byMonth := make(map[domain.MonthKey]float64, len(actuals))
	for _, a := range actuals {
		byMonth[a.Month] = a.Value
	}
	out := make([]domain.ForecastResult, len(results))
	for i, r := range results {
		r.Actual = nil
		if v, ok := byMonth[r.TargetMonth]; ok {
			r.Actual = &v
		}
		out[i] = r
	}
	return out
}

// Evaluate scores forecasts that carry an actual. Coverage is the fraction of
// actuals inside their prediction interval.
func Evaluate(results []domain.ForecastResult) domain.ForecastAccuracy {
	var acc domain.ForecastAccuracy
	var absSum, sqSum float64
	var covered int
	for _, r := range results {
		if r.Actual == nil {
			continue
		}
		diff := *r.Actual - r.PointEstimate
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if *r.Actual >= r.LowerBound && *r.Actual <= r.UpperBound {
			covered++
		}
		acc.Compared++
	}
	if acc.Compared == 0 {
		return acc
	}
	n := float64(acc.Compared)
	acc.MAE = domain.Round2(absSum / n)
	acc.RMSE = domain.Round2(math.Sqrt(sqSum / n))
	acc.Coverage = domain.Round2(float64(covered) / n)
	return acc
}
