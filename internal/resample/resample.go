// Package resample turns sub-daily reanalysis samples into daily series.
package resample

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// ColombiaOffset is the local UTC offset applied before daily grouping of
// precipitation.
const ColombiaOffset = -5 * time.Hour

// Agg reduces the finite samples of one day.
type Agg int

const (
	Max Agg = iota
	Min
	Sum
	Mean
)

func (a Agg) String() string {
	switch a {
	case Max:
		return "max"
	case Min:
		return "min"
	case Sum:
		return "sum"
	case Mean:
		return "mean"
	default:
		return fmt.Sprintf("agg(%d)", int(a))
	}
}

func (a Agg) reduce(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	switch a {
	case Max:
		return floats.Max(vals)
	case Min:
		return floats.Min(vals)
	case Sum:
		return floats.Sum(vals)
	default:
		return floats.Sum(vals) / float64(len(vals))
	}
}

// Daily groups samples by calendar day after shifting timestamps by offset
// and reduces each day with agg. Output timestamps are midnight UTC of the
// shifted day. Non-finite samples are skipped; a day with no finite sample
// is NaN for every agg, so a fully missing precipitation day stays missing
// rather than dry.
func Daily(s domain.GridSeries, variable string, agg Agg, offset time.Duration) (domain.GridSeries, error) {
	if s.Len() == 0 {
		return domain.GridSeries{}, fmt.Errorf("%w: %s has no samples to resample", domain.ErrMissingInput, s.Variable)
	}

	var days []time.Time
	var bounds []int // start index of each day in s.Times
	for i, t := range s.Times {
		d := floorDay(t.Add(offset))
		if n := len(days); n == 0 || !days[n-1].Equal(d) {
			days = append(days, d)
			bounds = append(bounds, i)
		}
	}
	bounds = append(bounds, s.Len())

	values := make([][]float64, len(s.Cells))
	buf := make([]float64, 0, 24)
	for c, row := range s.Values {
		out := make([]float64, len(days))
		for d := range days {
			buf = buf[:0]
			for _, v := range row[bounds[d]:bounds[d+1]] {
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					buf = append(buf, v)
				}
			}
			out[d] = agg.reduce(buf)
		}
		values[c] = out
	}
	return domain.NewGridSeries(variable, s.Cells, days, values)
}

// DailyMaxMin returns the daily maximum and minimum of an hourly temperature
// series.
func DailyMaxMin(hourly domain.GridSeries, offset time.Duration) (domain.GridSeries, domain.GridSeries, error) {
	tx, err := Daily(hourly, "tx", Max, offset)
	if err != nil {
		return domain.GridSeries{}, domain.GridSeries{}, err
	}
	tn, err := Daily(hourly, "tn", Min, offset)
	if err != nil {
		return domain.GridSeries{}, domain.GridSeries{}, err
	}
	return tx, tn, nil
}

// DailySum returns daily totals of an accumulated quantity such as hourly
// precipitation.
func DailySum(hourly domain.GridSeries, offset time.Duration) (domain.GridSeries, error) {
	return Daily(hourly, hourly.Variable, Sum, offset)
}

func floorDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
