// Package baseline computes month-of-year climatologies over a reference
// period: mean and sample standard deviation of a series, and percentile
// thresholds of daily values.
package baseline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// DefaultMinSamples is the fewest finite samples a (cell, month) needs before
// its standard deviation is trusted. A monthly index over a 30-year window
// has 30 samples per month; 10 tolerates gaps of up to two thirds.
const DefaultMinSamples = 10

// Options tunes Compute.
type Options struct {
	MinSamples int
	Version    string
}

func (o Options) minSamples() int {
	switch {
	case o.MinSamples <= 0:
		return DefaultMinSamples
	case o.MinSamples < 2:
		return 2
	default:
		return o.MinSamples
	}
}

// Compute returns the month-of-year mean and sample standard deviation of
// series over the reference years. Non-finite samples are ignored.
//
// Cell-months with fewer than the minimum samples keep Std = NaN and are
// listed in a returned *domain.InsufficientSamplesError; the baseline is
// still returned so callers can choose to proceed.
func Compute(series domain.GridSeries, ref domain.RefPeriod, opts Options) (domain.MonthlyBaseline, error) {
	minN := opts.minSamples()
	byMonth, total := monthIndex(series.Times, ref)
	if total == 0 {
		return domain.MonthlyBaseline{}, fmt.Errorf("%w: %s has no samples in %d-%d",
			domain.ErrInsufficientSamples, series.Variable, ref.Start, ref.End)
	}

	stats := make([][12]domain.MonthStat, len(series.Cells))
	var sparse []domain.SparseMonth
	buf := make([]float64, 0, 64)
	for c := range series.Cells {
		for m := 0; m < 12; m++ {
			buf = finiteAt(buf[:0], series.Values[c], byMonth[m])
			st := domain.MonthStat{Mean: math.NaN(), Std: math.NaN(), N: len(buf)}
			if len(buf) >= minN {
				st.Mean, st.Std = stat.MeanStdDev(buf, nil)
			} else {
				if len(buf) > 0 {
					st.Mean = stat.Mean(buf, nil)
				}
				sparse = append(sparse, domain.SparseMonth{Cell: series.Cells[c], Month: time.Month(m + 1), N: len(buf)})
			}
			stats[c][m] = st
		}
	}

	b := domain.MonthlyBaseline{
		Variable:   series.Variable,
		Version:    opts.Version,
		Period:     ref,
		MinSamples: minN,
		Cells:      series.Cells,
		Stats:      stats,
	}
	if len(sparse) > 0 {
		return b, &domain.InsufficientSamplesError{Variable: series.Variable, MinSamples: minN, Months: sparse}
	}
	return b, nil
}

// Thresholds returns per (cell, calendar month) empirical quantiles of daily
// values in the reference years. A lowQ <= 0 skips the low threshold.
func Thresholds(daily domain.GridSeries, ref domain.RefPeriod, lowQ, highQ float64) (domain.MonthlyThresholds, error) {
	if highQ <= 0 || highQ >= 1 || lowQ >= 1 {
		return domain.MonthlyThresholds{}, fmt.Errorf("invalid quantiles low=%g high=%g", lowQ, highQ)
	}
	byMonth, total := monthIndex(daily.Times, ref)
	if total == 0 {
		return domain.MonthlyThresholds{}, fmt.Errorf("%w: %s has no samples in %d-%d",
			domain.ErrInsufficientSamples, daily.Variable, ref.Start, ref.End)
	}

	low := make([][12]float64, len(daily.Cells))
	high := make([][12]float64, len(daily.Cells))
	buf := make([]float64, 0, 1024)
	for c := range daily.Cells {
		for m := 0; m < 12; m++ {
			buf = finiteAt(buf[:0], daily.Values[c], byMonth[m])
			low[c][m], high[c][m] = math.NaN(), math.NaN()
			if len(buf) == 0 {
				continue
			}
			sort.Float64s(buf)
			high[c][m] = stat.Quantile(highQ, stat.LinInterp, buf, nil)
			if lowQ > 0 {
				low[c][m] = stat.Quantile(lowQ, stat.LinInterp, buf, nil)
			}
		}
	}

	return domain.MonthlyThresholds{
		Variable: daily.Variable,
		Period:   ref,
		LowQ:     lowQ,
		HighQ:    highQ,
		Cells:    daily.Cells,
		Low:      low,
		High:     high,
	}, nil
}

// monthIndex groups the indices of times inside ref by calendar month.
func monthIndex(times []time.Time, ref domain.RefPeriod) ([12][]int, int) {
	var byMonth [12][]int
	total := 0
	for i, t := range times {
		if !ref.Contains(t) {
			continue
		}
		m := int(t.Month()) - 1
		byMonth[m] = append(byMonth[m], i)
		total++
	}
	return byMonth, total
}

func finiteAt(dst, row []float64, idx []int) []float64 {
	for _, i := range idx {
		if v := row[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			dst = append(dst, v)
		}
	}
	return dst
}
