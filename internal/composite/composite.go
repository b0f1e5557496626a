// Package composite reduces standardized anomaly grids to regional series
// and combines them into the Actuarial Climate Index.
package composite

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/climate-index/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the centered moving-average window, in months.
const DefaultWindow = 60

// MaskMode selects how non-finite cell values enter a spatial mean.
type MaskMode int

const (
	// MaskReplace substitutes the policy's replacement value.
	MaskReplace MaskMode = iota
	// MaskDrop leaves the cell out of that timestamp's mean.
	MaskDrop
)

func (m MaskMode) String() string {
	if m == MaskDrop {
		return "drop"
	}
	return "replace"
}

// ParseMaskMode parses "replace" or "drop".
func ParseMaskMode(s string) (MaskMode, error) {
	switch s {
	case "", "replace":
		return MaskReplace, nil
	case "drop":
		return MaskDrop, nil
	default:
		return 0, fmt.Errorf("unknown mask mode %q", s)
	}
}

// MaskPolicy is the handling of NaN and infinite anomalies before averaging.
type MaskPolicy struct {
	Mode        MaskMode
	Replacement float64
}

// DefaultMaskPolicy replaces non-finite values with zero.
func DefaultMaskPolicy() MaskPolicy {
	return MaskPolicy{Mode: MaskReplace}
}

// SpatialMean returns the equal-weight mean across cells at every timestamp.
// Under MaskDrop a timestamp without any finite value is NaN. A series with
// no cells, or with no finite mean at all, fails with ErrNoValidData.
func SpatialMean(series domain.GridSeries, policy MaskPolicy) (domain.TimeSeries, error) {
	if len(series.Cells) == 0 {
		return domain.TimeSeries{}, fmt.Errorf("%w: %s has no cells", domain.ErrNoValidData, series.Variable)
	}
	ts := domain.TimeSeries{Name: series.Variable, Points: make([]domain.Point, len(series.Times))}
	buf := make([]float64, 0, len(series.Cells))
	valid := 0
	for i, t := range series.Times {
		buf = buf[:0]
		for c := range series.Cells {
			v := series.Values[c][i]
			if finite(v) {
				buf = append(buf, v)
			} else if policy.Mode == MaskReplace {
				buf = append(buf, policy.Replacement)
			}
		}
		mean := math.NaN()
		if len(buf) > 0 {
			mean = stat.Mean(buf, nil)
		}
		if finite(mean) {
			valid++
		}
		ts.Points[i] = domain.Point{Period: domain.YearMonthOf(t), Value: mean}
	}
	if valid == 0 {
		return domain.TimeSeries{}, fmt.Errorf("%w: %s has no finite values", domain.ErrNoValidData, series.Variable)
	}
	return ts, nil
}

// Combine returns the element-wise mean of series over the periods present
// in all of them.
func Combine(name string, series ...domain.TimeSeries) domain.TimeSeries {
	out := domain.TimeSeries{Name: name}
	if len(series) == 0 {
		return out
	}
	periods, indexes := innerJoin(series...)
	vals := make([]float64, len(series))
	for _, p := range periods {
		for i, idx := range indexes {
			vals[i] = idx[p]
		}
		out.Points = append(out.Points, domain.Point{Period: p, Value: stat.Mean(vals, nil)})
	}
	return out
}

// ICA combines the five regional anomaly series into the composite index
// (t90 - t10 + wind + rain + drought) / 5 at every period present in all
// five. Records carry no region.
func ICA(t90, t10, wind, rain, drought domain.TimeSeries) []domain.ICARecord {
	periods, idx := innerJoin(t90, t10, wind, rain, drought)
	out := make([]domain.ICARecord, 0, len(periods))
	for _, p := range periods {
		r := domain.ICARecord{
			Period:  p,
			T90:     idx[0][p],
			T10:     idx[1][p],
			Wind:    idx[2][p],
			Rain:    idx[3][p],
			Drought: idx[4][p],
		}
		r.ICA = (r.T90 - r.T10 + r.Wind + r.Rain + r.Drought) / 5
		out = append(out, r)
	}
	return out
}

// ICASeries extracts the composite column of records as a series.
func ICASeries(records []domain.ICARecord) domain.TimeSeries {
	ts := domain.TimeSeries{Name: "ica", Points: make([]domain.Point, len(records))}
	for i, r := range records {
		ts.Points[i] = domain.Point{Period: r.Period, Value: r.ICA}
	}
	return ts
}

// MovingAverage returns the centered rolling mean over window points. The
// window at point i spans [i-window/2, i+(window-1)/2]; points whose window
// is incomplete or holds a non-finite value are NaN.
func MovingAverage(ts domain.TimeSeries, window int) domain.TimeSeries {
	if window <= 0 {
		window = DefaultWindow
	}
	out := domain.TimeSeries{Name: ts.Name + "_ma", Points: make([]domain.Point, len(ts.Points))}
	offset := (window - 1) / 2
	for i, p := range ts.Points {
		end := i + offset
		start := end - window + 1
		v := math.NaN()
		if start >= 0 && end < len(ts.Points) {
			sum := 0.0
			for _, q := range ts.Points[start : end+1] {
				sum += q.Value
			}
			if finite(sum) {
				v = sum / float64(window)
			}
		}
		out.Points[i] = domain.Point{Period: p.Period, Value: v}
	}
	return out
}

// innerJoin returns the sorted periods present in every series and each
// series keyed by period.
func innerJoin(series ...domain.TimeSeries) ([]domain.YearMonth, []map[domain.YearMonth]float64) {
	idx := make([]map[domain.YearMonth]float64, len(series))
	for i, s := range series {
		idx[i] = s.Index()
	}
	var periods []domain.YearMonth
	for p := range idx[0] {
		inAll := true
		for _, m := range idx[1:] {
			if _, ok := m[p]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods, idx
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
