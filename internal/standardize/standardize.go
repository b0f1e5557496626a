// Package standardize aligns monthly features to their month-of-year
// baseline and converts them to standardized anomalies.
package standardize

import (
	"fmt"
	"math"

	"github.com/couchcryptid/climate-index/internal/domain"
)

// Options tunes Standardize.
type Options struct {
	// Aligners supplies the match between feature and baseline cells. When
	// nil, a one-off aligner with Tolerance is used.
	Aligners *Aligners
	// Tolerance bounds the nearest-neighbour match between feature and
	// baseline cells, in degrees.
	Tolerance float64
}

// Report counts the samples that did not yield a finite anomaly.
type Report struct {
	Samples      int // feature samples visited
	ZeroStd      int // baseline std was zero; value is a non-finite sentinel
	Insufficient int // baseline month lacked samples; value is NaN
}

// Standardize returns (x - mean[month]) / std[month] for every sample of
// feature, matching each feature cell to its baseline cell.
//
// A zero std yields NaN when x equals the mean and a signed infinity
// otherwise. Months whose baseline is insufficient yield NaN. Both are
// counted in the report so callers can mask them before aggregation.
func Standardize(feature domain.GridSeries, base domain.MonthlyBaseline, opts Options) (domain.GridSeries, Report, error) {
	var rep Report
	if len(base.Stats) == 0 {
		return domain.GridSeries{}, rep, fmt.Errorf("%w: empty baseline for %s", domain.ErrMissingInput, feature.Variable)
	}
	al := NewAligner(base.Cells, opts.Tolerance)
	if opts.Aligners != nil {
		al = opts.Aligners.For(base.Cells)
	}
	idx, err := al.Map(feature.Cells)
	if err != nil {
		return domain.GridSeries{}, rep, fmt.Errorf("standardize %s: %w", feature.Variable, err)
	}

	values := make([][]float64, len(feature.Cells))
	for c, row := range feature.Values {
		stats := base.Stats[idx[c]]
		out := make([]float64, len(row))
		for i, x := range row {
			st := stats[feature.Times[i].Month()-1]
			rep.Samples++
			switch {
			case !st.Sufficient():
				rep.Insufficient++
				out[i] = math.NaN()
				continue
			case st.Std == 0:
				rep.ZeroStd++
			}
			out[i] = Anomaly(x, st.Mean, st.Std)
		}
		values[c] = out
	}

	return domain.GridSeries{
		Variable: feature.Variable + "_anomaly",
		Cells:    feature.Cells,
		Times:    feature.Times,
		Values:   values,
	}, rep, nil
}

// Anomaly returns (x - mean) / std. A zero std yields NaN when x equals the
// mean and an infinity signed like x - mean otherwise.
func Anomaly(x, mean, std float64) float64 {
	d := x - mean
	if std == 0 {
		if d == 0 || math.IsNaN(d) {
			return math.NaN()
		}
		return math.Inf(int(math.Copysign(1, d)))
	}
	return d / std
}
