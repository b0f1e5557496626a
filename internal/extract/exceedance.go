package extract

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/standardize"
)

// DefaultAirDensity is the air density, kg/m3, used to convert wind speed
// to wind power.
const DefaultAirDensity = 1.23

// TemperatureCounts holds the monthly day counts of the four temperature
// extremes.
type TemperatureCounts struct {
	TxAbove domain.GridSeries // warm days
	TxBelow domain.GridSeries // cold days
	TnAbove domain.GridSeries // warm nights
	TnBelow domain.GridSeries // cold nights
}

// TemperatureExceedance counts, per cell and calendar month, the days whose
// daily maximum and daily minimum fall above the high or below the low
// threshold of their month.
func TemperatureExceedance(tx, tn domain.GridSeries, thrTx, thrTn domain.MonthlyThresholds, al *standardize.Aligners) (TemperatureCounts, error) {
	var out TemperatureCounts
	var err error
	if out.TxAbove, out.TxBelow, err = CountExceedances(tx, thrTx, al); err != nil {
		return TemperatureCounts{}, fmt.Errorf("daily max: %w", err)
	}
	if out.TnAbove, out.TnBelow, err = CountExceedances(tn, thrTn, al); err != nil {
		return TemperatureCounts{}, fmt.Errorf("daily min: %w", err)
	}
	return out, nil
}

// CountExceedances returns monthly counts of samples strictly above the high
// threshold and strictly below the low threshold. Non-finite samples are not
// counted; a month without finite samples, or whose threshold is NaN, is NaN.
func CountExceedances(daily domain.GridSeries, thr domain.MonthlyThresholds, al *standardize.Aligners) (above, below domain.GridSeries, err error) {
	if len(thr.High) != len(thr.Cells) || len(thr.Low) != len(thr.Cells) {
		return domain.GridSeries{}, domain.GridSeries{}, fmt.Errorf("%w: %s thresholds do not cover their cells", domain.ErrInvalidSeries, thr.Variable)
	}
	idx, err := al.For(thr.Cells).Map(daily.Cells)
	if err != nil {
		return domain.GridSeries{}, domain.GridSeries{}, err
	}
	months, slot := monthSlots(daily.Times)

	aboveVals := make([][]float64, len(daily.Cells))
	belowVals := make([][]float64, len(daily.Cells))
	for c, row := range daily.Values {
		hi, lo := thr.High[idx[c]], thr.Low[idx[c]]
		a, b, n := make([]float64, len(months)), make([]float64, len(months)), make([]int, len(months))
		for i, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			m := daily.Times[i].Month() - 1
			s := slot[i]
			n[s]++
			if v > hi[m] {
				a[s]++
			}
			if v < lo[m] {
				b[s]++
			}
		}
		for s, ym := range months {
			m := ym.Month - 1
			if n[s] == 0 || math.IsNaN(hi[m]) {
				a[s] = math.NaN()
			}
			if n[s] == 0 || math.IsNaN(lo[m]) {
				b[s] = math.NaN()
			}
		}
		aboveVals[c], belowVals[c] = a, b
	}

	times := monthTimes(months)
	above = domain.GridSeries{Variable: daily.Variable + "_above", Cells: daily.Cells, Times: times, Values: aboveVals}
	below = domain.GridSeries{Variable: daily.Variable + "_below", Cells: daily.Cells, Times: times, Values: belowVals}
	return above, below, nil
}

// WindPower converts wind speed (m/s) to power density 0.5*rho*v^3.
// A non-positive airDensity uses DefaultAirDensity.
func WindPower(speed domain.GridSeries, airDensity float64) domain.GridSeries {
	if airDensity <= 0 {
		airDensity = DefaultAirDensity
	}
	return speed.Map("wind_power", func(v float64) float64 {
		return 0.5 * airDensity * v * v * v
	})
}

// ExceedanceFraction returns, per cell and calendar month, the fraction of
// finite samples strictly above the high threshold.
func ExceedanceFraction(power domain.GridSeries, thr domain.MonthlyThresholds, al *standardize.Aligners) (domain.GridSeries, error) {
	above, _, err := CountExceedances(power, thr, al)
	if err != nil {
		return domain.GridSeries{}, err
	}
	months, slot := monthSlots(power.Times)
	values := make([][]float64, len(power.Cells))
	for c, row := range power.Values {
		n := make([]int, len(months))
		for i, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				n[slot[i]]++
			}
		}
		frac := make([]float64, len(months))
		for s := range months {
			frac[s] = above.Values[c][s] / float64(n[s])
		}
		values[c] = frac
	}
	return domain.GridSeries{Variable: power.Variable + "_fraction", Cells: power.Cells, Times: above.Times, Values: values}, nil
}

// monthSlots returns the distinct months of times and, per sample, the index
// of its month.
func monthSlots(times []time.Time) ([]domain.YearMonth, []int) {
	var months []domain.YearMonth
	slot := make([]int, len(times))
	for i, t := range times {
		ym := domain.YearMonthOf(t)
		if n := len(months); n == 0 || months[n-1] != ym {
			months = append(months, ym)
		}
		slot[i] = len(months) - 1
	}
	return months, slot
}

func monthTimes(months []domain.YearMonth) []time.Time {
	out := make([]time.Time, len(months))
	for i, ym := range months {
		out[i] = ym.Time()
	}
	return out
}
