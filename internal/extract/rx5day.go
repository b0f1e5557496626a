// Package extract derives monthly extreme features from daily series:
// maximum 5-day precipitation, consecutive dry days and percentile
// exceedances.
package extract

import (
	"math"

	"github.com/couchcryptid/climate-index/internal/domain"
)

// Rx5DayWindow is the number of daily samples in a precipitation window.
const Rx5DayWindow = 5

// Rx5Day returns, per cell and calendar month, the largest trailing 5-day
// precipitation sum whose window lies inside that month. Windows are
// positional: near the start of the series they hold fewer samples.
// A month without any valid window is NaN.
func Rx5Day(daily domain.GridSeries) domain.GridSeries {
	months, slot := monthSlots(daily.Times)

	values := make([][]float64, len(daily.Cells))
	for c, row := range daily.Values {
		out := make([]float64, len(months))
		for m := range out {
			out[m] = math.NaN()
		}
		for i := range row {
			start := max(0, i-Rx5DayWindow+1)
			if slot[start] != slot[i] {
				continue
			}
			sum, n := 0.0, 0
			for _, v := range row[start : i+1] {
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					sum += v
					n++
				}
			}
			if n == 0 {
				continue
			}
			if m := slot[i]; math.IsNaN(out[m]) || sum > out[m] {
				out[m] = sum
			}
		}
		values[c] = out
	}

	return domain.GridSeries{Variable: "rx5day", Cells: daily.Cells, Times: monthTimes(months), Values: values}
}
