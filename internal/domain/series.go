package domain

import (
	"fmt"
	"math"
	"time"
)

// Cell is a grid point in WGS-84 degrees.
type Cell struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%.4f,%.4f)", c.Lat, c.Lon)
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// YearMonthOf returns the calendar month containing t (in t's location).
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Time returns the first instant of the month in UTC.
func (ym YearMonth) Time() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Before reports whether ym is earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// GridSeries is a value per (cell, timestamp). Values[c][t] belongs to
// Cells[c] at Times[t].
type GridSeries struct {
	Variable string
	Cells    []Cell
	Times    []time.Time
	Values   [][]float64
}

// NewGridSeries validates the shape of a series: at least one cell, strictly
// increasing timestamps and one value per cell and timestamp.
func NewGridSeries(variable string, cells []Cell, times []time.Time, values [][]float64) (GridSeries, error) {
	if len(cells) == 0 {
		return GridSeries{}, fmt.Errorf("%w: %s has no cells", ErrInvalidSeries, variable)
	}
	if len(values) != len(cells) {
		return GridSeries{}, fmt.Errorf("%w: %s has %d value rows for %d cells", ErrInvalidSeries, variable, len(values), len(cells))
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return GridSeries{}, fmt.Errorf("%w: %s timestamps not strictly increasing at %s", ErrInvalidSeries, variable, times[i].Format(time.RFC3339))
		}
	}
	for c := range values {
		if len(values[c]) != len(times) {
			return GridSeries{}, fmt.Errorf("%w: %s cell %s has %d values for %d timestamps", ErrInvalidSeries, variable, cells[c], len(values[c]), len(times))
		}
	}
	return GridSeries{Variable: variable, Cells: cells, Times: times, Values: values}, nil
}

// Len returns the number of timestamps.
func (s GridSeries) Len() int { return len(s.Times) }

// CellCount returns the number of grid cells.
func (s GridSeries) CellCount() int { return len(s.Cells) }

// Years returns the distinct calendar years present, ascending.
func (s GridSeries) Years() []int {
	var years []int
	for _, t := range s.Times {
		if n := len(years); n == 0 || years[n-1] != t.Year() {
			years = append(years, t.Year())
		}
	}
	return years
}

// Window returns a copy of the samples with from <= t < to.
func (s GridSeries) Window(from, to time.Time) GridSeries {
	lo, hi := -1, -1
	for i, t := range s.Times {
		if t.Before(from) || !t.Before(to) {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i + 1
	}
	out := GridSeries{Variable: s.Variable, Cells: s.Cells, Values: make([][]float64, len(s.Cells))}
	if lo < 0 {
		return out
	}
	out.Times = append([]time.Time(nil), s.Times[lo:hi]...)
	for c := range s.Values {
		out.Values[c] = append([]float64(nil), s.Values[c][lo:hi]...)
	}
	return out
}

// Year returns the samples falling in calendar year y.
func (s GridSeries) Year(y int) GridSeries {
	return s.Window(time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(y+1, 1, 1, 0, 0, 0, 0, time.UTC))
}

// Map returns a new series with fn applied to every value.
func (s GridSeries) Map(variable string, fn func(float64) float64) GridSeries {
	out := GridSeries{Variable: variable, Cells: s.Cells, Times: s.Times, Values: make([][]float64, len(s.Values))}
	for c, row := range s.Values {
		mapped := make([]float64, len(row))
		for i, v := range row {
			mapped[i] = fn(v)
		}
		out.Values[c] = mapped
	}
	return out
}

// Concat appends the samples of next to s. Both must share the same cells and
// next must start after s ends.
func Concat(s, next GridSeries) (GridSeries, error) {
	if s.Len() == 0 && s.CellCount() == 0 {
		return next, nil
	}
	if len(s.Cells) != len(next.Cells) {
		return GridSeries{}, fmt.Errorf("%w: concat %s: %d cells vs %d", ErrInvalidSeries, s.Variable, len(s.Cells), len(next.Cells))
	}
	for i := range s.Cells {
		if s.Cells[i] != next.Cells[i] {
			return GridSeries{}, fmt.Errorf("%w: concat %s: cell %d differs", ErrInvalidSeries, s.Variable, i)
		}
	}
	if s.Len() > 0 && next.Len() > 0 && !next.Times[0].After(s.Times[s.Len()-1]) {
		return GridSeries{}, fmt.Errorf("%w: concat %s: overlapping timestamps", ErrInvalidSeries, s.Variable)
	}
	times := append(append([]time.Time(nil), s.Times...), next.Times...)
	values := make([][]float64, len(s.Cells))
	for c := range values {
		values[c] = append(append([]float64(nil), s.Values[c]...), next.Values[c]...)
	}
	return GridSeries{Variable: s.Variable, Cells: s.Cells, Times: times, Values: values}, nil
}

// MonthlySeries builds a monthly-keyed series from per-cell month values.
// Months missing for a cell are NaN.
func MonthlySeries(variable string, cells []Cell, months []YearMonth, byCell []map[YearMonth]float64) GridSeries {
	times := make([]time.Time, len(months))
	for i, ym := range months {
		times[i] = ym.Time()
	}
	values := make([][]float64, len(cells))
	for c := range cells {
		row := make([]float64, len(months))
		for i, ym := range months {
			v, ok := byCell[c][ym]
			if !ok {
				v = math.NaN()
			}
			row[i] = v
		}
		values[c] = row
	}
	return GridSeries{Variable: variable, Cells: cells, Times: times, Values: values}
}

// MonthKeys returns the distinct calendar months covered by times, ascending.
func MonthKeys(times []time.Time) []YearMonth {
	var out []YearMonth
	for _, t := range times {
		ym := YearMonthOf(t)
		if n := len(out); n == 0 || out[n-1] != ym {
			out = append(out, ym)
		}
	}
	return out
}
