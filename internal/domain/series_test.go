package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewGridSeries(t *testing.T) {
	cells := []Cell{{Lat: 4.5, Lon: -74.0}}

	t.Run("valid", func(t *testing.T) {
		s, err := NewGridSeries("tp", cells, []time.Time{day(2000, 1, 1), day(2000, 1, 2)}, [][]float64{{1, 2}})
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())
		assert.Equal(t, 1, s.CellCount())
	})

	t.Run("no cells", func(t *testing.T) {
		_, err := NewGridSeries("tp", nil, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidSeries)
	})

	t.Run("duplicate timestamp", func(t *testing.T) {
		_, err := NewGridSeries("tp", cells, []time.Time{day(2000, 1, 1), day(2000, 1, 1)}, [][]float64{{1, 2}})
		assert.ErrorIs(t, err, ErrInvalidSeries)
	})

	t.Run("ragged values", func(t *testing.T) {
		_, err := NewGridSeries("tp", cells, []time.Time{day(2000, 1, 1)}, [][]float64{{1, 2}})
		assert.ErrorIs(t, err, ErrInvalidSeries)
	})
}

func TestGridSeries_YearAndYears(t *testing.T) {
	cells := []Cell{{Lat: 1, Lon: 1}}
	times := []time.Time{day(1999, 12, 31), day(2000, 1, 1), day(2000, 6, 1), day(2001, 1, 1)}
	s, err := NewGridSeries("tp", cells, times, [][]float64{{1, 2, 3, 4}})
	require.NoError(t, err)

	assert.Equal(t, []int{1999, 2000, 2001}, s.Years())

	y := s.Year(2000)
	assert.Equal(t, []float64{2, 3}, y.Values[0])
	assert.Len(t, y.Times, 2)

	empty := s.Year(1990)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 1, empty.CellCount())
}

func TestConcat(t *testing.T) {
	cells := []Cell{{Lat: 1, Lon: 1}}
	a, _ := NewGridSeries("tp", cells, []time.Time{day(2000, 1, 1)}, [][]float64{{1}})
	b, _ := NewGridSeries("tp", cells, []time.Time{day(2000, 1, 2)}, [][]float64{{2}})

	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out.Values[0])

	_, err = Concat(b, a)
	assert.ErrorIs(t, err, ErrInvalidSeries)

	first, err := Concat(GridSeries{}, a)
	require.NoError(t, err)
	assert.Equal(t, a, first)
}

func TestMonthlySeries_FillsMissingWithNaN(t *testing.T) {
	cells := []Cell{{Lat: 1, Lon: 1}}
	months := []YearMonth{{2000, time.January}, {2000, time.February}}
	s := MonthlySeries("rx5day", cells, months, []map[YearMonth]float64{{{2000, time.January}: 5}})

	assert.Equal(t, 5.0, s.Values[0][0])
	assert.True(t, math.IsNaN(s.Values[0][1]))
	assert.Equal(t, day(2000, 2, 1), s.Times[1])
}

func TestMonthStat_JSONNullForNaN(t *testing.T) {
	b, err := json.Marshal(MonthStat{Mean: 1.5, Std: math.NaN(), N: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mean":1.5,"std":null,"n":1}`, string(b))

	var back MonthStat
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 1.5, back.Mean)
	assert.True(t, math.IsNaN(back.Std))
	assert.False(t, back.Sufficient())
}

func TestICARecord_JSONInfinity(t *testing.T) {
	b, err := json.Marshal(ICARecord{Region: "colombia", Period: YearMonth{2000, time.March}, ICA: math.Inf(1)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"ica":null`)
	assert.Contains(t, string(b), `"month":3`)
}

func TestErrors_Unwrap(t *testing.T) {
	var err error = &InsufficientSamplesError{Variable: "tp", MinSamples: 10, Months: []SparseMonth{{Month: time.May, N: 3}}}
	assert.True(t, errors.Is(err, ErrInsufficientSamples))
	assert.Contains(t, err.Error(), "month 5 n=3")

	err = &SpatialMismatchError{Cell: Cell{Lat: 1}, Distance: 2, Tolerance: 0.25}
	var sm *SpatialMismatchError
	assert.True(t, errors.As(err, &sm))
	assert.ErrorIs(t, err, ErrSpatialMismatch)
}

func TestSetClock(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	assert.Equal(t, fixed, Now())
}
