package extract

import (
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cell = domain.Cell{Lat: 4.5, Lon: -74}

// dailyFixture returns a one-cell daily series starting at start.
func dailyFixture(t *testing.T, start time.Time, vals ...float64) domain.GridSeries {
	t.Helper()
	times := make([]time.Time, len(vals))
	for i := range vals {
		times[i] = start.AddDate(0, 0, i)
	}
	s, err := domain.NewGridSeries("tp", []domain.Cell{cell}, times, [][]float64{vals})
	require.NoError(t, err)
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRx5Day_SingleMonth(t *testing.T) {
	s := dailyFixture(t, date(2000, time.March, 10), 1, 2, 3, 4, 5)

	out := Rx5Day(s)
	require.Len(t, out.Times, 1)
	assert.Equal(t, date(2000, time.March, 1), out.Times[0])
	assert.Equal(t, 15.0, out.Values[0][0])
	assert.Equal(t, "rx5day", out.Variable)
}

func TestRx5Day_ExcludesWindowsAcrossMonthBoundary(t *testing.T) {
	// Jan 27..Feb 6: a large value on Jan 31 must not reach February.
	vals := []float64{0, 0, 0, 0, 100, 1, 1, 1, 1, 1, 1}
	s := dailyFixture(t, date(2000, time.January, 27), vals...)

	out := Rx5Day(s)
	require.Len(t, out.Times, 2)
	assert.Equal(t, 100.0, out.Values[0][0])
	// Only the windows ending Feb 5 and Feb 6 stay inside February.
	assert.Equal(t, 5.0, out.Values[0][1])
}

func TestRx5Day_PartialWindowsAtSeriesStart(t *testing.T) {
	s := dailyFixture(t, date(2000, time.January, 1), 7, 1)

	out := Rx5Day(s)
	assert.Equal(t, 8.0, out.Values[0][0])
}

func TestRx5Day_MonthWithoutValidWindow(t *testing.T) {
	// Feb 1..3 follow January samples; every February window reaches back
	// into January.
	s := dailyFixture(t, date(2000, time.January, 29), 1, 1, 1, 5, 5, 5)

	out := Rx5Day(s)
	require.Len(t, out.Times, 2)
	assert.True(t, math.IsNaN(out.Values[0][1]))
}

func TestRx5Day_SkipsNonFinite(t *testing.T) {
	s := dailyFixture(t, date(2000, time.June, 1), 1, math.NaN(), 2, math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN())

	out := Rx5Day(s)
	assert.Equal(t, 3.0, out.Values[0][0])
}
