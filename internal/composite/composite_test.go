package composite

import (
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ym(y int, m time.Month) domain.YearMonth { return domain.YearMonth{Year: y, Month: m} }

// column returns a grid with one timestamp and one cell per value.
func column(t *testing.T, vals ...float64) domain.GridSeries {
	t.Helper()
	cells := make([]domain.Cell, len(vals))
	rows := make([][]float64, len(vals))
	for i, v := range vals {
		cells[i] = domain.Cell{Lat: float64(i), Lon: 0}
		rows[i] = []float64{v}
	}
	s, err := domain.NewGridSeries("rain_anomaly", cells, []time.Time{time.Date(2001, 5, 1, 0, 0, 0, 0, time.UTC)}, rows)
	require.NoError(t, err)
	return s
}

func series(name string, start domain.YearMonth, vals ...float64) domain.TimeSeries {
	ts := domain.TimeSeries{Name: name}
	t := start.Time()
	for i, v := range vals {
		ts.Points = append(ts.Points, domain.Point{Period: domain.YearMonthOf(t.AddDate(0, i, 0)), Value: v})
	}
	return ts
}

func TestSpatialMean_ReplaceMasksInfinity(t *testing.T) {
	masked, err := SpatialMean(column(t, 1.5, math.Inf(1), -0.5), DefaultMaskPolicy())
	require.NoError(t, err)
	plain, err := SpatialMean(column(t, 1.5, 0, -0.5), DefaultMaskPolicy())
	require.NoError(t, err)

	assert.Equal(t, plain.Points, masked.Points)
	assert.InDelta(t, 1.0/3, masked.Points[0].Value, 1e-12)
	assert.Equal(t, ym(2001, time.May), masked.Points[0].Period)
}

func TestSpatialMean_CustomReplacement(t *testing.T) {
	out, err := SpatialMean(column(t, 1, math.NaN(), math.Inf(-1)), MaskPolicy{Mode: MaskReplace, Replacement: 4})
	require.NoError(t, err)
	assert.InDelta(t, 3, out.Points[0].Value, 1e-12)
}

func TestSpatialMean_Drop(t *testing.T) {
	out, err := SpatialMean(column(t, 1, math.NaN(), 3), MaskPolicy{Mode: MaskDrop})
	require.NoError(t, err)
	assert.InDelta(t, 2, out.Points[0].Value, 1e-12)

	_, err = SpatialMean(column(t, math.NaN(), math.Inf(1)), MaskPolicy{Mode: MaskDrop})
	assert.ErrorIs(t, err, domain.ErrNoValidData)
}

func TestSpatialMean_NoCells(t *testing.T) {
	_, err := SpatialMean(domain.GridSeries{Variable: "x"}, DefaultMaskPolicy())
	assert.ErrorIs(t, err, domain.ErrNoValidData)
}

func TestParseMaskMode(t *testing.T) {
	m, err := ParseMaskMode("drop")
	require.NoError(t, err)
	assert.Equal(t, MaskDrop, m)
	assert.Equal(t, "replace", MaskReplace.String())

	_, err = ParseMaskMode("zero")
	assert.Error(t, err)
}

func TestCombine_InnerJoin(t *testing.T) {
	days := series("tx_above", ym(2000, time.January), 1, 2, 3)
	nights := series("tn_above", ym(2000, time.February), 5, 6)

	got := Combine("t90", days, nights)
	want := domain.TimeSeries{Name: "t90", Points: []domain.Point{
		{Period: ym(2000, time.February), Value: 3.5},
		{Period: ym(2000, time.March), Value: 4.5},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Combine mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, Combine("none").Points)
}

func TestICA_HandComputation(t *testing.T) {
	start := ym(2010, time.January)
	t90 := series("t90", start, 1, 1)
	t10 := series("t10", start, -1, -1)
	wind := series("wind", start, 0.5, 0.2)
	rain := series("rain", start, 0.25, 0.4)
	drought := series("drought", start, -0.75, 0.9)

	got := ICA(t90, t10, wind, rain, drought)
	require.Len(t, got, 2)
	assert.InDelta(t, (1-(-1)+0.5+0.25-0.75)/5.0, got[0].ICA, 1e-12)
	assert.InDelta(t, (1-(-1)+0.2+0.4+0.9)/5.0, got[1].ICA, 1e-12)
	assert.Equal(t, -1.0, got[0].T10)
	assert.Equal(t, start, got[0].Period)
}

func TestICA_OnlyCommonPeriods(t *testing.T) {
	t90 := series("t90", ym(2010, time.January), 1, 1, 1)
	others := series("x", ym(2010, time.February), 0, 0, 0)

	got := ICA(t90, others, others, others, series("d", ym(2010, time.March), 0))
	require.Len(t, got, 1)
	assert.Equal(t, ym(2010, time.March), got[0].Period)
	assert.InDelta(t, 0.2, got[0].ICA, 1e-12)

	ica := ICASeries(got)
	assert.Equal(t, "ica", ica.Name)
	assert.Equal(t, []float64{0.2}, ica.Values())
}

func TestMovingAverage_Centered(t *testing.T) {
	ts := series("ica", ym(2000, time.January), 0, 1, 2, 3, 4, 5)

	got := MovingAverage(ts, 4)
	nan := math.NaN()
	want := []float64{nan, nan, 1.5, 2.5, 3.5, nan}
	opt := cmpopts.EquateNaNs()
	if diff := cmp.Diff(want, got.Values(), opt); diff != "" {
		t.Errorf("MovingAverage mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "ica_ma", got.Name)

	odd := MovingAverage(ts, 3)
	if diff := cmp.Diff([]float64{nan, 1, 2, 3, 4, nan}, odd.Values(), opt); diff != "" {
		t.Errorf("odd window mismatch (-want +got):\n%s", diff)
	}
}

func TestMovingAverage_NonFiniteInWindow(t *testing.T) {
	ts := series("ica", ym(2000, time.January), 1, math.NaN(), 1, 1, 1)

	got := MovingAverage(ts, 3)
	assert.True(t, math.IsNaN(got.Points[1].Value))
	assert.True(t, math.IsNaN(got.Points[2].Value))
	assert.Equal(t, 1.0, got.Points[3].Value)
}

func TestMovingAverage_DefaultWindow(t *testing.T) {
	vals := make([]float64, 120)
	for i := range vals {
		vals[i] = 2
	}
	got := MovingAverage(series("ica", ym(1961, time.January), vals...), 0)
	assert.True(t, math.IsNaN(got.Points[29].Value))
	assert.Equal(t, 2.0, got.Points[30].Value)
	assert.Equal(t, 2.0, got.Points[90].Value)
	assert.True(t, math.IsNaN(got.Points[91].Value))
}
