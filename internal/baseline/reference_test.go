package baseline

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReference(t *testing.T) *Reference {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	ref := NewReference("colombia", domain.RefPeriod{Start: 1961, End: 1990})
	stats := [12]domain.MonthStat{}
	for m := range stats {
		stats[m] = domain.MonthStat{Mean: float64(m), Std: 1, N: 30}
	}
	stats[5].Std = math.NaN()
	ref.Baselines[KeyRain] = domain.MonthlyBaseline{
		Variable: "rx5day", Version: ref.Version, Period: ref.Period, MinSamples: 10,
		Cells: []domain.Cell{testCell}, Stats: [][12]domain.MonthStat{stats},
	}
	var high [12]float64
	for m := range high {
		high[m] = 30 + float64(m)
	}
	ref.Thresholds[ThresholdTx] = domain.MonthlyThresholds{
		Variable: "tx", Period: ref.Period, LowQ: 0.1, HighQ: 0.9,
		Cells: []domain.Cell{testCell}, Low: [][12]float64{{}}, High: [][12]float64{high},
	}
	return ref
}

func TestNewReference_Version(t *testing.T) {
	ref := sampleReference(t)
	assert.Regexp(t, `^1961-1990-[0-9a-f]{8}$`, ref.Version)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ref.GeneratedAt)
}

func TestReference_Lookups(t *testing.T) {
	ref := sampleReference(t)

	b, err := ref.Baseline(KeyRain)
	require.NoError(t, err)
	assert.Equal(t, "rx5day", b.Variable)

	_, err = ref.Baseline(KeyDrought)
	assert.ErrorIs(t, err, domain.ErrMissingInput)

	_, err = ref.Threshold(ThresholdWindPower)
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestReference_SaveLoadRoundTrip(t *testing.T) {
	ref := sampleReference(t)
	path := filepath.Join(t.TempDir(), "refs", FileName(ref.Region))

	require.NoError(t, ref.Save(path, false))

	got, err := LoadReference(path)
	require.NoError(t, err)
	assert.Equal(t, ref.Version, got.Version)
	assert.Equal(t, ref.Period, got.Period)
	assert.True(t, ref.GeneratedAt.Equal(got.GeneratedAt))

	b, err := got.Baseline(KeyRain)
	require.NoError(t, err)
	assert.Equal(t, 3.0, b.At(0, time.April).Mean)
	assert.True(t, math.IsNaN(b.At(0, time.June).Std), "NaN std survives the round trip")

	thr, err := got.Threshold(ThresholdTx)
	require.NoError(t, err)
	assert.Equal(t, 41.0, thr.High[0][11])
}

func TestReference_SaveIsWriteOnce(t *testing.T) {
	ref := sampleReference(t)
	path := filepath.Join(t.TempDir(), FileName(ref.Region))
	require.NoError(t, ref.Save(path, false))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	other := NewReference("colombia", domain.RefPeriod{Start: 1971, End: 2000})
	err = other.Save(path, false)
	assert.ErrorIs(t, err, ErrReferenceExists)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, other.Save(path, true))
	got, err := LoadReference(path)
	require.NoError(t, err)
	assert.Equal(t, other.Version, got.Version)
}

func TestLoadReference_Missing(t *testing.T) {
	_, err := LoadReference(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestDecodeReference_Malformed(t *testing.T) {
	_, err := DecodeReference(bytes.NewBufferString("{"))
	assert.Error(t, err)

	ref, err := DecodeReference(bytes.NewBufferString(`{"version":"x"}`))
	require.NoError(t, err)
	assert.NotNil(t, ref.Baselines)
	assert.NotNil(t, ref.Thresholds)
}
