package xlsx

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/sealevel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	return NewWriter(t.TempDir(), 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWriteIndexAndComponents(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()
	jan := domain.YearMonth{Year: 2001, Month: time.January}
	feb := domain.YearMonth{Year: 2001, Month: time.February}

	records := []domain.ICARecord{
		{Period: jan, T90: 1, T10: -1, Wind: 0, Rain: 0, Drought: 0.5, ICA: 0.5},
		{Period: feb, T90: 0, T10: 0, Wind: 0, Rain: math.NaN(), Drought: 0, ICA: math.NaN()},
	}
	require.NoError(t, w.WriteIndex(ctx, "Colombia", records))
	require.NoError(t, w.WriteComponents(ctx, "Colombia", []domain.TimeSeries{
		{Name: "rain", Points: []domain.Point{{Period: feb, Value: 2}, {Period: jan, Value: 1}}},
	}))

	f, err := excelize.OpenFile(w.Path("Colombia"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{IndexSheet, ComponentsSheet}, f.GetSheetList())

	rows, err := f.GetRows(IndexSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"period", "t90", "t10", "wind", "rain", "drought", "ica", "ica_ma"}, rows[0])
	assert.Equal(t, []string{"2001-01", "1", "-1", "0", "0", "0.5", "0.5", "0.5"}, rows[1])
	assert.Equal(t, "", rows[2][4], "NaN is an empty cell")

	rows, err = f.GetRows(ComponentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"period", "rain", "rain_ma"}, rows[0])
	assert.Equal(t, "2001-01", rows[1][0], "periods are sorted")
}

func TestWriteIndex_ReplacesSheet(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()
	jan := domain.YearMonth{Year: 2001, Month: time.January}

	require.NoError(t, w.WriteComponents(ctx, "x", nil))
	require.NoError(t, w.WriteIndex(ctx, "x", []domain.ICARecord{{Period: jan, ICA: 1}}))
	require.NoError(t, w.WriteIndex(ctx, "x", []domain.ICARecord{{Period: jan, ICA: 2}}))

	f, err := excelize.OpenFile(w.Path("x"))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(IndexSheet, "G2")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestWriteSeaLevel(t *testing.T) {
	w := newTestWriter(t)
	rep := sealevel.Report{
		Station: sealevel.Station{Name: "Cartagena"},
		Anomalies: []sealevel.Anomaly{{
			Record: sealevel.Record{DecimalYear: 1980.0417, Date: time.Date(1980, 1, 16, 0, 0, 0, 0, time.UTC), ValueMM: 7000},
			Mean:   7000, Std: 0, Anomaly: math.NaN(),
		}},
		Trend: sealevel.Trend{SlopeMMPerYear: 2.5},
	}
	require.NoError(t, w.WriteSeaLevel(context.Background(), rep))

	f, err := excelize.OpenFile(filepath.Join(w.dir, "sealevel.xlsx"))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Cartagena", "A2")
	require.NoError(t, err)
	assert.Equal(t, "1980-01-16", v)
}

func TestSheetName(t *testing.T) {
	assert.Len(t, sheetName("an extremely long tide gauge station name"), 31)
	assert.Equal(t, "Tumaco", sheetName("Tumaco"))
}
