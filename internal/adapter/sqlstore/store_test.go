package sqlstore

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
)

func openTestStore(t *testing.T, runID string) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ica.db")
	s, err := Open(context.Background(), "sqlite", dsn, runID, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteIndex_RoundTrip(t *testing.T) {
	s := openTestStore(t, "run-1")
	ctx := context.Background()
	jan := domain.YearMonth{Year: 1990, Month: time.January}
	feb := domain.YearMonth{Year: 1990, Month: time.February}

	records := []domain.ICARecord{
		{Period: feb, T90: 1, T10: 2, Wind: 3, Rain: math.NaN(), Drought: math.Inf(1), ICA: 0.4},
		{Period: jan, T90: 0.5},
	}
	require.NoError(t, s.WriteIndex(ctx, "colombia", records))

	got, err := s.Index(ctx, "colombia")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, jan, got[0].Period, "ordered by period")
	assert.Equal(t, "colombia", got[1].Region)
	assert.Equal(t, 0.4, got[1].ICA)
	assert.True(t, math.IsNaN(got[1].Rain))
	assert.True(t, math.IsNaN(got[1].Drought), "infinite values are stored as NULL")
}

func TestWriteIndex_Upserts(t *testing.T) {
	s := openTestStore(t, "run-1")
	ctx := context.Background()
	jan := domain.YearMonth{Year: 1990, Month: time.January}

	require.NoError(t, s.WriteIndex(ctx, "colombia", []domain.ICARecord{{Period: jan, ICA: 1}}))
	require.NoError(t, s.WriteIndex(ctx, "colombia", []domain.ICARecord{{Period: jan, ICA: 2}}))

	got, err := s.Index(ctx, "colombia")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].ICA)
}

func TestWriteComponentsAndSeaLevel(t *testing.T) {
	s := openTestStore(t, "run-2")
	ctx := context.Background()
	jan := domain.YearMonth{Year: 1990, Month: time.January}

	require.NoError(t, s.WriteComponents(ctx, "colombia", []domain.TimeSeries{
		{Name: "rain", Points: []domain.Point{{Period: jan, Value: 1.5}}},
		{Name: "drought", Points: []domain.Point{{Period: jan, Value: math.NaN()}}},
	}))
	var n int
	require.NoError(t, s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM component_values WHERE run_id = ?`, "run-2"))
	assert.Equal(t, 2, n)

	rep := sealevel.Report{
		Station: sealevel.Station{Name: "Cartagena"},
		Anomalies: []sealevel.Anomaly{{
			Record:  sealevel.Record{Date: time.Date(1980, 1, 16, 0, 0, 0, 0, time.UTC), ValueMM: 7000},
			Anomaly: 0.3,
		}},
	}
	require.NoError(t, s.WriteSeaLevel(ctx, rep))
	var anomaly float64
	require.NoError(t, s.db.GetContext(ctx, &anomaly, `SELECT anomaly FROM sealevel_anomalies WHERE station = ?`, "Cartagena"))
	assert.Equal(t, 0.3, anomaly)
}

func TestWriteIndex_Empty(t *testing.T) {
	s := openTestStore(t, "run-3")
	assert.NoError(t, s.WriteIndex(context.Background(), "colombia", nil))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", "run", slog.Default())
	assert.Error(t, err)
}
