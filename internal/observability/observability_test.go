package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("unit skipped", "region", "colombia", "year", 1999)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "unit skipped", entry["msg"])
	assert.Equal(t, "colombia", entry["region"])
	assert.EqualValues(t, 1999, entry["year"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "TEXT").Debug("cdd carry", "year", 2000)
	assert.Contains(t, buf.String(), "msg=\"cdd carry\" year=2000")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.UnitsSkipped.WithLabelValues("rain").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.UnitsSkipped.WithLabelValues("rain")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.UnitsSkipped.WithLabelValues("rain")))
}
