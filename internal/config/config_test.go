package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/climate-index/internal/composite"
	"github.com/couchcryptid/climate-index/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"colombia"}, cfg.Regions)
	assert.Equal(t, 1961, cfg.Reference.Start)
	assert.Equal(t, 1990, cfg.Reference.End)
	assert.Equal(t, 10, cfg.Baseline.MinSamples)
	assert.False(t, cfg.Baseline.AllowSparse)
	assert.Equal(t, 0.25, cfg.Spatial.Tolerance)
	assert.Equal(t, composite.DefaultWindow, cfg.MovingAverageWindow)
	assert.Equal(t, -5*time.Hour, cfg.TimezoneOffset())
	assert.Equal(t, composite.MaskReplace, cfg.MaskPolicy().Mode)
	assert.Equal(t, extract.CDDMethodModal, cfg.CDDMethod())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.SeaLevel.Timeout)
	assert.NotEmpty(t, cfg.SeaLevel.Stations)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("ICA_REGIONS", "colombia,caribe")
	t.Setenv("ICA_REFERENCE_START", "1971")
	t.Setenv("ICA_REFERENCE_END", "2000")
	t.Setenv("ICA_MASK_MODE", "drop")
	t.Setenv("ICA_CDD_METHOD", "longest")
	t.Setenv("ICA_SPATIAL_TOLERANCE", "0.5")
	t.Setenv("ICA_KAFKA_ENABLED", "true")
	t.Setenv("ICA_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("ICA_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("ICA_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"colombia", "caribe"}, cfg.Regions)
	assert.Equal(t, 1971, cfg.Reference.Start)
	assert.Equal(t, 2000, cfg.Reference.End)
	assert.Equal(t, composite.MaskDrop, cfg.MaskPolicy().Mode)
	assert.Equal(t, extract.CDDMethodLongest, cfg.CDDMethod())
	assert.Equal(t, 0.5, cfg.Spatial.Tolerance)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ica.yaml")
	body := `
regions: [pacifico]
start_year: 1990
end_year: 1995
sealevel:
  stations:
    - name: Tumaco
      id: 9999
      dataset: rlr
      from_year: 1990
      to_year: 1995
export:
  xlsx: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"pacifico"}, cfg.Regions)
	assert.Equal(t, 1990, cfg.StartYear)
	assert.True(t, cfg.Export.XLSX)
	require.Len(t, cfg.SeaLevel.Stations, 1)
	assert.Equal(t, "Tumaco", cfg.SeaLevel.Stations[0].Name)
	assert.Equal(t, 9999, cfg.SeaLevel.Stations[0].ID)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ica.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0o600))
	t.Setenv("ICA_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("ICA_SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"year order", map[string]string{"ICA_START_YEAR": "2000", "ICA_END_YEAR": "1999"}, "start_year"},
		{"reference order", map[string]string{"ICA_REFERENCE_START": "1991", "ICA_REFERENCE_END": "1990"}, "reference.start"},
		{"workers", map[string]string{"ICA_WORKERS": "0"}, "workers"},
		{"min samples", map[string]string{"ICA_BASELINE_MIN_SAMPLES": "1"}, "baseline.min_samples"},
		{"tolerance", map[string]string{"ICA_SPATIAL_TOLERANCE": "0"}, "spatial.tolerance"},
		{"quantiles", map[string]string{"ICA_TEMPERATURE_LOW_QUANTILE": "0.95"}, "quantiles"},
		{"mask", map[string]string{"ICA_MASK_MODE": "zero"}, "mask.mode"},
		{"cdd", map[string]string{"ICA_CDD_METHOD": "median"}, "cdd.method"},
		{"sql driver", map[string]string{"ICA_SQL_DRIVER": "mysql"}, "sql.driver"},
		{"sql dsn", map[string]string{"ICA_SQL_DRIVER": "sqlite"}, "sql.dsn"},
		{"objectstore", map[string]string{"ICA_OBJECTSTORE_ENABLED": "true"}, "objectstore.endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_KafkaRequiresTopic(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Kafka.Enabled = true
	cfg.Kafka.Topic = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.topic")
}
