package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/couchcryptid/climate-index/internal/composite"
	"github.com/couchcryptid/climate-index/internal/extract"
	"github.com/couchcryptid/climate-index/internal/sealevel"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ICA_REFERENCE_START.
const EnvPrefix = "ICA"

// Config holds all settings of a run, populated from an optional YAML file,
// a .env file and ICA_* environment variables.
type Config struct {
	DataDir      string   `mapstructure:"data_dir"`
	OutputDir    string   `mapstructure:"output_dir"`
	ReferenceDir string   `mapstructure:"reference_dir"`
	RegionsDir   string   `mapstructure:"regions_dir"`
	Regions      []string `mapstructure:"regions"`
	StartYear    int      `mapstructure:"start_year"`
	EndYear      int      `mapstructure:"end_year"`

	TimezoneOffsetHours int `mapstructure:"timezone_offset_hours"`
	MovingAverageWindow int `mapstructure:"moving_average_window"`
	Workers             int `mapstructure:"workers"`

	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Reference   ReferenceConfig   `mapstructure:"reference"`
	Baseline    BaselineConfig    `mapstructure:"baseline"`
	Spatial     SpatialConfig     `mapstructure:"spatial"`
	Mask        MaskConfig        `mapstructure:"mask"`
	CDD         CDDConfig         `mapstructure:"cdd"`
	Wind        WindConfig        `mapstructure:"wind"`
	Temperature TemperatureConfig `mapstructure:"temperature"`
	Export      ExportConfig      `mapstructure:"export"`
	SQL         SQLConfig         `mapstructure:"sql"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore"`
	SeaLevel    SeaLevelConfig    `mapstructure:"sealevel"`
}

// ReferenceConfig is the climatology window, inclusive years.
type ReferenceConfig struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

type BaselineConfig struct {
	MinSamples     int  `mapstructure:"min_samples"`
	AllowSparse    bool `mapstructure:"allow_sparse"`
	MinDaysPerYear int  `mapstructure:"min_days_per_year"`
}

type SpatialConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

type MaskConfig struct {
	Mode        string  `mapstructure:"mode"`
	Replacement float64 `mapstructure:"replacement"`
}

type CDDConfig struct {
	Method       string  `mapstructure:"method"`
	DryThreshold float64 `mapstructure:"dry_threshold"`
}

type WindConfig struct {
	AirDensity float64 `mapstructure:"air_density"`
	Percentile float64 `mapstructure:"percentile"`
}

type TemperatureConfig struct {
	LowQuantile  float64 `mapstructure:"low_quantile"`
	HighQuantile float64 `mapstructure:"high_quantile"`
}

type ExportConfig struct {
	CSV     bool `mapstructure:"csv"`
	XLSX    bool `mapstructure:"xlsx"`
	Rasters bool `mapstructure:"rasters"`
}

// SQLConfig selects an optional SQL sink. An empty driver disables it.
type SQLConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ObjectStoreConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type SeaLevelConfig struct {
	BaseURL  string             `mapstructure:"base_url"`
	Timeout  time.Duration      `mapstructure:"timeout"`
	Stations []sealevel.Station `mapstructure:"stations"`
}

// TimezoneOffset returns the local offset applied before daily precipitation
// totals are taken.
func (c *Config) TimezoneOffset() time.Duration {
	return time.Duration(c.TimezoneOffsetHours) * time.Hour
}

// MaskPolicy returns the configured aggregation mask.
func (c *Config) MaskPolicy() composite.MaskPolicy {
	mode, _ := composite.ParseMaskMode(c.Mask.Mode)
	return composite.MaskPolicy{Mode: mode, Replacement: c.Mask.Replacement}
}

// CDDMethod returns the configured run-length method.
func (c *Config) CDDMethod() extract.CDDMethod {
	m, _ := extract.ParseCDDMethod(c.CDD.Method)
	return m
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data/raw")
	v.SetDefault("output_dir", "data/processed")
	v.SetDefault("reference_dir", "data/reference")
	v.SetDefault("regions_dir", "data/regions")
	v.SetDefault("regions", []string{"colombia"})
	v.SetDefault("start_year", 1961)
	v.SetDefault("end_year", 2024)
	v.SetDefault("timezone_offset_hours", -5)
	v.SetDefault("moving_average_window", composite.DefaultWindow)
	v.SetDefault("workers", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("http_addr", "")
	v.SetDefault("shutdown_timeout", "10s")

	v.SetDefault("reference.start", 1961)
	v.SetDefault("reference.end", 1990)
	v.SetDefault("baseline.min_samples", 10)
	v.SetDefault("baseline.allow_sparse", false)
	v.SetDefault("baseline.min_days_per_year", 365)
	v.SetDefault("spatial.tolerance", 0.25)
	v.SetDefault("mask.mode", "replace")
	v.SetDefault("mask.replacement", 0.0)
	v.SetDefault("cdd.method", "modal")
	v.SetDefault("cdd.dry_threshold", extract.DefaultDryThreshold)
	v.SetDefault("wind.air_density", extract.DefaultAirDensity)
	v.SetDefault("wind.percentile", 0.9)
	v.SetDefault("temperature.low_quantile", 0.1)
	v.SetDefault("temperature.high_quantile", 0.9)
	v.SetDefault("export.csv", true)
	v.SetDefault("export.xlsx", false)
	v.SetDefault("export.rasters", false)
	v.SetDefault("sql.driver", "")
	v.SetDefault("sql.dsn", "")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "climate-index")
	v.SetDefault("objectstore.enabled", false)
	v.SetDefault("objectstore.endpoint", "")
	v.SetDefault("objectstore.access_key", "")
	v.SetDefault("objectstore.secret_key", "")
	v.SetDefault("objectstore.bucket", "climate-index")
	v.SetDefault("objectstore.prefix", "")
	v.SetDefault("objectstore.use_ssl", true)
	v.SetDefault("sealevel.base_url", "https://psmsl.org/data/obtaining")
	v.SetDefault("sealevel.timeout", "30s")
}

// Load reads configuration, applying defaults where unset. path names an
// optional YAML file; when empty, ica.yaml is looked up in the working
// directory and /etc/ica. A .env file in the working directory is loaded
// into the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ica")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ica/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.SeaLevel.Stations) == 0 {
		cfg.SeaLevel.Stations = sealevel.DefaultStations()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting, naming its key.
func (c *Config) Validate() error {
	switch {
	case len(c.Regions) == 0:
		return errors.New("regions is required")
	case c.StartYear > c.EndYear:
		return fmt.Errorf("start_year %d is after end_year %d", c.StartYear, c.EndYear)
	case c.Reference.Start > c.Reference.End:
		return fmt.Errorf("reference.start %d is after reference.end %d", c.Reference.Start, c.Reference.End)
	case c.Workers < 1:
		return errors.New("workers must be at least 1")
	case c.Baseline.MinSamples < 2:
		return errors.New("baseline.min_samples must be at least 2")
	case c.Spatial.Tolerance <= 0:
		return errors.New("spatial.tolerance must be positive")
	case c.Temperature.LowQuantile <= 0 || c.Temperature.HighQuantile >= 1 || c.Temperature.LowQuantile >= c.Temperature.HighQuantile:
		return errors.New("temperature quantiles must satisfy 0 < low_quantile < high_quantile < 1")
	case c.Wind.Percentile <= 0 || c.Wind.Percentile >= 1:
		return errors.New("wind.percentile must be in (0, 1)")
	case c.Wind.AirDensity <= 0:
		return errors.New("wind.air_density must be positive")
	case c.MovingAverageWindow < 1:
		return errors.New("moving_average_window must be at least 1")
	}
	if _, err := composite.ParseMaskMode(c.Mask.Mode); err != nil {
		return fmt.Errorf("mask.mode: %w", err)
	}
	if _, err := extract.ParseCDDMethod(c.CDD.Method); err != nil {
		return fmt.Errorf("cdd.method: %w", err)
	}
	switch c.SQL.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("sql.driver %q is not supported", c.SQL.Driver)
	}
	if c.SQL.Driver != "" && c.SQL.DSN == "" {
		return errors.New("sql.dsn is required when sql.driver is set")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic are required when kafka.enabled is true")
	}
	if c.ObjectStore.Enabled && (c.ObjectStore.Endpoint == "" || c.ObjectStore.Bucket == "") {
		return errors.New("objectstore.endpoint and objectstore.bucket are required when objectstore.enabled is true")
	}
	return nil
}
