package pipeline

import (
	"time"

	"github.com/couchcryptid/climate-index/internal/composite"
	"github.com/couchcryptid/climate-index/internal/config"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/extract"
	"github.com/couchcryptid/climate-index/internal/standardize"
)

// Input variable names read from the Source.
const (
	VarTemperature   = domain.VariableTemperature
	VarPrecipitation = domain.VariablePrecipitation
	VarWindSpeed     = domain.VariableWindSpeed
)

// Options tunes a Runner.
type Options struct {
	RunID     string
	StartYear int
	EndYear   int
	Reference domain.RefPeriod

	// Offset shifts hourly precipitation timestamps to local time before
	// daily totals are taken.
	Offset    time.Duration
	Tolerance float64
	Mask      composite.MaskPolicy

	CDDMethod      extract.CDDMethod
	DryThreshold   float64
	MinDaysPerYear int

	MinSamples     int
	AllowSparse    bool
	LowQuantile    float64
	HighQuantile   float64
	WindPercentile float64
	AirDensity     float64

	Workers      int
	SinkAttempts int
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = standardize.DefaultTolerance
	}
	if o.DryThreshold <= 0 {
		o.DryThreshold = extract.DefaultDryThreshold
	}
	if o.LowQuantile <= 0 {
		o.LowQuantile = 0.1
	}
	if o.HighQuantile <= 0 {
		o.HighQuantile = 0.9
	}
	if o.WindPercentile <= 0 {
		o.WindPercentile = 0.9
	}
	if o.AirDensity <= 0 {
		o.AirDensity = extract.DefaultAirDensity
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.SinkAttempts < 1 {
		o.SinkAttempts = 3
	}
	return o
}

// OptionsFromConfig maps the loaded configuration onto runner options.
func OptionsFromConfig(cfg *config.Config, runID string) Options {
	return Options{
		RunID:          runID,
		StartYear:      cfg.StartYear,
		EndYear:        cfg.EndYear,
		Reference:      domain.RefPeriod{Start: cfg.Reference.Start, End: cfg.Reference.End},
		Offset:         cfg.TimezoneOffset(),
		Tolerance:      cfg.Spatial.Tolerance,
		Mask:           cfg.MaskPolicy(),
		CDDMethod:      cfg.CDDMethod(),
		DryThreshold:   cfg.CDD.DryThreshold,
		MinDaysPerYear: cfg.Baseline.MinDaysPerYear,
		MinSamples:     cfg.Baseline.MinSamples,
		AllowSparse:    cfg.Baseline.AllowSparse,
		LowQuantile:    cfg.Temperature.LowQuantile,
		HighQuantile:   cfg.Temperature.HighQuantile,
		WindPercentile: cfg.Wind.Percentile,
		AirDensity:     cfg.Wind.AirDensity,
		Workers:        cfg.Workers,
	}
}
