// Package domain models gridded climate series and the reference statistics
// used to turn them into standardized anomalies for the Actuarial Climate
// Index (ICA).
//
// # Data Source
//
// Inputs are ERA5 reanalysis fields exported by an upstream collaborator as
// flat per-variable, per-year CSV files (one row per cell and timestamp):
//
//	t2m         2 m air temperature, Kelvin, hourly
//	tp          total precipitation, metres, hourly accumulations
//	wind_speed  10 m wind speed, m/s, hourly
//
// Sea level comes from PSMSL monthly tide-gauge records for the Colombian
// stations (Cartagena, Buenaventura, Riohacha, Tumaco, San Andrés).
//
// # Series Layout
//
// A [GridSeries] stores one value per (cell, timestamp) as Values[cell][t].
// Timestamps are strictly increasing and shared by all cells. Daily series
// carry one timestamp per calendar day; monthly (derived) series carry the
// first instant of each month in UTC. Series are never mutated after
// construction: resampling, unit conversion and feature extraction always
// return a new series.
//
// # Methodology
//
// Each component is compared to month-of-year statistics of a fixed
// reference window (1961–1990 by default):
//
//	anomaly = (value - mean[month]) / std[month]
//
// and the ICA for a month is
//
//	ICA = (T90 - T10 + W + P + D) / 5
//
// where T90/T10 are warm/cold temperature extreme frequencies, W the wind
// power exceedance fraction, P the maximum 5-day precipitation (Rx5day) and
// D the consecutive dry days (CDD), all as standardized anomalies averaged
// over the region's grid cells.
package domain
