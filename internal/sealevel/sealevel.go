// Package sealevel computes standardized monthly anomalies and linear trends
// of tide-gauge sea level records published by the Permanent Service for
// Mean Sea Level (PSMSL).
package sealevel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/standardize"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Missing-value sentinels used in PSMSL monthly files.
const (
	MissingValue    = -99999
	MissingValueAlt = 9999
)

// Record is one monthly mean sea level.
type Record struct {
	DecimalYear float64
	Date        time.Time
	ValueMM     float64
	MissingDays int
	Flag        string
}

// Parse reads a PSMSL monthly file: semicolon separated decimal year, mean
// sea level in millimetres, missing days and a flag. Rows holding a
// missing-value sentinel are dropped.
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Record
	line := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("psmsl line %d: %w", line, err)
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("psmsl line %d: %d fields", line, len(fields))
		}

		dy, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("psmsl line %d: year: %w", line, err)
		}
		raw := strings.TrimSpace(fields[1])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("psmsl line %d: value: %w", line, err)
		}
		if v == MissingValue || v == MissingValueAlt || math.IsNaN(v) {
			continue
		}

		rec := Record{DecimalYear: dy, Date: DecimalYearToDate(dy), ValueMM: v}
		if len(fields) > 2 {
			rec.MissingDays, _ = strconv.Atoi(strings.TrimSpace(fields[2]))
		}
		if len(fields) > 3 {
			rec.Flag = strings.TrimSpace(fields[3])
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecimalYearToDate converts a fractional year to a UTC timestamp rounded to
// the second, using the length of that calendar year.
func DecimalYearToDate(dy float64) time.Time {
	year := int(math.Floor(dy))
	base := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	days := base.AddDate(1, 0, 0).Sub(base).Hours() / 24
	secs := math.Round((dy - float64(year)) * days * 24 * 3600)
	return base.Add(time.Duration(secs) * time.Second)
}

// FilterYears keeps records whose calendar year lies in [from, to]. A zero
// bound is open.
func FilterYears(records []Record, from, to int) []Record {
	var out []Record
	for _, r := range records {
		y := r.Date.Year()
		if (from != 0 && y < from) || (to != 0 && y > to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Anomaly is a record paired with its calendar-month climatology.
type Anomaly struct {
	Record
	Mean    float64
	Std     float64
	Anomaly float64
}

// Anomalies standardizes every record against the mean and sample standard
// deviation of its calendar month. The climatology is computed over ref when
// given, otherwise over the whole record.
func Anomalies(records []Record, ref *domain.RefPeriod) ([]Anomaly, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no sea level records", domain.ErrNoValidData)
	}
	var byMonth [12][]float64
	for _, r := range records {
		if ref != nil && !ref.Contains(r.Date) {
			continue
		}
		m := r.Date.Month() - 1
		byMonth[m] = append(byMonth[m], r.ValueMM)
	}

	var clim [12]domain.MonthStat
	for m, vals := range byMonth {
		clim[m] = domain.MonthStat{Mean: math.NaN(), Std: math.NaN(), N: len(vals)}
		if len(vals) >= 2 {
			clim[m].Mean, clim[m].Std = stat.MeanStdDev(vals, nil)
		}
	}

	out := make([]Anomaly, len(records))
	for i, r := range records {
		c := clim[r.Date.Month()-1]
		a := math.NaN()
		if c.Sufficient() {
			a = standardize.Anomaly(r.ValueMM, c.Mean, c.Std)
		}
		out[i] = Anomaly{Record: r, Mean: c.Mean, Std: c.Std, Anomaly: a}
	}
	return out, nil
}

// Trend is an ordinary least squares fit of sea level against time.
type Trend struct {
	SlopeMMPerYear float64
	Intercept      float64
	RSquared       float64
	N              int
}

// FitTrend regresses sea level on decimal year.
func FitTrend(records []Record) (Trend, error) {
	if len(records) < 3 {
		return Trend{}, fmt.Errorf("%w: trend needs 3 records, have %d", domain.ErrNoValidData, len(records))
	}
	x := make([]float64, len(records))
	y := make([]float64, len(records))
	for i, r := range records {
		x[i], y[i] = r.DecimalYear, r.ValueMM
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Trend{
		SlopeMMPerYear: beta,
		Intercept:      alpha,
		RSquared:       stat.RSquared(x, y, nil, alpha, beta),
		N:              len(records),
	}, nil
}

// Summary describes the distribution of sea level values.
type Summary struct {
	N      int
	Mean   float64
	Median float64
	Std    float64
	Min    float64
	Max    float64
	P25    float64
	P75    float64
}

// Summarize returns descriptive statistics of the record values.
func Summarize(records []Record) (Summary, error) {
	data := make(stats.Float64Data, len(records))
	for i, r := range records {
		data[i] = r.ValueMM
	}
	if data.Len() == 0 {
		return Summary{}, fmt.Errorf("%w: no sea level records", domain.ErrNoValidData)
	}

	s := Summary{N: data.Len()}
	var err error
	if s.Mean, err = data.Mean(); err != nil {
		return Summary{}, err
	}
	if s.Median, err = data.Median(); err != nil {
		return Summary{}, err
	}
	if s.Min, err = data.Min(); err != nil {
		return Summary{}, err
	}
	if s.Max, err = data.Max(); err != nil {
		return Summary{}, err
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	s.P25 = stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	s.P75 = stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	s.Std = math.NaN()
	if data.Len() > 1 {
		if s.Std, err = stats.StandardDeviationSample(data); err != nil {
			return Summary{}, err
		}
	}
	return s, nil
}
