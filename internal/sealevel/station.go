package sealevel

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/climate-index/internal/domain"
)

// Station is a tide gauge and the years of its record to analyse.
type Station struct {
	Name     string `mapstructure:"name"`
	ID       int    `mapstructure:"id"`
	Dataset  string `mapstructure:"dataset"` // "met" or "rlr"
	FromYear int    `mapstructure:"from_year"`
	ToYear   int    `mapstructure:"to_year"`
}

// DefaultStations are the Colombian gauges with usable monthly records.
// Cartagena and Buenaventura are limited to their continuous stretch;
// Tumaco is omitted.
func DefaultStations() []Station {
	return []Station{
		{Name: "Cartagena", ID: 572, Dataset: "met", FromYear: 1973, ToYear: 1992},
		{Name: "Buenaventura", ID: 456, Dataset: "met", FromYear: 1975, ToYear: 1992},
		{Name: "Riohacha", ID: 714, Dataset: "met"},
		{Name: "San Andres", ID: 2116, Dataset: "rlr"},
	}
}

// Report is the analysis of one station.
type Report struct {
	Station   Station
	Anomalies []Anomaly
	Trend     Trend
	Summary   Summary
}

// Analyze filters the station's records to its year range and derives
// anomalies, trend and summary. A record too short for a trend keeps a zero
// trend with N set.
func Analyze(st Station, records []Record, ref *domain.RefPeriod) (Report, error) {
	recs := FilterYears(records, st.FromYear, st.ToYear)
	anoms, err := Anomalies(recs, ref)
	if err != nil {
		return Report{}, fmt.Errorf("station %s: %w", st.Name, err)
	}
	sum, err := Summarize(recs)
	if err != nil {
		return Report{}, fmt.Errorf("station %s: %w", st.Name, err)
	}
	trend, err := FitTrend(recs)
	if err != nil {
		if !errors.Is(err, domain.ErrNoValidData) {
			return Report{}, fmt.Errorf("station %s: %w", st.Name, err)
		}
		trend = Trend{N: len(recs)}
	}
	return Report{Station: st, Anomalies: anoms, Trend: trend, Summary: sum}, nil
}
