package domain

import (
	"math"
	"time"
)

// RefPeriod is an inclusive range of calendar years used as the climatology.
type RefPeriod struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether t falls within the reference years.
func (p RefPeriod) Contains(t time.Time) bool {
	y := t.Year()
	return y >= p.Start && y <= p.End
}

// Years returns the number of calendar years covered.
func (p RefPeriod) Years() int {
	if p.End < p.Start {
		return 0
	}
	return p.End - p.Start + 1
}

// MonthStat holds the climatology of one calendar month at one cell.
// Std is NaN when fewer than the required samples were available.
type MonthStat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	N    int     `json:"n"`
}

// Sufficient reports whether the statistic was computed from enough samples.
func (m MonthStat) Sufficient() bool {
	return !math.IsNaN(m.Std) && !math.IsNaN(m.Mean)
}

// MonthlyBaseline is the month-of-year climatology of one variable.
// Stats[c][m-1] belongs to Cells[c] and calendar month m.
type MonthlyBaseline struct {
	Variable   string          `json:"variable"`
	Version    string          `json:"version"`
	Period     RefPeriod       `json:"period"`
	MinSamples int             `json:"min_samples"`
	Cells      []Cell          `json:"cells"`
	Stats      [][12]MonthStat `json:"stats"`
}

// At returns the statistic for a cell index and calendar month.
func (b MonthlyBaseline) At(cell int, m time.Month) MonthStat {
	return b.Stats[cell][m-1]
}

// MonthlyThresholds holds per-month percentile thresholds computed over the
// reference period. Low is unused for one-sided indices (wind).
type MonthlyThresholds struct {
	Variable string        `json:"variable"`
	Period   RefPeriod     `json:"period"`
	LowQ     float64       `json:"low_q"`
	HighQ    float64       `json:"high_q"`
	Cells    []Cell        `json:"cells"`
	Low      [][12]float64 `json:"low"`
	High     [][12]float64 `json:"high"`
}

// CDDCarry is the consecutive-dry-days December raster of a processed year,
// the blending anchor for the following year.
type CDDCarry struct {
	Year   int       `json:"year"`
	Cells  []Cell    `json:"cells"`
	Values []float64 `json:"values"`
}
