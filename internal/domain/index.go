package domain

import "sort"

// Component names used across reference sets, exports and metrics.
const (
	ComponentT90     = "t90"
	ComponentT10     = "t10"
	ComponentWind    = "wind"
	ComponentRain    = "rain"
	ComponentDrought = "drought"
)

// Components lists the ICA components in export order.
var Components = []string{ComponentT90, ComponentT10, ComponentWind, ComponentRain, ComponentDrought}

// Point is one monthly value of a regional series.
type Point struct {
	Period YearMonth `json:"period"`
	Value  float64   `json:"value"`
}

// TimeSeries is a monthly regional series ordered by period.
type TimeSeries struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Index returns the series keyed by period.
func (ts TimeSeries) Index() map[YearMonth]float64 {
	m := make(map[YearMonth]float64, len(ts.Points))
	for _, p := range ts.Points {
		m[p.Period] = p.Value
	}
	return m
}

// Values returns the point values in order.
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Value
	}
	return out
}

// Merge returns ts extended with the points of other, sorted by period.
// Points of other replace points of ts with the same period.
func (ts TimeSeries) Merge(other TimeSeries) TimeSeries {
	byPeriod := ts.Index()
	for _, p := range other.Points {
		byPeriod[p.Period] = p.Value
	}
	out := TimeSeries{Name: ts.Name, Points: make([]Point, 0, len(byPeriod))}
	for ym, v := range byPeriod {
		out.Points = append(out.Points, Point{Period: ym, Value: v})
	}
	sort.Slice(out.Points, func(i, j int) bool { return out.Points[i].Period.Before(out.Points[j].Period) })
	return out
}

// ICARecord is one month of the composite index for a region.
type ICARecord struct {
	Region  string    `json:"region"`
	Period  YearMonth `json:"period"`
	T90     float64   `json:"t90"`
	T10     float64   `json:"t10"`
	Wind    float64   `json:"wind"`
	Rain    float64   `json:"rain"`
	Drought float64   `json:"drought"`
	ICA     float64   `json:"ica"`
}
