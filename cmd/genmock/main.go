// Command genmock writes deterministic synthetic inputs for local runs and
// smoke tests: per-variable per-year grid CSV files in the loader layout and
// a GeoJSON boundary covering the grid.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -data-dir data/raw \
//	  -regions-dir data/regions \
//	  -start 1991 -end 2000
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/climate-index/internal/adapter/csvstore"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// grid is the synthetic cell layout: a small block over the Andes.
type grid struct {
	lat0, lon0 float64
	step       float64
	rows, cols int
}

func (g grid) cells() []domain.Cell {
	out := make([]domain.Cell, 0, g.rows*g.cols)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			out = append(out, domain.Cell{Lat: g.lat0 + float64(r)*g.step, Lon: g.lon0 + float64(c)*g.step})
		}
	}
	return out
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "data/raw", "output directory for variable CSV files")
	regionsDir := flag.String("regions-dir", "data/regions", "output directory for the region GeoJSON")
	region := flag.String("region", "colombia", "name of the generated region")
	start := flag.Int("start", 1991, "first year to generate")
	end := flag.Int("end", 2000, "last year to generate")
	stepHours := flag.Int("step-hours", 6, "hours between samples")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	if *end < *start || *stepHours < 1 || *stepHours > 24 {
		flag.Usage()
		return fmt.Errorf("invalid flags: need start <= end and 1 <= step-hours <= 24")
	}

	g := grid{lat0: 4, lon0: -75, step: 0.25, rows: 3, cols: 3}
	step := time.Duration(*stepHours) * time.Hour

	for _, variable := range []string{domain.VariableTemperature, domain.VariablePrecipitation, domain.VariableWindSpeed} {
		for year := *start; year <= *end; year++ {
			rng := rand.New(rand.NewSource(*seed + int64(year)*31 + int64(len(variable))))
			s, err := synthesize(variable, year, g, step, rng)
			if err != nil {
				return err
			}
			path := filepath.Join(*dataDir, variable, fmt.Sprintf("%d.csv", year))
			if err := writeSeries(path, s); err != nil {
				return err
			}
		}
		fmt.Printf("wrote %s %d-%d\n", variable, *start, *end)
	}

	path := filepath.Join(*regionsDir, csvstore.Slug(*region)+".geojson")
	if err := writeRegion(path, *region, g); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// synthesize draws one year of samples with a seasonal cycle, a diurnal
// cycle for temperature and a slow warming trend.
func synthesize(variable string, year int, g grid, step time.Duration, rng *rand.Rand) (domain.GridSeries, error) {
	cells := g.cells()
	first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(1, 0, 0)
	var times []time.Time
	for t := first; t.Before(last); t = t.Add(step) {
		times = append(times, t)
	}

	values := make([][]float64, len(cells))
	trend := 0.02 * float64(year-1990)
	for c, cell := range cells {
		row := make([]float64, len(times))
		elevation := (cell.Lat - g.lat0) * 4 // cooler to the north of the block
		for i, t := range times {
			season := math.Sin(2 * math.Pi * float64(t.YearDay()) / 365)
			switch variable {
			case domain.VariableTemperature:
				diurnal := 4 * math.Sin(2*math.Pi*float64(t.Hour()-9)/24)
				row[i] = domain.KelvinOffset + 22 - elevation + 1.5*season + diurnal + trend + rng.NormFloat64()
			case domain.VariablePrecipitation:
				wet := 0.35 + 0.15*season
				if rng.Float64() < wet {
					row[i] = 0.004 * rng.ExpFloat64()
				}
			default:
				row[i] = math.Max(0, 4+1.5*season+rng.NormFloat64()*1.2)
			}
		}
		values[c] = row
	}
	return domain.NewGridSeries(variable, cells, times, values)
}

func writeSeries(path string, s domain.GridSeries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvstore.WriteSeries(f, s); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// writeRegion writes a FeatureCollection with one polygon enclosing every
// cell of g by half a step.
func writeRegion(path, name string, g grid) error {
	pad := g.step / 2
	minLat, minLon := g.lat0-pad, g.lon0-pad
	maxLat := g.lat0 + float64(g.rows-1)*g.step + pad
	maxLon := g.lon0 + float64(g.cols-1)*g.step + pad
	ring := orb.Ring{{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat}}

	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["name"] = name
	fc := geojson.NewFeatureCollection().Append(f)
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
