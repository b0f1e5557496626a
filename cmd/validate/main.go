// Command validate checks the exported region tables of a run: every
// component column is present, the index agrees with a recomputation from
// components.csv, and the moving-average column agrees with the index.
//
// Usage:
//
//	go run ./cmd/validate -output-dir data/processed
//	go run ./cmd/validate -output-dir data/processed -regions colombia,la_guajira
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/climate-index/internal/adapter/csvstore"
	"github.com/couchcryptid/climate-index/internal/composite"
	"github.com/couchcryptid/climate-index/internal/domain"
)

const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// regionTables are the loaded exports of one region.
type regionTables struct {
	name       string
	index      []domain.ICARecord
	indexMA    []float64
	components map[string]domain.TimeSeries
}

func main() {
	outputDir := flag.String("output-dir", "data/processed", "run output directory holding one subdirectory per region")
	regions := flag.String("regions", "", "comma-separated regions to check (default: every subdirectory with ica.csv)")
	window := flag.Int("window", composite.DefaultWindow, "moving-average window used by the run")
	flag.Parse()

	if code := run(*outputDir, *regions, *window); code != 0 {
		os.Exit(code)
	}
}

func run(outputDir, regionList string, window int) int {
	fmt.Println("=== Climate Index Export Validation ===")
	fmt.Println()

	names, err := regionNames(outputDir, regionList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list regions: %v\n", err)
		return 1
	}
	if len(names) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no region tables under %s\n", outputDir)
		return 1
	}

	var tables []regionTables
	for _, name := range names {
		t, err := loadRegion(filepath.Join(outputDir, name), name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", name, err)
			return 1
		}
		tables = append(tables, t)
	}

	phases := []*phase{
		validateSchema(tables),
		validateRecomputation(tables),
		validateMovingAverage(tables, window),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	total := 0
	for _, t := range tables {
		total += len(t.index)
	}
	fmt.Printf("Regions: %d, index rows: %d\n", len(tables), total)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func regionNames(outputDir, list string) ([]string, error) {
	if list != "" {
		var out []string
		for _, n := range strings.Split(list, ",") {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, csvstore.Slug(n))
			}
		}
		return out, nil
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(outputDir, e.Name(), csvstore.IndexFile)); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func loadRegion(dir, name string) (regionTables, error) {
	t := regionTables{name: name, components: map[string]domain.TimeSeries{}}

	f, err := os.Open(filepath.Join(dir, csvstore.IndexFile))
	if err != nil {
		return t, err
	}
	t.index, err = csvstore.ReadIndex(f, name)
	f.Close()
	if err != nil {
		return t, fmt.Errorf("%s: %w", csvstore.IndexFile, err)
	}
	if t.indexMA, err = readIndexMA(filepath.Join(dir, csvstore.IndexFile)); err != nil {
		return t, err
	}

	f, err = os.Open(filepath.Join(dir, csvstore.ComponentsFile))
	if err != nil {
		return t, err
	}
	series, err := csvstore.ReadComponents(f)
	f.Close()
	if err != nil {
		return t, fmt.Errorf("%s: %w", csvstore.ComponentsFile, err)
	}
	for _, s := range series {
		t.components[s.Name] = s
	}
	return t, nil
}

// readIndexMA returns the last column of ica.csv, the moving average.
func readIndexMA(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(rows))
	for _, row := range rows[1:] {
		cell := strings.TrimSpace(row[len(row)-1])
		if cell == "" {
			out = append(out, math.NaN())
			continue
		}
		var v float64
		if _, err := fmt.Sscan(cell, &v); err != nil {
			return nil, fmt.Errorf("moving average %q: %w", cell, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ── Validation phases ──

var componentNames = []string{
	domain.ComponentT90, domain.ComponentT10, domain.ComponentWind, domain.ComponentRain, domain.ComponentDrought,
}

func validateSchema(tables []regionTables) *phase {
	p := &phase{name: "Component columns present"}
	for _, t := range tables {
		for _, name := range componentNames {
			if _, ok := t.components[name]; !ok {
				p.errorf("%s: components.csv has no %s column", t.name, name)
			}
		}
		if len(t.index) == 0 {
			p.errorf("%s: ica.csv has no rows", t.name)
		}
		for i := 1; i < len(t.index); i++ {
			if !t.index[i-1].Period.Before(t.index[i].Period) {
				p.errorf("%s: period %s does not follow %s", t.name, t.index[i].Period, t.index[i-1].Period)
			}
		}
	}
	return p
}

// validateRecomputation recomputes every index row from components.csv.
// Blank component cells are dropped on read, so a row missing any component
// must carry a blank index.
func validateRecomputation(tables []regionTables) *phase {
	p := &phase{name: "Index matches recomputed components"}
	for _, t := range tables {
		c := t.components
		want := make(map[domain.YearMonth]float64)
		for _, r := range composite.ICA(c[domain.ComponentT90], c[domain.ComponentT10], c[domain.ComponentWind], c[domain.ComponentRain], c[domain.ComponentDrought]) {
			want[r.Period] = r.ICA
		}
		for _, got := range t.index {
			w, ok := want[got.Period]
			if !ok {
				w = math.NaN()
			}
			if !agree(got.ICA, w) {
				p.errorf("%s %s: ica %g, recomputed %g", t.name, got.Period, got.ICA, w)
			}
			if !agree(got.ICA, (got.T90-got.T10+got.Wind+got.Rain+got.Drought)/5) {
				p.errorf("%s %s: ica %g disagrees with its own row", t.name, got.Period, got.ICA)
			}
			delete(want, got.Period)
		}
		for ym := range want {
			p.errorf("%s %s: components give an index row that ica.csv lacks", t.name, ym)
		}
	}
	return p
}

func validateMovingAverage(tables []regionTables, window int) *phase {
	p := &phase{name: "Moving average matches index"}
	for _, t := range tables {
		want := composite.MovingAverage(composite.ICASeries(t.index), window).Values()
		if len(want) != len(t.indexMA) {
			p.errorf("%s: %d moving-average values, want %d", t.name, len(t.indexMA), len(want))
			continue
		}
		for i := range want {
			if !agree(t.indexMA[i], want[i]) {
				p.errorf("%s %s: ica_ma %g, recomputed %g", t.name, t.index[i].Period, t.indexMA[i], want[i])
			}
		}
	}
	return p
}

// agree reports whether a and b agree within tolerance. Two NaNs agree.
func agree(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Abs(b))
}
