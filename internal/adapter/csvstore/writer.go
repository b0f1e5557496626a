package csvstore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-index/internal/composite"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/sealevel"
)

// File names inside a region's output directory.
const (
	IndexFile      = "ica.csv"
	ComponentsFile = "components.csv"
	rastersDir     = "rasters"
	carryDir       = "cdd_carry"
	maSuffix       = "_ma"
)

var indexHeader = []string{"period", "t90", "t10", "wind", "rain", "drought", "ica", "ica" + maSuffix}

// Writer writes region tables under <dir>/<region>/. Every table carries a
// centered moving average column next to each series.
// It implements pipeline.Sink and pipeline.RasterSink.
type Writer struct {
	dir    string
	window int
	logger *slog.Logger
}

// NewWriter returns a writer rooted at dir. window is the moving-average
// length in months; zero selects composite.DefaultWindow.
func NewWriter(dir string, window int, logger *slog.Logger) *Writer {
	if window <= 0 {
		window = composite.DefaultWindow
	}
	return &Writer{dir: dir, window: window, logger: logger}
}

// RegionDir returns the output directory of region.
func (w *Writer) RegionDir(region string) string {
	return filepath.Join(w.dir, Slug(region))
}

// WriteIndex writes <region>/ica.csv.
func (w *Writer) WriteIndex(_ context.Context, region string, records []domain.ICARecord) error {
	path := filepath.Join(w.RegionDir(region), IndexFile)
	ma := composite.MovingAverage(composite.ICASeries(records), w.window).Values()
	err := writeFile(path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(indexHeader); err != nil {
			return err
		}
		for i, r := range records {
			row := []string{
				r.Period.String(),
				formatValue(r.T90), formatValue(r.T10), formatValue(r.Wind),
				formatValue(r.Rain), formatValue(r.Drought), formatValue(r.ICA),
				formatValue(ma[i]),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return err
	}
	w.logger.Info("index table written", "region", region, "path", path, "rows", len(records))
	return nil
}

// WriteComponents writes <region>/components.csv with one column per series
// plus its moving average, over the union of periods.
func (w *Writer) WriteComponents(_ context.Context, region string, series []domain.TimeSeries) error {
	path := filepath.Join(w.RegionDir(region), ComponentsFile)
	return writeFile(path, func(out io.Writer) error {
		return writeComponents(out, series, w.window)
	})
}

func writeComponents(out io.Writer, series []domain.TimeSeries, window int) error {
	header := []string{"period"}
	cols := make([]map[domain.YearMonth]float64, 0, 2*len(series))
	periods := make(map[domain.YearMonth]struct{})
	for _, s := range series {
		header = append(header, s.Name, s.Name+maSuffix)
		cols = append(cols, s.Index(), composite.MovingAverage(s, window).Index())
		for _, p := range s.Points {
			periods[p.Period] = struct{}{}
		}
	}
	order := make([]domain.YearMonth, 0, len(periods))
	for ym := range periods {
		order = append(order, ym)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, ym := range order {
		row[0] = ym.String()
		for i, col := range cols {
			v, ok := col[ym]
			if !ok {
				row[i+1] = ""
				continue
			}
			row[i+1] = formatValue(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRaster writes a monthly anomaly raster to <region>/rasters/<variable>.csv.
func (w *Writer) WriteRaster(_ context.Context, region string, s domain.GridSeries) error {
	path := filepath.Join(w.RegionDir(region), rastersDir, Slug(s.Variable)+".csv")
	return writeFile(path, func(out io.Writer) error { return WriteSeries(out, s) })
}

// WriteCarry persists the CDD December carry of a year as an audit artifact.
// It is never read back by the pipeline.
func (w *Writer) WriteCarry(_ context.Context, region string, carry domain.CDDCarry) error {
	path := filepath.Join(w.RegionDir(region), carryDir, strconv.Itoa(carry.Year)+".json")
	return writeFile(path, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(carry)
	})
}

// WriteSeaLevel writes the station's anomaly table and a key,value summary to
// <dir>/sealevel/.
func (w *Writer) WriteSeaLevel(_ context.Context, rep sealevel.Report) error {
	base := filepath.Join(w.dir, "sealevel", Slug(rep.Station.Name))
	err := writeFile(base+".csv", func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write([]string{"date", "decimal_year", "value_mm", "mean", "std", "anomaly"}); err != nil {
			return err
		}
		for _, a := range rep.Anomalies {
			row := []string{
				a.Date.Format(time.DateOnly),
				strconv.FormatFloat(a.DecimalYear, 'f', 4, 64),
				formatValue(a.ValueMM), formatValue(a.Mean), formatValue(a.Std), formatValue(a.Anomaly),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return err
	}
	return writeFile(base+"_summary.csv", func(out io.Writer) error {
		cw := csv.NewWriter(out)
		rows := [][]string{
			{"key", "value"},
			{"station", rep.Station.Name},
			{"n", strconv.Itoa(rep.Summary.N)},
			{"mean_mm", formatValue(rep.Summary.Mean)},
			{"median_mm", formatValue(rep.Summary.Median)},
			{"std_mm", formatValue(rep.Summary.Std)},
			{"min_mm", formatValue(rep.Summary.Min)},
			{"max_mm", formatValue(rep.Summary.Max)},
			{"p25_mm", formatValue(rep.Summary.P25)},
			{"p75_mm", formatValue(rep.Summary.P75)},
			{"trend_mm_per_year", formatValue(rep.Trend.SlopeMMPerYear)},
			{"trend_r2", formatValue(rep.Trend.RSquared)},
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	})
}

// ReadIndex decodes an ica.csv table written by WriteIndex.
func ReadIndex(r io.Reader, region string) ([]domain.ICARecord, error) {
	rows, err := readTable(r, indexHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ICARecord, 0, len(rows))
	for i, row := range rows {
		ym, err := ParsePeriod(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		vals := make([]float64, 6)
		for j := range vals {
			if vals[j], err = parseValue(row[j+1]); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+2, indexHeader[j+1], err)
			}
		}
		out = append(out, domain.ICARecord{
			Region: region, Period: ym,
			T90: vals[0], T10: vals[1], Wind: vals[2], Rain: vals[3], Drought: vals[4], ICA: vals[5],
		})
	}
	return out, nil
}

// ReadComponents decodes a components.csv table, skipping the moving-average
// columns. Blank cells are dropped from their series.
func ReadComponents(r io.Reader) ([]domain.TimeSeries, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if len(header) == 0 || header[0] != "period" {
		return nil, fmt.Errorf("%w: components table must start with a period column", domain.ErrInvalidSeries)
	}
	var cols []int
	var series []domain.TimeSeries
	for i, h := range header[1:] {
		if strings.HasSuffix(h, maSuffix) {
			continue
		}
		cols = append(cols, i+1)
		series = append(series, domain.TimeSeries{Name: h})
	}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		ym, err := ParsePeriod(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		for k, col := range cols {
			if strings.TrimSpace(row[col]) == "" {
				continue
			}
			v, err := parseValue(row[col])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", line, header[col], err)
			}
			series[k].Points = append(series[k].Points, domain.Point{Period: ym, Value: v})
		}
	}
	return series, nil
}

// ParsePeriod parses a YYYY-MM period label.
func ParsePeriod(s string) (domain.YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return domain.YearMonth{}, fmt.Errorf("period %q: %w", s, err)
	}
	return domain.YearMonthOf(t), nil
}

// Slug lower-cases a region or station name for use in paths.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func readTable(r io.Reader, want []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(want)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty table", domain.ErrInvalidSeries)
	}
	for i, h := range want {
		if rows[0][i] != h {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", domain.ErrInvalidSeries, i+1, rows[0][i], h)
		}
	}
	return rows[1:], nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
