// Package csvstore reads gridded inputs from and writes anomaly outputs to
// flat CSV files.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
)

// seriesHeader is the column layout of gridded input and raster files.
var seriesHeader = []string{"time", "lat", "lon", "value"}

// Loader reads per-variable per-year files laid out as
// <dir>/<variable>/<year>.csv.
// It implements pipeline.Source.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Path returns the file holding variable for year.
func (l *Loader) Path(variable string, year int) string {
	return filepath.Join(l.dir, variable, strconv.Itoa(year)+".csv")
}

// Load reads one year of variable. A missing file is domain.ErrMissingInput.
func (l *Loader) Load(ctx context.Context, variable string, year int) (domain.GridSeries, error) {
	path := l.Path(variable, year)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.GridSeries{}, fmt.Errorf("%w: %s", domain.ErrMissingInput, path)
	}
	if err != nil {
		return domain.GridSeries{}, err
	}
	defer f.Close()

	s, err := ReadSeries(ctx, f, variable)
	if err != nil {
		return domain.GridSeries{}, fmt.Errorf("read %s: %w", path, err)
	}
	return s, nil
}

// ReadSeries decodes a time,lat,lon,value table into a grid series. Cells
// keep their order of first appearance; (cell, time) pairs absent from the
// table are NaN, as are empty or "NaN" values.
func ReadSeries(ctx context.Context, r io.Reader, variable string) (domain.GridSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(seriesHeader)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return domain.GridSeries{}, fmt.Errorf("header: %w", err)
	}
	for i, h := range seriesHeader {
		if strings.TrimSpace(header[i]) != h {
			return domain.GridSeries{}, fmt.Errorf("%w: column %d is %q, want %q", domain.ErrInvalidSeries, i+1, header[i], h)
		}
	}

	type sample struct {
		cell int
		t    time.Time
		v    float64
	}
	cellIdx := make(map[domain.Cell]int)
	var cells []domain.Cell
	timeSet := make(map[time.Time]struct{})
	var samples []sample

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.GridSeries{}, err
		}
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return domain.GridSeries{}, err
			}
		}

		t, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return domain.GridSeries{}, fmt.Errorf("line %d: time: %w", line, err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return domain.GridSeries{}, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return domain.GridSeries{}, fmt.Errorf("line %d: lon: %w", line, err)
		}
		v, err := parseValue(rec[3])
		if err != nil {
			return domain.GridSeries{}, fmt.Errorf("line %d: value: %w", line, err)
		}

		c := domain.Cell{Lat: lat, Lon: lon}
		ci, ok := cellIdx[c]
		if !ok {
			ci = len(cells)
			cellIdx[c] = ci
			cells = append(cells, c)
		}
		t = t.UTC()
		timeSet[t] = struct{}{}
		samples = append(samples, sample{cell: ci, t: t, v: v})
	}
	if len(samples) == 0 {
		return domain.GridSeries{}, fmt.Errorf("%w: %s has no rows", domain.ErrMissingInput, variable)
	}

	times := make([]time.Time, 0, len(timeSet))
	for t := range timeSet {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	timeIdx := make(map[time.Time]int, len(times))
	for i, t := range times {
		timeIdx[t] = i
	}

	values := make([][]float64, len(cells))
	for c := range values {
		row := make([]float64, len(times))
		for i := range row {
			row[i] = math.NaN()
		}
		values[c] = row
	}
	for _, s := range samples {
		values[s.cell][timeIdx[s.t]] = s.v
	}
	return domain.NewGridSeries(variable, cells, times, values)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteSeries encodes s as a time,lat,lon,value table, one row per cell and
// timestamp.
func WriteSeries(w io.Writer, s domain.GridSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(seriesHeader); err != nil {
		return err
	}
	row := make([]string, len(seriesHeader))
	for ti, t := range s.Times {
		row[0] = t.UTC().Format(time.RFC3339)
		for c, cell := range s.Cells {
			row[1] = strconv.FormatFloat(cell.Lat, 'f', -1, 64)
			row[2] = strconv.FormatFloat(cell.Lon, 'f', -1, 64)
			row[3] = formatValue(s.Values[c][ti])
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
