// Package xlsx exports region tables as Excel workbooks.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/climate-index/internal/composite"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/sealevel"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	IndexSheet      = "ICA"
	ComponentsSheet = "Components"
)

// Writer keeps one workbook per region at <dir>/<region>/ica.xlsx with an
// ICA sheet and a Components sheet, and a sealevel.xlsx with one sheet per
// station.
// It implements pipeline.Sink.
type Writer struct {
	dir    string
	window int
	logger *slog.Logger
}

func NewWriter(dir string, window int, logger *slog.Logger) *Writer {
	if window <= 0 {
		window = composite.DefaultWindow
	}
	return &Writer{dir: dir, window: window, logger: logger}
}

// Path returns the workbook of region.
func (w *Writer) Path(region string) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(region)), " ", "_")
	return filepath.Join(w.dir, slug, "ica.xlsx")
}

func (w *Writer) WriteIndex(_ context.Context, region string, records []domain.ICARecord) error {
	ma := composite.MovingAverage(composite.ICASeries(records), w.window).Values()
	rows := make([][]any, 0, len(records)+1)
	rows = append(rows, []any{"period", "t90", "t10", "wind", "rain", "drought", "ica", "ica_ma"})
	for i, r := range records {
		rows = append(rows, []any{
			r.Period.String(),
			cellValue(r.T90), cellValue(r.T10), cellValue(r.Wind),
			cellValue(r.Rain), cellValue(r.Drought), cellValue(r.ICA), cellValue(ma[i]),
		})
	}
	path := w.Path(region)
	if err := writeSheet(path, IndexSheet, rows); err != nil {
		return err
	}
	w.logger.Info("index workbook written", "region", region, "path", path)
	return nil
}

func (w *Writer) WriteComponents(_ context.Context, region string, series []domain.TimeSeries) error {
	header := []any{"period"}
	var cols []map[domain.YearMonth]float64
	periods := make(map[domain.YearMonth]struct{})
	for _, s := range series {
		header = append(header, s.Name, s.Name+"_ma")
		cols = append(cols, s.Index(), composite.MovingAverage(s, w.window).Index())
		for _, p := range s.Points {
			periods[p.Period] = struct{}{}
		}
	}
	order := make([]domain.YearMonth, 0, len(periods))
	for ym := range periods {
		order = append(order, ym)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	rows := [][]any{header}
	for _, ym := range order {
		row := []any{ym.String()}
		for _, col := range cols {
			v, ok := col[ym]
			if !ok {
				row = append(row, nil)
				continue
			}
			row = append(row, cellValue(v))
		}
		rows = append(rows, row)
	}
	return writeSheet(w.Path(region), ComponentsSheet, rows)
}

// WriteSeaLevel writes the station's anomalies to its own sheet of
// <dir>/sealevel.xlsx.
func (w *Writer) WriteSeaLevel(_ context.Context, rep sealevel.Report) error {
	rows := [][]any{{"date", "decimal_year", "value_mm", "mean", "std", "anomaly"}}
	for _, a := range rep.Anomalies {
		rows = append(rows, []any{
			a.Date.Format(time.DateOnly), a.DecimalYear,
			cellValue(a.ValueMM), cellValue(a.Mean), cellValue(a.Std), cellValue(a.Anomaly),
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"trend_mm_per_year", cellValue(rep.Trend.SlopeMMPerYear)},
		[]any{"trend_r2", cellValue(rep.Trend.RSquared)},
		[]any{"mean_mm", cellValue(rep.Summary.Mean)},
		[]any{"std_mm", cellValue(rep.Summary.Std)},
	)
	return writeSheet(filepath.Join(w.dir, "sealevel.xlsx"), sheetName(rep.Station.Name), rows)
}

// writeSheet replaces sheet in the workbook at path, creating the workbook
// when absent.
func writeSheet(path, sheet string, rows [][]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := excelize.OpenFile(path)
	fresh := errors.Is(err, fs.ErrNotExist)
	switch {
	case fresh:
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if !fresh {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil {
			return err
		}
		if idx != -1 {
			if err := f.DeleteSheet(sheet); err != nil {
				return err
			}
		}
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// cellValue leaves non-finite values as empty cells.
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// sheetName trims to Excel's 31 character limit.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
