// Package sqlstore persists index results to SQLite or Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/sealevel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure-Go SQLite driver registered as "sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ica_records (
    run_id   TEXT NOT NULL,
    region   TEXT NOT NULL,
    period   TEXT NOT NULL,
    t90      DOUBLE PRECISION,
    t10      DOUBLE PRECISION,
    wind     DOUBLE PRECISION,
    rain     DOUBLE PRECISION,
    drought  DOUBLE PRECISION,
    ica      DOUBLE PRECISION,
    PRIMARY KEY (run_id, region, period)
);

CREATE TABLE IF NOT EXISTS component_values (
    run_id     TEXT NOT NULL,
    region     TEXT NOT NULL,
    component  TEXT NOT NULL,
    period     TEXT NOT NULL,
    value      DOUBLE PRECISION,
    PRIMARY KEY (run_id, region, component, period)
);

CREATE TABLE IF NOT EXISTS sealevel_anomalies (
    run_id    TEXT NOT NULL,
    station   TEXT NOT NULL,
    date      TEXT NOT NULL,
    value_mm  DOUBLE PRECISION,
    anomaly   DOUBLE PRECISION,
    PRIMARY KEY (run_id, station, date)
);
`

// Store writes the results of one run, keyed by run ID.
// It implements pipeline.Sink.
type Store struct {
	db     *sqlx.DB
	runID  string
	logger *slog.Logger
}

// Open connects with driver ("sqlite" or "postgres"), applies the schema and
// registers runID.
func Open(ctx context.Context, driver, dsn, runID string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	q := db.Rebind(`INSERT INTO runs (run_id, started_at) VALUES (?, ?) ON CONFLICT (run_id) DO NOTHING`)
	if _, err := db.ExecContext(ctx, q, runID, domain.Now().Format(time.RFC3339)); err != nil {
		db.Close()
		return nil, fmt.Errorf("register run %s: %w", runID, err)
	}
	return &Store{db: db, runID: runID, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type icaRow struct {
	RunID   string          `db:"run_id"`
	Region  string          `db:"region"`
	Period  string          `db:"period"`
	T90     sql.NullFloat64 `db:"t90"`
	T10     sql.NullFloat64 `db:"t10"`
	Wind    sql.NullFloat64 `db:"wind"`
	Rain    sql.NullFloat64 `db:"rain"`
	Drought sql.NullFloat64 `db:"drought"`
	ICA     sql.NullFloat64 `db:"ica"`
}

type componentRow struct {
	RunID     string          `db:"run_id"`
	Region    string          `db:"region"`
	Component string          `db:"component"`
	Period    string          `db:"period"`
	Value     sql.NullFloat64 `db:"value"`
}

type seaLevelRow struct {
	RunID   string          `db:"run_id"`
	Station string          `db:"station"`
	Date    string          `db:"date"`
	ValueMM sql.NullFloat64 `db:"value_mm"`
	Anomaly sql.NullFloat64 `db:"anomaly"`
}

// nullable stores non-finite values as NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func value(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

// WriteIndex upserts the region's records in one transaction.
func (s *Store) WriteIndex(ctx context.Context, region string, records []domain.ICARecord) error {
	const q = `
		INSERT INTO ica_records (run_id, region, period, t90, t10, wind, rain, drought, ica)
		VALUES (:run_id, :region, :period, :t90, :t10, :wind, :rain, :drought, :ica)
		ON CONFLICT (run_id, region, period) DO UPDATE SET
			t90 = excluded.t90, t10 = excluded.t10, wind = excluded.wind,
			rain = excluded.rain, drought = excluded.drought, ica = excluded.ica`
	rows := make([]any, len(records))
	for i, r := range records {
		rows[i] = icaRow{
			RunID: s.runID, Region: region, Period: r.Period.String(),
			T90: nullable(r.T90), T10: nullable(r.T10), Wind: nullable(r.Wind),
			Rain: nullable(r.Rain), Drought: nullable(r.Drought), ICA: nullable(r.ICA),
		}
	}
	if err := s.execAll(ctx, q, rows); err != nil {
		return fmt.Errorf("write index %s: %w", region, err)
	}
	s.logger.Debug("index rows stored", "region", region, "rows", len(rows))
	return nil
}

// WriteComponents upserts every point of every series.
func (s *Store) WriteComponents(ctx context.Context, region string, series []domain.TimeSeries) error {
	const q = `
		INSERT INTO component_values (run_id, region, component, period, value)
		VALUES (:run_id, :region, :component, :period, :value)
		ON CONFLICT (run_id, region, component, period) DO UPDATE SET value = excluded.value`
	var rows []any
	for _, ts := range series {
		for _, p := range ts.Points {
			rows = append(rows, componentRow{
				RunID: s.runID, Region: region, Component: ts.Name,
				Period: p.Period.String(), Value: nullable(p.Value),
			})
		}
	}
	if err := s.execAll(ctx, q, rows); err != nil {
		return fmt.Errorf("write components %s: %w", region, err)
	}
	return nil
}

// WriteSeaLevel upserts a station's anomalies.
func (s *Store) WriteSeaLevel(ctx context.Context, rep sealevel.Report) error {
	const q = `
		INSERT INTO sealevel_anomalies (run_id, station, date, value_mm, anomaly)
		VALUES (:run_id, :station, :date, :value_mm, :anomaly)
		ON CONFLICT (run_id, station, date) DO UPDATE SET
			value_mm = excluded.value_mm, anomaly = excluded.anomaly`
	rows := make([]any, len(rep.Anomalies))
	for i, a := range rep.Anomalies {
		rows[i] = seaLevelRow{
			RunID: s.runID, Station: rep.Station.Name, Date: a.Date.Format(time.DateOnly),
			ValueMM: nullable(a.ValueMM), Anomaly: nullable(a.Anomaly),
		}
	}
	if err := s.execAll(ctx, q, rows); err != nil {
		return fmt.Errorf("write sea level %s: %w", rep.Station.Name, err)
	}
	return nil
}

func (s *Store) execAll(ctx context.Context, q string, rows []any) (err error) {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, row := range rows {
		if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Index returns the stored records of region for this run, by period.
func (s *Store) Index(ctx context.Context, region string) ([]domain.ICARecord, error) {
	q := s.db.Rebind(`SELECT * FROM ica_records WHERE run_id = ? AND region = ? ORDER BY period`)
	var rows []icaRow
	if err := s.db.SelectContext(ctx, &rows, q, s.runID, region); err != nil {
		return nil, fmt.Errorf("list index %s: %w", region, err)
	}
	out := make([]domain.ICARecord, len(rows))
	for i, r := range rows {
		t, err := time.Parse("2006-01", r.Period)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", r.Period, err)
		}
		out[i] = domain.ICARecord{
			Region: r.Region, Period: domain.YearMonthOf(t),
			T90: value(r.T90), T10: value(r.T10), Wind: value(r.Wind),
			Rain: value(r.Rain), Drought: value(r.Drought), ICA: value(r.ICA),
		}
	}
	return out, nil
}
