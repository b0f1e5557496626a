package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/climate-index/internal/adapter/csvstore"
	"github.com/couchcryptid/climate-index/internal/adapter/geojson"
	httpadapter "github.com/couchcryptid/climate-index/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-index/internal/adapter/kafka"
	"github.com/couchcryptid/climate-index/internal/adapter/objectstore"
	"github.com/couchcryptid/climate-index/internal/adapter/sqlstore"
	"github.com/couchcryptid/climate-index/internal/adapter/xlsx"
	"github.com/couchcryptid/climate-index/internal/config"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/observability"
	"github.com/couchcryptid/climate-index/internal/pipeline"
	"github.com/google/uuid"
)

// app carries what every subcommand shares.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	runID   string
	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	a := &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
		runID:   uuid.NewString(),
	}
	a.logger = a.logger.With("run_id", a.runID)
	return a, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serve starts the HTTP server when http_addr is set. The returned function
// shuts it down within shutdown_timeout.
func (a *app) serve(runner httpadapter.Runner) func() {
	if a.cfg.HTTPAddr == "" {
		return func() {}
	}
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, runner, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
	a.closers = nil
}

// csvWriter returns the CSV writer rooted at output_dir.
func (a *app) csvWriter() *csvstore.Writer {
	return csvstore.NewWriter(a.cfg.OutputDir, a.cfg.MovingAverageWindow, a.logger)
}

// sqlStore opens the configured SQL sink, or returns nil when none is set.
func (a *app) sqlStore(ctx context.Context) (*sqlstore.Store, error) {
	if a.cfg.SQL.Driver == "" {
		return nil, nil
	}
	store, err := sqlstore.Open(ctx, a.cfg.SQL.Driver, a.cfg.SQL.DSN, a.runID, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// uploader connects to the object store, or returns nil when disabled.
func (a *app) uploader(ctx context.Context) (*objectstore.Uploader, error) {
	oc := a.cfg.ObjectStore
	if !oc.Enabled {
		return nil, nil
	}
	return objectstore.New(ctx, objectstore.Options{
		Endpoint:  oc.Endpoint,
		AccessKey: oc.AccessKey,
		SecretKey: oc.SecretKey,
		Bucket:    oc.Bucket,
		Prefix:    oc.Prefix,
		UseSSL:    oc.UseSSL,
	}, a.runID, a.logger)
}

// outputs assembles the sinks enabled in the configuration.
func (a *app) outputs(ctx context.Context, up *objectstore.Uploader) (pipeline.Outputs, error) {
	var out pipeline.Outputs
	if a.cfg.Export.CSV {
		w := a.csvWriter()
		out.Sinks = append(out.Sinks, w)
		out.Carries = w
		if a.cfg.Export.Rasters {
			out.Rasters = w
		}
	}
	if a.cfg.Export.XLSX {
		out.Sinks = append(out.Sinks, xlsx.NewWriter(a.cfg.OutputDir, a.cfg.MovingAverageWindow, a.logger))
	}
	store, err := a.sqlStore(ctx)
	if err != nil {
		return out, fmt.Errorf("sql sink: %w", err)
	}
	if store != nil {
		out.Sinks = append(out.Sinks, store)
	}
	if a.cfg.Kafka.Enabled {
		pub := kafkaadapter.NewPublisher(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.runID, a.logger)
		a.closers = append(a.closers, pub.Close)
		out.Sinks = append(out.Sinks, pub)
	}
	if up != nil {
		out.Sinks = append(out.Sinks, up)
	}
	if len(out.Sinks) == 0 {
		return out, errors.New("no output enabled: set export.csv, export.xlsx, sql.driver, kafka.enabled or objectstore.enabled")
	}
	return out, nil
}

// jobs resolves the configured regions to their boundaries. A region whose
// boundary cannot be read still gets a job so its failure is reported with
// the others.
func (a *app) jobs() []pipeline.Job {
	store := geojson.NewStore(a.cfg.RegionsDir)
	jobs := make([]pipeline.Job, 0, len(a.cfg.Regions))
	for _, name := range a.cfg.Regions {
		job := pipeline.Job{Name: name}
		region, err := store.Region(name)
		if err != nil {
			job.Region = unavailableRegion{err: err}
		} else {
			job.Region = region
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// unavailableRegion fails every clip with the error that prevented loading
// the region's boundary. The cause is flattened so a missing boundary file
// fails the region instead of reading as a skippable missing year.
type unavailableRegion struct {
	err error
}

func (u unavailableRegion) Clip(domain.GridSeries) (domain.GridSeries, error) {
	return domain.GridSeries{}, fmt.Errorf("region boundary: %v", u.err)
}
