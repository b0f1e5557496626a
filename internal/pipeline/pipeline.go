package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/climate-index/internal/baseline"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Source reads one calendar year of a gridded input variable. A year that
// is not available is domain.ErrMissingInput.
type Source interface {
	Load(ctx context.Context, variable string, year int) (domain.GridSeries, error)
}

// Clipper restricts a grid to the cells of a region.
type Clipper interface {
	Clip(s domain.GridSeries) (domain.GridSeries, error)
}

// Sink receives the results of a region.
type Sink interface {
	WriteComponents(ctx context.Context, region string, series []domain.TimeSeries) error
	WriteIndex(ctx context.Context, region string, records []domain.ICARecord) error
}

// RasterSink receives monthly anomaly grids, one series per component.
type RasterSink interface {
	WriteRaster(ctx context.Context, region string, s domain.GridSeries) error
}

// CarrySink receives the CDD December carry after every processed year.
type CarrySink interface {
	WriteCarry(ctx context.Context, region string, carry domain.CDDCarry) error
}

// Outputs groups the destinations of a run. Rasters and Carries may be nil.
type Outputs struct {
	Sinks   []Sink
	Rasters RasterSink
	Carries CarrySink
}

// Job is one region of a batch. Reference is required by Run and ignored by
// BuildReferences.
type Job struct {
	Name      string
	Region    Clipper
	Reference *baseline.Reference
}

// Runner orchestrates the year-ordered computation of every region.
type Runner struct {
	src     Source
	out     Outputs
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu     sync.Mutex
	status Status
}

// New creates a Runner reading from src and writing to out.
func New(src Source, out Outputs, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		src:     src,
		out:     out,
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the runner has completed at least one unit.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("runner has not completed any unit yet")
	}
	return nil
}

// Run computes anomalies and the composite index of every job. Regions run
// concurrently; a region's failure is logged and counted and never stops
// the others. Run fails only when every region failed.
func (r *Runner) Run(ctx context.Context, jobs []Job) error {
	return r.batch(ctx, "run", jobs, func(ctx context.Context, job Job) (int, error) {
		if job.Reference == nil {
			return 0, fmt.Errorf("%w: no reference set for region %s", domain.ErrMissingInput, job.Name)
		}
		return r.runRegion(ctx, job)
	})
}

// BuildReferences builds the reference set of every job and hands each to
// save. Failures are isolated per region as in Run.
func (r *Runner) BuildReferences(ctx context.Context, jobs []Job, save func(context.Context, *baseline.Reference) error) error {
	return r.batch(ctx, "reference", jobs, func(ctx context.Context, job Job) (int, error) {
		ref, err := BuildReference(ctx, r.src, job, r.opts, r.logger)
		if err != nil {
			return 0, err
		}
		if err := save(ctx, ref); err != nil {
			return 0, fmt.Errorf("save reference: %w", err)
		}
		r.ready.Store(true)
		return len(ref.Baselines), nil
	})
}

func (r *Runner) batch(ctx context.Context, mode string, jobs []Job, fn func(context.Context, Job) (int, error)) error {
	r.startStatus(mode, jobs)
	r.logger.Info("pipeline started", "mode", mode, "run_id", r.opts.RunID, "regions", len(jobs), "workers", r.opts.Workers)
	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			start := time.Now()
			r.setRegion(i, StateRunning, 0, nil)
			n, err := fn(ctx, job)
			if err != nil {
				failed.Add(1)
				r.metrics.RegionFailures.Inc()
				r.setRegion(i, StateFailed, n, err)
				r.logger.Error("region failed", "region", job.Name, "mode", mode, "error", err)
				return nil
			}
			r.setRegion(i, StateDone, n, nil)
			r.logger.Info("region done", "region", job.Name, "mode", mode, "items", n, "duration", time.Since(start))
			return nil
		})
	}
	_ = g.Wait()
	r.finishStatus()

	if err := ctx.Err(); err != nil {
		r.logger.Info("pipeline stopping", "reason", err)
		return err
	}
	if n := int(failed.Load()); len(jobs) > 0 && n == len(jobs) {
		return fmt.Errorf("all %d regions failed", n)
	}
	r.logger.Info("pipeline finished", "mode", mode, "regions", len(jobs), "failed", failed.Load())
	return nil
}

// writeWithRetry retries a sink write with exponential backoff: start at
// 200ms, double each retry, cap at 5s.
func (r *Runner) writeWithRetry(ctx context.Context, what, region string, fn func(context.Context) error) error {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var err error
	for attempt := 1; attempt <= r.opts.SinkAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == r.opts.SinkAttempts {
			break
		}
		r.logger.Warn("sink write failed, retrying", "sink", what, "region", region, "attempt", attempt, "error", err)
		if !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
