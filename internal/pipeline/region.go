package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/climate-index/internal/baseline"
	"github.com/couchcryptid/climate-index/internal/composite"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/extract"
	"github.com/couchcryptid/climate-index/internal/standardize"
)

// Processing units of a year, used as the component metric label.
const (
	unitTemperature = "temperature"
	unitWind        = domain.ComponentWind
	unitRain        = domain.ComponentRain
	unitDrought     = domain.ComponentDrought
)

// regionRun holds the state of one region across its years.
type regionRun struct {
	r      *Runner
	job    Job
	in     inputs
	cdd    *extract.CDDAccumulator
	align  *standardize.Aligners
	log    *slog.Logger
	series map[string]domain.TimeSeries // regional anomaly series by baseline key
	grids  map[string]domain.GridSeries // anomaly rasters by baseline key
}

func (r *Runner) runRegion(ctx context.Context, job Job) (int, error) {
	align := standardize.NewAligners(r.opts.Tolerance, func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		r.metrics.AlignmentCache.WithLabelValues(result).Inc()
	})
	rr := &regionRun{
		r:   r,
		job: job,
		in:  inputs{src: r.src, region: job.Region, offset: r.opts.Offset, rho: r.opts.AirDensity},
		cdd: extract.NewCDDAccumulator(extract.CDDOptions{
			Method:       r.opts.CDDMethod,
			DryThreshold: r.opts.DryThreshold,
			Aligners:     align,
		}, nil),
		align:  align,
		log:    r.logger.With("region", job.Name, "reference", job.Reference.Version),
		series: make(map[string]domain.TimeSeries),
		grids:  make(map[string]domain.GridSeries),
	}

	for year := r.opts.StartYear; year <= r.opts.EndYear; year++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := rr.year(ctx, year); err != nil {
			return 0, fmt.Errorf("year %d: %w", year, err)
		}
	}
	return rr.finish(ctx)
}

// year runs every unit of one year. A unit with missing input is skipped.
func (rr *regionRun) year(ctx context.Context, year int) error {
	units := []struct {
		name string
		fn   func(context.Context, int) error
	}{
		{unitTemperature, rr.temperature},
		{unitWind, rr.wind},
		{unitRain, rr.precipitation},
	}
	for _, u := range units {
		start := time.Now()
		err := u.fn(ctx, year)
		if skippable(err) {
			rr.log.Warn("unit skipped", "component", u.name, "year", year, "error", err)
			rr.r.metrics.UnitsSkipped.WithLabelValues(u.name).Inc()
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", u.name, err)
		}
		rr.r.metrics.UnitsProcessed.WithLabelValues(u.name).Inc()
		rr.r.metrics.UnitDuration.WithLabelValues(u.name).Observe(time.Since(start).Seconds())
		rr.r.ready.Store(true)
	}
	return nil
}

func (rr *regionRun) temperature(ctx context.Context, year int) error {
	tx, tn, err := rr.in.temperature(ctx, year)
	if err != nil {
		return err
	}
	thrTx, err := rr.job.Reference.Threshold(baseline.ThresholdTx)
	if err != nil {
		return err
	}
	thrTn, err := rr.job.Reference.Threshold(baseline.ThresholdTn)
	if err != nil {
		return err
	}
	counts, err := extract.TemperatureExceedance(tx, tn, thrTx, thrTn, rr.align)
	if err != nil {
		return err
	}
	for _, kv := range []struct {
		key string
		s   domain.GridSeries
	}{
		{baseline.KeyTxAbove, counts.TxAbove},
		{baseline.KeyTxBelow, counts.TxBelow},
		{baseline.KeyTnAbove, counts.TnAbove},
		{baseline.KeyTnBelow, counts.TnBelow},
	} {
		if err := rr.standardize(unitTemperature, kv.key, kv.s); err != nil {
			return err
		}
	}
	return nil
}

func (rr *regionRun) wind(ctx context.Context, year int) error {
	power, err := rr.in.windPower(ctx, year)
	if err != nil {
		return err
	}
	thr, err := rr.job.Reference.Threshold(baseline.ThresholdWindPower)
	if err != nil {
		return err
	}
	frac, err := extract.ExceedanceFraction(power, thr, rr.align)
	if err != nil {
		return err
	}
	return rr.standardize(unitWind, baseline.KeyWind, frac)
}

// precipitation feeds both Rx5day and CDD from one year of daily totals.
// The CDD carry is kept even when the Rx5day baseline is missing.
func (rr *regionRun) precipitation(ctx context.Context, year int) error {
	daily, err := rr.in.precipitation(ctx, year)
	if err != nil {
		return err
	}

	cdd, err := rr.cdd.Next(daily, year)
	if err != nil {
		return fmt.Errorf("%s: %w", unitDrought, err)
	}
	if carry := rr.cdd.Carry(); carry != nil && rr.r.out.Carries != nil {
		if err := rr.r.out.Carries.WriteCarry(ctx, rr.job.Name, *carry); err != nil {
			rr.log.Warn("cdd carry not persisted", "year", year, "error", err)
		}
	}
	rainErr := rr.standardize(unitRain, baseline.KeyRain, extract.Rx5Day(daily))
	droughtErr := rr.standardize(unitDrought, baseline.KeyDrought, cdd)
	for _, err := range []error{droughtErr, rainErr} {
		if err != nil && !skippable(err) {
			return err
		}
	}
	return errors.Join(rainErr, droughtErr)
}

// skippable reports whether err only drops the current unit.
func skippable(err error) bool {
	return errors.Is(err, domain.ErrMissingInput) || errors.Is(err, domain.ErrNoValidData)
}

// standardize turns a monthly feature into anomalies against the reference
// baseline and adds their spatial mean to the region's series.
func (rr *regionRun) standardize(unit, key string, feature domain.GridSeries) error {
	base, err := rr.job.Reference.Baseline(key)
	if err != nil {
		return err
	}
	anom, rep, err := standardize.Standardize(feature, base, standardize.Options{Aligners: rr.align})
	if err != nil {
		return fmt.Errorf("standardize %s: %w", key, err)
	}
	rr.r.metrics.ZeroStdCells.WithLabelValues(unit).Add(float64(rep.ZeroStd))
	rr.r.metrics.InsufficientCells.WithLabelValues(unit).Add(float64(rep.Insufficient))

	ts, err := composite.SpatialMean(anom, rr.r.opts.Mask)
	if err != nil {
		return fmt.Errorf("spatial mean %s: %w", key, err)
	}
	merged := rr.series[key].Merge(ts)
	merged.Name = key
	rr.series[key] = merged

	if rr.r.out.Rasters != nil {
		anom.Variable = key + "_anomaly"
		grid, err := domain.Concat(rr.grids[key], anom)
		if err != nil {
			return err
		}
		rr.grids[key] = grid
	}
	return nil
}

// finish combines the regional series into the index and writes every
// output. It returns the number of index records.
func (rr *regionRun) finish(ctx context.Context) (int, error) {
	t90 := composite.Combine(domain.ComponentT90, rr.series[baseline.KeyTxAbove], rr.series[baseline.KeyTnAbove])
	t10 := composite.Combine(domain.ComponentT10, rr.series[baseline.KeyTxBelow], rr.series[baseline.KeyTnBelow])
	wind := rr.named(baseline.KeyWind, domain.ComponentWind)
	rain := rr.named(baseline.KeyRain, domain.ComponentRain)
	drought := rr.named(baseline.KeyDrought, domain.ComponentDrought)

	records := composite.ICA(t90, t10, wind, rain, drought)
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: no period has all five components", domain.ErrNoValidData)
	}
	for i := range records {
		records[i].Region = rr.job.Name
	}

	components := []domain.TimeSeries{t90, t10, wind, rain, drought}
	for _, key := range []string{baseline.KeyTxAbove, baseline.KeyTxBelow, baseline.KeyTnAbove, baseline.KeyTnBelow} {
		if s, ok := rr.series[key]; ok {
			components = append(components, s)
		}
	}

	for i, sink := range rr.r.out.Sinks {
		what := fmt.Sprintf("sink %d (%T)", i, sink)
		if err := rr.r.writeWithRetry(ctx, what, rr.job.Name, func(ctx context.Context) error {
			return sink.WriteComponents(ctx, rr.job.Name, components)
		}); err != nil {
			return 0, err
		}
		if err := rr.r.writeWithRetry(ctx, what, rr.job.Name, func(ctx context.Context) error {
			return sink.WriteIndex(ctx, rr.job.Name, records)
		}); err != nil {
			return 0, err
		}
		rr.r.metrics.RecordsPublished.Add(float64(len(records)))
	}

	if rr.r.out.Rasters != nil {
		for key, grid := range rr.grids {
			if err := rr.r.out.Rasters.WriteRaster(ctx, rr.job.Name, grid); err != nil {
				return 0, fmt.Errorf("raster %s: %w", key, err)
			}
		}
	}
	return len(records), nil
}

func (rr *regionRun) named(key, name string) domain.TimeSeries {
	s := rr.series[key]
	s.Name = name
	return s
}
