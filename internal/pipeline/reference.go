package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/climate-index/internal/baseline"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/extract"
	"github.com/couchcryptid/climate-index/internal/standardize"
)

// referenceSeries accumulates the reference-period inputs of every component.
type referenceSeries struct {
	tx, tn  domain.GridSeries // daily
	power   domain.GridSeries // daily
	rx5day  domain.GridSeries // monthly
	drought domain.GridSeries // monthly
}

// BuildReference computes the reference set of one region from the years of
// opts.Reference: temperature and wind power thresholds, and the baselines
// of the temperature counts, the wind exceedance fraction, Rx5day and CDD.
// Years are read in order so the CDD carry chains across them; CDD years
// shorter than opts.MinDaysPerYear are left out of its baseline.
func BuildReference(ctx context.Context, src Source, job Job, opts Options, logger *slog.Logger) (*baseline.Reference, error) {
	opts = opts.withDefaults()
	period := opts.Reference
	in := inputs{src: src, region: job.Region, offset: opts.Offset, rho: opts.AirDensity}
	log := logger.With("region", job.Name, "mode", "reference")
	align := standardize.NewAligners(opts.Tolerance, nil)

	acc := extract.NewCDDAccumulator(extract.CDDOptions{
		Method:       opts.CDDMethod,
		DryThreshold: opts.DryThreshold,
		Aligners:     align,
		MinDays:      opts.MinDaysPerYear,
	}, nil)

	var rs referenceSeries
	for year := period.Start; year <= period.End; year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rs.addYear(ctx, in, acc, year, log); err != nil {
			return nil, fmt.Errorf("reference year %d: %w", year, err)
		}
	}

	ref := baseline.NewReference(job.Name, period)
	b := referenceBuilder{ref: ref, opts: opts, align: align, log: log}
	if err := b.temperature(rs.tx, rs.tn); err != nil {
		return nil, err
	}
	if err := b.wind(rs.power); err != nil {
		return nil, err
	}
	if err := b.monthly(baseline.KeyRain, rs.rx5day); err != nil {
		return nil, err
	}
	if err := b.monthly(baseline.KeyDrought, rs.drought); err != nil {
		return nil, err
	}
	if len(ref.Baselines) == 0 {
		return nil, fmt.Errorf("%w: region %s has no input in %d-%d", domain.ErrMissingInput, job.Name, period.Start, period.End)
	}
	log.Info("reference built", "version", ref.Version, "baselines", len(ref.Baselines), "thresholds", len(ref.Thresholds))
	return ref, nil
}

// addYear loads one reference year. Missing inputs skip that component for
// the year only.
func (rs *referenceSeries) addYear(ctx context.Context, in inputs, acc *extract.CDDAccumulator, year int, log *slog.Logger) error {
	skip := func(component string, err error) error {
		if errors.Is(err, domain.ErrMissingInput) {
			log.Warn("unit skipped", "component", component, "year", year, "error", err)
			return nil
		}
		return fmt.Errorf("%s: %w", component, err)
	}

	tx, tn, err := in.temperature(ctx, year)
	if err == nil {
		if rs.tx, err = domain.Concat(rs.tx, tx); err == nil {
			rs.tn, err = domain.Concat(rs.tn, tn)
		}
	}
	if err != nil {
		if err := skip("temperature", err); err != nil {
			return err
		}
	}

	power, err := in.windPower(ctx, year)
	if err == nil {
		rs.power, err = domain.Concat(rs.power, power)
	}
	if err != nil {
		if err := skip(domain.ComponentWind, err); err != nil {
			return err
		}
	}

	daily, err := in.precipitation(ctx, year)
	if err != nil {
		return skip("precipitation", err)
	}
	if rs.rx5day, err = domain.Concat(rs.rx5day, extract.Rx5Day(daily)); err != nil {
		return skip(domain.ComponentRain, err)
	}
	cdd, err := acc.Next(daily, year)
	if err == nil {
		rs.drought, err = domain.Concat(rs.drought, cdd)
	}
	if err != nil {
		return skip(domain.ComponentDrought, err)
	}
	return nil
}

type referenceBuilder struct {
	ref   *baseline.Reference
	opts  Options
	align *standardize.Aligners
	log   *slog.Logger
}

func (b referenceBuilder) temperature(tx, tn domain.GridSeries) error {
	if tx.Len() == 0 {
		b.log.Warn("component has no reference data", "component", "temperature")
		return nil
	}
	thrTx, err := baseline.Thresholds(tx, b.opts.Reference, b.opts.LowQuantile, b.opts.HighQuantile)
	if err != nil {
		return fmt.Errorf("threshold %s: %w", baseline.ThresholdTx, err)
	}
	thrTn, err := baseline.Thresholds(tn, b.opts.Reference, b.opts.LowQuantile, b.opts.HighQuantile)
	if err != nil {
		return fmt.Errorf("threshold %s: %w", baseline.ThresholdTn, err)
	}
	b.ref.Thresholds[baseline.ThresholdTx] = thrTx
	b.ref.Thresholds[baseline.ThresholdTn] = thrTn

	counts, err := extract.TemperatureExceedance(tx, tn, thrTx, thrTn, b.align)
	if err != nil {
		return fmt.Errorf("temperature counts: %w", err)
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
		if err := b.monthly(kv.key, kv.s); err != nil {
			return err
		}
	}
	return nil
}

func (b referenceBuilder) wind(power domain.GridSeries) error {
	if power.Len() == 0 {
		b.log.Warn("component has no reference data", "component", domain.ComponentWind)
		return nil
	}
	thr, err := baseline.Thresholds(power, b.opts.Reference, 0, b.opts.WindPercentile)
	if err != nil {
		return fmt.Errorf("threshold %s: %w", baseline.ThresholdWindPower, err)
	}
	b.ref.Thresholds[baseline.ThresholdWindPower] = thr

	frac, err := extract.ExceedanceFraction(power, thr, b.align)
	if err != nil {
		return fmt.Errorf("wind fraction: %w", err)
	}
	return b.monthly(baseline.KeyWind, frac)
}

// monthly computes and stores the baseline of a monthly feature. Sparse
// months fail the build unless AllowSparse is set.
func (b referenceBuilder) monthly(key string, s domain.GridSeries) error {
	if s.Len() == 0 {
		b.log.Warn("component has no reference data", "component", key)
		return nil
	}
	base, err := baseline.Compute(s, b.opts.Reference, baseline.Options{MinSamples: b.opts.MinSamples, Version: b.ref.Version})
	var sparse *domain.InsufficientSamplesError
	if errors.As(err, &sparse) && b.opts.AllowSparse {
		b.log.Warn("sparse baseline months", "component", key, "months", len(sparse.Months), "detail", sparse.Error())
		err = nil
	}
	if err != nil {
		return fmt.Errorf("baseline %s: %w", key, err)
	}
	b.ref.Baselines[key] = base
	return nil
}
