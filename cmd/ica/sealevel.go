package main

import (
	"context"
	"fmt"

	"github.com/couchcryptid/climate-index/internal/adapter/psmsl"
	"github.com/couchcryptid/climate-index/internal/adapter/xlsx"
	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/sealevel"
	"github.com/spf13/cobra"
)

var sealevelRefStart, sealevelRefEnd int

var sealevelCmd = &cobra.Command{
	Use:   "sealevel",
	Short: "Compute tide-gauge sea level anomalies and trends",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext()
		defer stop()
		return a.seaLevel(ctx)
	},
}

// seaLevelWriter receives one station report.
type seaLevelWriter interface {
	WriteSeaLevel(ctx context.Context, rep sealevel.Report) error
}

func (a *app) seaLevel(ctx context.Context) error {
	var ref *domain.RefPeriod
	if sealevelRefStart != 0 || sealevelRefEnd != 0 {
		if sealevelRefStart == 0 || sealevelRefEnd < sealevelRefStart {
			return fmt.Errorf("invalid sea level reference %d-%d", sealevelRefStart, sealevelRefEnd)
		}
		ref = &domain.RefPeriod{Start: sealevelRefStart, End: sealevelRefEnd}
	}

	var writers []seaLevelWriter
	if a.cfg.Export.CSV {
		writers = append(writers, a.csvWriter())
	}
	if a.cfg.Export.XLSX {
		writers = append(writers, xlsx.NewWriter(a.cfg.OutputDir, a.cfg.MovingAverageWindow, a.logger))
	}
	store, err := a.sqlStore(ctx)
	if err != nil {
		return fmt.Errorf("sql sink: %w", err)
	}
	if store != nil {
		writers = append(writers, store)
	}

	client := psmsl.NewClient(a.cfg.SeaLevel.BaseURL, a.cfg.SeaLevel.Timeout, a.logger)
	stations := a.cfg.SeaLevel.Stations
	failed := 0
	for _, st := range stations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.station(ctx, client, st, ref, writers); err != nil {
			failed++
			a.metrics.RegionFailures.Inc()
			a.logger.Error("station failed", "station", st.Name, "error", err)
		}
	}
	if len(stations) > 0 && failed == len(stations) {
		return fmt.Errorf("all %d stations failed", failed)
	}
	return nil
}

func (a *app) station(ctx context.Context, client *psmsl.Client, st sealevel.Station, ref *domain.RefPeriod, writers []seaLevelWriter) error {
	records, err := client.Fetch(ctx, st)
	if err != nil {
		return err
	}
	rep, err := sealevel.Analyze(st, records, ref)
	if err != nil {
		return err
	}
	for _, w := range writers {
		if err := w.WriteSeaLevel(ctx, rep); err != nil {
			return fmt.Errorf("write %T: %w", w, err)
		}
	}
	a.logger.Info("station done",
		"station", st.Name,
		"records", len(rep.Anomalies),
		"trend_mm_per_year", rep.Trend.SlopeMMPerYear,
		"r2", rep.Trend.RSquared,
	)
	return nil
}
