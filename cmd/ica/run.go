package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/climate-index/internal/adapter/csvstore"
	"github.com/couchcryptid/climate-index/internal/baseline"
	"github.com/couchcryptid/climate-index/internal/pipeline"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute component anomalies and the composite index of every region",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext()
		defer stop()
		return a.run(ctx)
	},
}

func (a *app) run(ctx context.Context) error {
	up, err := a.uploader(ctx)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	out, err := a.outputs(ctx, up)
	if err != nil {
		return err
	}

	runner := pipeline.New(csvstore.NewLoader(a.cfg.DataDir), out, pipeline.OptionsFromConfig(a.cfg, a.runID), a.logger, a.metrics)
	shutdown := a.serve(runner)
	defer shutdown()

	jobs := a.jobs()
	for i := range jobs {
		path := filepath.Join(a.cfg.ReferenceDir, baseline.FileName(jobs[i].Name))
		ref, err := baseline.LoadReference(path)
		if err != nil {
			// The runner reports the region as failed.
			a.logger.Error("reference unavailable", "region", jobs[i].Name, "path", path, "error", err)
			continue
		}
		jobs[i].Reference = ref
	}

	runErr := runner.Run(ctx, jobs)

	if up != nil && (a.cfg.Export.CSV || a.cfg.Export.XLSX) {
		n, err := up.UploadDir(ctx, a.cfg.OutputDir)
		if err != nil {
			a.logger.Error("export upload failed", "error", err)
		} else {
			a.logger.Info("exports uploaded", "files", n)
		}
	}
	return runErr
}
