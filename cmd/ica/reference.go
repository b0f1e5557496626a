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

var overwriteReference bool

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Build and persist the reference climatology of every region",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext()
		defer stop()
		return a.buildReferences(ctx)
	},
}

func (a *app) buildReferences(ctx context.Context) error {
	up, err := a.uploader(ctx)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	runner := pipeline.New(csvstore.NewLoader(a.cfg.DataDir), pipeline.Outputs{}, pipeline.OptionsFromConfig(a.cfg, a.runID), a.logger, a.metrics)
	shutdown := a.serve(runner)
	defer shutdown()

	save := func(ctx context.Context, ref *baseline.Reference) error {
		path := filepath.Join(a.cfg.ReferenceDir, baseline.FileName(ref.Region))
		if err := ref.Save(path, overwriteReference); err != nil {
			return err
		}
		a.logger.Info("reference saved", "region", ref.Region, "path", path, "version", ref.Version)
		if up != nil {
			return up.UploadFile(ctx, filepath.Join("reference", filepath.Base(path)), path)
		}
		return nil
	}
	return runner.BuildReferences(ctx, a.jobs(), save)
}
