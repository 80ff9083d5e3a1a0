package app

import (
	"context"
	"fmt"

	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/hclloader"
)

// Run loads the pipeline definitions, registers them, and executes either
// the selected pipeline or all of them in file order.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	loader := hclloader.NewLoader()
	defs, err := loader.Load(ctx, a.config.DefinitionsPath)
	if err != nil {
		return fmt.Errorf("loading pipeline definitions: %w", err)
	}
	if len(defs) == 0 {
		a.logger.Warn("No pipeline definitions found, nothing to run.", "path", a.config.DefinitionsPath)
		return nil
	}

	for i := range defs {
		if err := a.orch.RegisterPipeline(defs[i]); err != nil {
			return fmt.Errorf("registering pipeline: %w", err)
		}
		a.logger.Debug("Pipeline registered.", "pipeline", defs[i].Name, "steps", len(defs[i].Steps))
	}

	var names []string
	if a.config.PipelineName != "" {
		names = []string{a.config.PipelineName}
	} else {
		for i := range defs {
			names = append(names, defs[i].Name)
		}
	}

	for _, name := range names {
		exec, err := a.orch.ExecutePipeline(ctx, name, nil)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", name, err)
		}
		a.logger.Info("Pipeline finished.",
			"pipeline", name,
			"status", exec.Status,
			"completed", exec.Metadata.CompletedSteps,
			"failed", exec.Metadata.FailedSteps,
			"skipped", exec.Metadata.SkippedSteps)
	}
	return nil
}
