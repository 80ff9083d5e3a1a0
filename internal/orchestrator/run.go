package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/dag"
	"github.com/forgepipe/forgepipe/internal/executor"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
)

// pollInterval is how often the run loop re-checks progress when nothing
// is ready but steps are still marked running.
const pollInterval = 25 * time.Millisecond

// ExecutePipeline runs a registered pipeline to completion and returns its
// execution record. Per-run variables override the definition defaults.
//
// On an unrecovered step failure the error is returned alongside the
// partial record; the record also stays retrievable through Execution. An
// unknown pipeline name returns ErrPipelineNotFound with no record
// created.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, name string, variables map[string]any) (*model.PipelineExecution, error) {
	def, ok := o.Pipeline(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPipelineNotFound, name)
	}

	rec := executor.NewRecord(def, newExecutionID(), variables)
	o.track(rec)
	rec.SetStatus(model.StatusRunning)

	logger := ctxlog.FromContext(ctx).With("pipeline", name, "execution", rec.ExecutionID())
	logger.Info("🚀 Starting pipeline run", "steps", len(def.Steps))

	err := o.run(ctxlog.WithLogger(ctx, logger), def, rec)
	if err != nil {
		rec.MarkFailed()
		rec.AppendError(err.Error())
		o.steps.RunHooks(ctx, def.Hooks.OnError, o.pipelineContext(def, rec))
		logger.Error("Pipeline run failed.", "error", err)
		return rec.Snapshot(), err
	}

	rec.Finalize()
	snap := rec.Snapshot()
	logger.Info("🏁 Pipeline run finished", "status", snap.Status,
		"completed", snap.Metadata.CompletedSteps,
		"failed", snap.Metadata.FailedSteps,
		"skipped", snap.Metadata.SkippedSteps)
	return snap, nil
}

// run drives the scheduling loop: compute the ready set, dispatch it as a
// batch, repeat until every step is terminal or progress stalls.
func (o *Orchestrator) run(ctx context.Context, def *model.PipelineDefinition, rec *executor.Record) error {
	logger := ctxlog.FromContext(ctx)

	o.steps.RunHooks(ctx, def.Hooks.BeforePipeline, o.pipelineContext(def, rec))

	for {
		if rec.Status() == model.StatusCancelled {
			logger.Warn("Run cancelled, stopping scheduling.")
			break
		}
		if rec.AllStepsTerminal() {
			break
		}

		ready := dag.Ready(def.Steps, rec.StepStates())
		if len(ready) == 0 {
			if rec.RunningSteps() > 0 {
				// A batch dispatched elsewhere is still in flight; poll
				// until it makes progress.
				if err := sleepCtx(ctx, pollInterval); err != nil {
					return err
				}
				continue
			}
			// No step is ready and nothing is running: the remaining
			// pending steps can never be released. Leave them pending and
			// stop.
			if pending := rec.PendingSteps(); len(pending) > 0 {
				logger.Warn("Pipeline stalled, steps left pending.", "steps", pending)
			}
			break
		}

		if err := o.runBatch(ctx, def, rec, ready); err != nil {
			return err
		}
	}

	o.steps.RunHooks(ctx, def.Hooks.AfterPipeline, o.pipelineContext(def, rec))
	return nil
}

// runBatch executes one wave of ready steps. The wave runs concurrently
// when the pipeline's parallel setting is on or any ready step asks for
// it; otherwise steps run one at a time in definition order. A failure of
// a step without continue-on-error (at either level) aborts the run; with
// it, the failure is recorded and the loop moves on.
func (o *Orchestrator) runBatch(ctx context.Context, def *model.PipelineDefinition, rec *executor.Record, batch []model.StepDefinition) error {
	parallel := def.Settings.Parallel
	for i := range batch {
		if batch[i].Parallel {
			parallel = true
			break
		}
	}

	if !parallel {
		for i := range batch {
			step := batch[i]
			if rec.Status() == model.StatusCancelled {
				return nil
			}
			if err := o.steps.RunStep(ctx, def, rec, step); err != nil {
				if !def.ContinuesOnError(&step) {
					return err
				}
			}
		}
		return nil
	}

	// Fire the whole wave and wait for all of it regardless of individual
	// failures, then surface the first aborting one.
	var wg sync.WaitGroup
	errs := make([]error, len(batch))
	for i := range batch {
		wg.Add(1)
		go func(i int, step model.StepDefinition) {
			defer wg.Done()
			if err := o.steps.RunStep(ctx, def, rec, step); err != nil {
				if !def.ContinuesOnError(&step) {
					errs[i] = err
				}
			}
		}(i, batch[i])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// pipelineContext builds the invocation context for pipeline-level hooks.
func (o *Orchestrator) pipelineContext(def *model.PipelineDefinition, rec *executor.Record) invoker.Context {
	return invoker.Context{
		PipelineName: def.Name,
		ExecutionID:  rec.ExecutionID(),
		Variables:    rec.VariablesSnapshot(),
		Environment:  rec.EnvironmentSnapshot(),
		Bus:          o.steps.Bus,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
