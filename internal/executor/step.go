package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/forgepipe/forgepipe/internal/bus"
	"github.com/forgepipe/forgepipe/internal/condition"
	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
)

// Executor drives one step at a time through its state machine:
// pending -> running -> {skipped | completed | failed}. A step never
// re-enters pending.
type Executor struct {
	Invoker invoker.Invoker
	Backoff Backoff

	// Bus is the optional shared-state capability threaded into every
	// invocation context. May be nil.
	Bus bus.Bus
}

// New creates an Executor with the default backoff policy.
func New(inv invoker.Invoker) *Executor {
	return &Executor{Invoker: inv, Backoff: ExponentialBackoff}
}

// RunStep executes a single step and records every transition into rec.
// The returned error is the step's final failure, already recorded; the
// caller decides whether it aborts the run.
func (e *Executor) RunStep(ctx context.Context, def *model.PipelineDefinition, rec *Record, step model.StepDefinition) error {
	logger := ctxlog.FromContext(ctx).With("step", step.ID)

	rec.MarkStepRunning(step.ID)
	vars := rec.VariablesSnapshot()

	ictx := invoker.Context{
		PipelineName: def.Name,
		ExecutionID:  rec.ExecutionID(),
		StepID:       step.ID,
		Variables:    vars,
		Environment:  rec.EnvironmentSnapshot(),
		Bus:          e.Bus,
	}

	// Guard condition: false means skip, with no hooks run, no retries
	// consumed, and the invoker never called.
	if step.Condition != "" {
		ok := condition.Evaluate(step.Condition, vars)
		rec.SetConditionResult(step.ID, ok)
		if !ok {
			logger.Info("Skipping step, condition evaluated false.", "condition", step.Condition)
			rec.MarkStepSkipped(step.ID)
			return nil
		}
	}

	hookCtx := ictx
	hookCtx.Variables = mergeParams(vars, step.Parameters)
	e.RunHooks(ctx, def.Hooks.BeforeStep, hookCtx)

	retries := def.EffectiveRetries(&step)
	opts := invoker.Options{
		Timeout:  def.EffectiveTimeout(&step),
		ActionID: fmt.Sprintf("%s_%s", rec.ExecutionID(), step.ID),
	}

	logger.Info("▶️ Starting step", "action", step.Action)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			rec.IncRetry(step.ID)
			logger.Info("Retrying step.", "attempt", attempt, "maxRetries", retries)
		}

		res, err := e.Invoker.Invoke(ctx, step.Action, step.Parameters, ictx, opts)
		if err == nil && res != nil && !res.Success {
			// A business failure retries like any other failure.
			err = fmt.Errorf("action %q reported failure: %s", step.Action, res.Message)
		}
		if err == nil {
			e.RunHooks(ctx, def.Hooks.AfterStep, hookCtx)
			rec.MarkStepCompleted(step.ID, res)
			logger.Info("✅ Finished step")
			return nil
		}

		lastErr = err
		logger.Warn("Step attempt failed.", "attempt", attempt, "error", err)

		if attempt < retries {
			if err := e.pause(ctx, e.Backoff(attempt)); err != nil {
				lastErr = err
				break
			}
			// Cancellation may have flipped the step while we slept; stop
			// retrying but leave the bookkeeping as Cancel wrote it.
			if rec.Status() == model.StatusCancelled {
				return nil
			}
		}
	}

	rec.MarkStepFailed(step.ID, lastErr)
	return fmt.Errorf("step %q failed after %d attempt(s): %w", step.ID, retriesToAttempts(retries), lastErr)
}

// pause sleeps for the backoff duration, waking early on context
// cancellation.
func (e *Executor) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func mergeParams(vars map[string]any, params map[string]any) map[string]any {
	out := make(map[string]any, len(vars)+len(params))
	for k, v := range vars {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}

func retriesToAttempts(retries int) int { return retries + 1 }
