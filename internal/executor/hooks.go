package executor

import (
	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/invoker"

	"context"
)

// RunHooks invokes a list of hook actions sequentially, best-effort. The
// pipeline and step identifiers are merged into each hook's variables. A
// hook that errors or reports failure is logged and swallowed; hooks never
// alter the outcome of a run.
func (e *Executor) RunHooks(ctx context.Context, hooks []string, ictx invoker.Context) {
	if len(hooks) == 0 {
		return
	}
	logger := ctxlog.FromContext(ctx)

	vars := make(map[string]any, len(ictx.Variables)+3)
	for k, v := range ictx.Variables {
		vars[k] = v
	}
	vars["pipelineId"] = ictx.PipelineName
	vars["executionId"] = ictx.ExecutionID
	if ictx.StepID != "" {
		vars["stepId"] = ictx.StepID
	}
	hookCtx := ictx
	hookCtx.Variables = vars

	for _, name := range hooks {
		res, err := e.Invoker.Invoke(ctx, name, nil, hookCtx, invoker.Options{ActionID: ictx.ExecutionID + "_hook_" + name})
		switch {
		case err != nil:
			logger.Warn("Hook failed, continuing.", "hook", name, "error", err)
		case res != nil && !res.Success:
			logger.Warn("Hook reported failure, continuing.", "hook", name, "message", res.Message)
		}
	}
}
