// Package print provides the 'print' action: it logs its message and
// succeeds. Useful as a pipeline smoke test and as a lifecycle hook.
package print

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
	"github.com/forgepipe/forgepipe/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the print action.
type Input struct {
	Message string `mapstructure:"message"`
}

// Run is the handler for the 'print' action.
func Run(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
	var input Input
	if err := mapstructure.Decode(params, &input); err != nil {
		return nil, fmt.Errorf("decoding print parameters: %w", err)
	}

	ctxlog.FromContext(ctx).Info("print", "message", input.Message, "step", ictx.StepID)
	return &model.ActionResult{Success: true, Message: input.Message}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("print", Run)
}
