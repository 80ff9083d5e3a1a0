// Package template_render provides the 'template_render' action: it
// renders a Go text/template against the run variables plus an optional
// data object and writes the result to a file.
package template_render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/mitchellh/mapstructure"

	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
	"github.com/forgepipe/forgepipe/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the template_render action.
type Input struct {
	// Template is the inline template source.
	Template string `mapstructure:"template"`

	// Output is the file path to write the rendered result to.
	Output string `mapstructure:"output"`

	// Data is merged over the run variables as the template context.
	Data map[string]any `mapstructure:"data"`
}

// Run is the handler for the 'template_render' action.
func Run(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
	var input Input
	if err := mapstructure.Decode(params, &input); err != nil {
		return nil, fmt.Errorf("decoding template_render parameters: %w", err)
	}
	if input.Template == "" || input.Output == "" {
		return &model.ActionResult{
			Success: false,
			Message: "template_render requires 'template' and 'output' parameters",
		}, nil
	}

	tmpl, err := template.New(ictx.StepID).Parse(input.Template)
	if err != nil {
		return &model.ActionResult{Success: false, Message: fmt.Sprintf("invalid template: %v", err)}, nil
	}

	data := make(map[string]any, len(ictx.Variables)+len(input.Data))
	for k, v := range ictx.Variables {
		data[k] = v
	}
	for k, v := range input.Data {
		data[k] = v
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return &model.ActionResult{Success: false, Message: fmt.Sprintf("rendering template: %v", err)}, nil
	}

	if dir := filepath.Dir(input.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory for %q: %w", input.Output, err)
		}
	}
	if err := os.WriteFile(input.Output, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing %q: %w", input.Output, err)
	}

	ctxlog.FromContext(ctx).Info("Rendered template.", "output", input.Output, "bytes", buf.Len())

	return &model.ActionResult{
		Success:      true,
		FilesCreated: []string{input.Output},
		Metadata:     map[string]any{"output": input.Output, "bytes": buf.Len()},
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("template_render", Run)
}
