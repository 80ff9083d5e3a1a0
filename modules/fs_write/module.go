// Package fs_write provides the 'fs_write' action, the basic file emitter:
// it writes content to a path, creating parent directories as needed.
package fs_write

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"

	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
	"github.com/forgepipe/forgepipe/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the fs_write action.
type Input struct {
	Path    string `mapstructure:"path"`
	Content string `mapstructure:"content"`

	// Overwrite allows replacing an existing file. Without it, writing to
	// an existing path is a business failure, not an error.
	Overwrite bool `mapstructure:"overwrite"`
}

// Run is the handler for the 'fs_write' action.
func Run(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
	var input Input
	if err := mapstructure.Decode(params, &input); err != nil {
		return nil, fmt.Errorf("decoding fs_write parameters: %w", err)
	}
	if input.Path == "" {
		return &model.ActionResult{Success: false, Message: "fs_write requires a 'path' parameter"}, nil
	}

	logger := ctxlog.FromContext(ctx)

	_, statErr := os.Stat(input.Path)
	exists := statErr == nil
	if exists && !input.Overwrite {
		return &model.ActionResult{
			Success: false,
			Message: fmt.Sprintf("refusing to overwrite existing file %q", input.Path),
		}, nil
	}

	if dir := filepath.Dir(input.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory for %q: %w", input.Path, err)
		}
	}
	if err := os.WriteFile(input.Path, []byte(input.Content), 0o644); err != nil {
		return nil, fmt.Errorf("writing %q: %w", input.Path, err)
	}

	logger.Info("Wrote file.", "path", input.Path, "bytes", len(input.Content))

	res := &model.ActionResult{
		Success:  true,
		Metadata: map[string]any{"path": input.Path, "bytes": len(input.Content)},
	}
	if exists {
		res.FilesModified = []string{input.Path}
	} else {
		res.FilesCreated = []string{input.Path}
	}
	return res, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("fs_write", Run)
}
