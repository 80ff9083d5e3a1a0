// Package app wires the engine together: logger, action registry, bus,
// orchestrator, and the definition loader. The orchestrator instance is
// owned here and passed down explicitly; nothing in the engine is a
// process-wide singleton.
package app

import (
	"io"
	"log/slog"

	"github.com/forgepipe/forgepipe/internal/bus"
	"github.com/forgepipe/forgepipe/internal/orchestrator"
	"github.com/forgepipe/forgepipe/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	registry *registry.Registry
	orch     *orchestrator.Orchestrator
}

// NewApp constructs a fully initialized App with its own isolated logger,
// registry, bus, and orchestrator. When no modules are given, the core
// action set is registered.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New(modules...)
	logger.Debug("Action modules registered.", "count", len(modules), "actions", reg.Actions())

	orch := orchestrator.New(reg, orchestrator.WithBus(bus.NewInMemory()))

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		orch:     orch,
	}
}

// Registry returns the application's action registry. Primarily for tests.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Orchestrator returns the application's orchestrator. Primarily for
// tests.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}
