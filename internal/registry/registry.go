// Package registry holds the named action handlers for a single engine
// instance and implements the invoker contract on top of them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
)

// ErrUnknownAction is returned when an invocation names an action that was
// never registered. This is an infrastructure error, not a business
// failure.
var ErrUnknownAction = errors.New("unknown action")

// HandlerFunc is the signature every action implements.
type HandlerFunc func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error)

// Module is the interface action packs implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps action names to handlers for one engine instance. There is
// no process-global registry; each orchestrator owns its own.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// New creates an empty Registry and registers the given modules into it.
func New(modules ...Module) *Registry {
	r := &Registry{handlers: make(map[string]HandlerFunc)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterAction binds a handler to a name, replacing any previous binding.
func (r *Registry) RegisterAction(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Actions returns the registered action names in no particular order.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Invoke implements invoker.Invoker. The timeout from opts is applied as a
// context deadline; a handler that ignores it is the handler's bug, per the
// invoker contract.
func (r *Registry) Invoke(ctx context.Context, action string, params map[string]any, ictx invoker.Context, opts invoker.Options) (*model.ActionResult, error) {
	r.mu.RLock()
	fn, ok := r.handlers[action]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Invoking action.", "action", action, "actionID", opts.ActionID, "step", ictx.StepID)

	res, err := fn(ctx, ictx, params)
	if err != nil {
		return nil, err
	}
	if res == nil {
		// A nil result with a nil error counts as a bare success.
		res = &model.ActionResult{Success: true}
	}
	return res, nil
}
