// Package invoker defines the action invocation contract between the
// engine and its collaborators.
//
// The engine never knows what an action does; it hands over a name, the
// step's parameters, and an execution context, and gets back a result. An
// expected business failure is a Result with Success=false. A Go error is
// reserved for infrastructure problems, such as a name that resolves to
// nothing.
package invoker

import (
	"context"
	"time"

	"github.com/forgepipe/forgepipe/internal/bus"
	"github.com/forgepipe/forgepipe/internal/model"
)

// Context carries the run-scoped information an action may need. Variables
// and Environment are snapshots; mutating them has no effect on the run.
type Context struct {
	PipelineName string
	ExecutionID  string
	StepID       string

	Variables   map[string]any
	Environment map[string]string

	// Bus is the optional shared-state/messaging capability. Actions must
	// tolerate it being nil.
	Bus bus.Bus
}

// Options tune a single invocation.
type Options struct {
	// Timeout bounds the invocation. Zero means unbounded. The engine
	// relies on the invoker honoring this; it never force-kills a call.
	Timeout time.Duration

	// ActionID uniquely identifies this invocation within the run.
	ActionID string
}

// Invoker resolves an action by name and runs it.
type Invoker interface {
	Invoke(ctx context.Context, action string, params map[string]any, ictx Context, opts Options) (*model.ActionResult, error)
}
