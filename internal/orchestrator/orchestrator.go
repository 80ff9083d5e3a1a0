// Package orchestrator is the public surface of the pipeline engine:
// registration, execution, cancellation, and the execution history.
//
// An Orchestrator is an explicitly constructed instance owned by the
// caller. There is no process-wide singleton; tests run as many
// independent instances as they like.
package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/forgepipe/forgepipe/internal/bus"
	"github.com/forgepipe/forgepipe/internal/dag"
	"github.com/forgepipe/forgepipe/internal/executor"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
)

// ErrPipelineNotFound is returned when execution names an unregistered
// pipeline. No execution record is created in that case.
var ErrPipelineNotFound = errors.New("pipeline not found")

// Stats summarizes an orchestrator's registered pipelines and run history.
type Stats struct {
	TotalPipelines      int
	TotalExecutions     int
	RunningExecutions   int
	CompletedExecutions int
	FailedExecutions    int
}

// Option configures an Orchestrator at construction.
type Option func(*Orchestrator)

// WithBus injects the shared-state/messaging capability handed to every
// step and hook context.
func WithBus(b bus.Bus) Option {
	return func(o *Orchestrator) { o.steps.Bus = b }
}

// WithBackoff replaces the retry backoff policy. Tests use this to retry
// without real delays.
func WithBackoff(b executor.Backoff) Option {
	return func(o *Orchestrator) { o.steps.Backoff = b }
}

// Orchestrator owns the registered pipeline definitions and the execution
// history of one engine instance.
type Orchestrator struct {
	steps *executor.Executor

	mu        sync.RWMutex
	pipelines map[string]*model.PipelineDefinition
	records   map[string]*executor.Record
	order     []string
}

// New constructs an orchestrator around the given action invoker.
func New(inv invoker.Invoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:     executor.New(inv),
		pipelines: make(map[string]*model.PipelineDefinition),
		records:   make(map[string]*executor.Record),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterPipeline validates and stores a pipeline definition. Validation
// failures leave no partial state behind. Registering an existing name is
// an error; definitions are immutable once accepted.
func (o *Orchestrator) RegisterPipeline(def model.PipelineDefinition) error {
	if err := dag.Validate(&def); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.pipelines[def.Name]; exists {
		return fmt.Errorf("pipeline %q is already registered", def.Name)
	}
	o.pipelines[def.Name] = &def
	return nil
}

// Pipeline returns the registered definition with the given name.
func (o *Orchestrator) Pipeline(name string) (*model.PipelineDefinition, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	def, ok := o.pipelines[name]
	return def, ok
}

// CancelExecution force-transitions a running execution, and its running
// steps, to cancelled. It returns false for unknown ids and executions
// that are not running. Cancellation is bookkeeping only: an invocation
// already in flight runs to completion, but no further step is scheduled.
func (o *Orchestrator) CancelExecution(id string) bool {
	o.mu.RLock()
	rec, ok := o.records[id]
	o.mu.RUnlock()
	if !ok {
		return false
	}
	return rec.Cancel()
}

// Execution returns a snapshot of one execution record.
func (o *Orchestrator) Execution(id string) (*model.PipelineExecution, bool) {
	o.mu.RLock()
	rec, ok := o.records[id]
	o.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return rec.Snapshot(), true
}

// Executions returns snapshots of every retained execution, oldest first.
func (o *Orchestrator) Executions() []*model.PipelineExecution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*model.PipelineExecution, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.records[id].Snapshot())
	}
	return out
}

// ExecutionsByStatus returns snapshots of the retained executions in the
// given status, oldest first.
func (o *Orchestrator) ExecutionsByStatus(status model.Status) []*model.PipelineExecution {
	var out []*model.PipelineExecution
	for _, e := range o.Executions() {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// Stats returns the current accounting across pipelines and executions.
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := Stats{
		TotalPipelines:  len(o.pipelines),
		TotalExecutions: len(o.records),
	}
	for _, rec := range o.records {
		switch rec.Status() {
		case model.StatusRunning:
			s.RunningExecutions++
		case model.StatusCompleted:
			s.CompletedExecutions++
		case model.StatusFailed:
			s.FailedExecutions++
		}
	}
	return s
}

// ClearExecutions drops the entire execution history. Registered
// definitions are unaffected.
func (o *Orchestrator) ClearExecutions() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = make(map[string]*executor.Record)
	o.order = nil
}

// track stores a new execution record in the history.
func (o *Orchestrator) track(rec *executor.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records[rec.ExecutionID()] = rec
	o.order = append(o.order, rec.ExecutionID())
}

func newExecutionID() string {
	return uuid.NewString()
}
