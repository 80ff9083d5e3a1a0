package model

import (
	"time"
)

// PipelineExecution is the mutable record of one pipeline run. It is
// created when execution starts and retained in the orchestrator's history
// until explicitly cleared. All mutation happens under the owning run's
// lock; callers outside the engine only ever see snapshots.
type PipelineExecution struct {
	// ID uniquely identifies this run.
	ID string

	// PipelineName is the registered name of the definition that was run.
	PipelineName string

	Status    Status
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Steps holds one record per step definition, in definition order.
	Steps []*StepExecution

	// Variables start as the definition defaults merged with per-run
	// overrides; completed steps add their result metadata under
	// "<stepID>_<key>".
	Variables map[string]any

	Environment map[string]string

	// Errors accumulates the messages of every step failure and any
	// run-level error, in the order they occurred.
	Errors []string

	Metadata ExecutionMetadata
}

// ExecutionMetadata holds the step accounting for a run.
type ExecutionMetadata struct {
	TotalSteps     int
	CompletedSteps int
	FailedSteps    int
	SkippedSteps   int
}

// StepExecution is the per-step slice of a run record.
type StepExecution struct {
	StepID string

	// ActionID is unique per run: "<executionID>_<stepID>". It is handed to
	// the invoker so collaborators can correlate in-flight work.
	ActionID string

	Status    Status
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Result is the invoker's result for the final successful attempt.
	Result *ActionResult

	// Error is the message of the last failed attempt, empty otherwise.
	Error string

	// RetryCount is the number of attempts beyond the first.
	RetryCount int

	// DependenciesMet is set when the scheduler releases the step.
	DependenciesMet bool

	// ConditionResult records the outcome of the guard expression, nil when
	// the step has no condition.
	ConditionResult *bool
}

// ActionResult is what an action invocation produces. Business failures are
// expressed as Success=false with a message; the invoker reserves Go errors
// for infrastructure problems such as an unknown action.
type ActionResult struct {
	Success       bool
	Message       string
	FilesCreated  []string
	FilesModified []string
	FilesDeleted  []string
	Metadata      map[string]any
}

// Clone returns a deep copy of the execution record, safe to hand to
// callers while the run is still mutating the original.
func (e *PipelineExecution) Clone() *PipelineExecution {
	out := *e
	out.Steps = make([]*StepExecution, len(e.Steps))
	for i, s := range e.Steps {
		sc := *s
		if s.ConditionResult != nil {
			v := *s.ConditionResult
			sc.ConditionResult = &v
		}
		out.Steps[i] = &sc
	}
	out.Variables = make(map[string]any, len(e.Variables))
	for k, v := range e.Variables {
		out.Variables[k] = v
	}
	out.Environment = make(map[string]string, len(e.Environment))
	for k, v := range e.Environment {
		out.Environment[k] = v
	}
	out.Errors = append([]string(nil), e.Errors...)
	return &out
}

// StepByID returns the step record with the given id, or nil.
func (e *PipelineExecution) StepByID(id string) *StepExecution {
	for _, s := range e.Steps {
		if s.StepID == id {
			return s
		}
	}
	return nil
}
