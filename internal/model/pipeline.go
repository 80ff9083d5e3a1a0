package model

import "time"

// PipelineDefinition is a named, registered DAG of steps plus the shared
// variables, hooks, and settings a run starts from. It is validated at
// registration time and never mutated afterwards.
type PipelineDefinition struct {
	// Name uniquely identifies the pipeline within an orchestrator.
	Name string

	// Steps is the ordered list of step definitions. Order matters for
	// sequential dispatch; dependency edges come from DependsOn.
	Steps []StepDefinition

	// Variables are the default bindings merged under per-run overrides.
	Variables map[string]any

	// Environment is an opaque string map handed to every action invocation.
	Environment map[string]string

	Hooks    Hooks
	Settings Settings
}

// StepDefinition is one named unit of work, referencing an external action
// by name.
type StepDefinition struct {
	// ID is unique within the pipeline.
	ID string

	// Action names the handler resolved through the action invoker.
	Action string

	// Parameters are passed verbatim to the action; resolution and
	// prompting happen inside the invoker collaborator.
	Parameters map[string]any

	// Condition is an optional restricted boolean expression over the run
	// variables. When it evaluates false the step is skipped without ever
	// reaching the invoker.
	Condition string

	// Parallel marks the step as eligible for concurrent dispatch even when
	// the pipeline-level setting is off.
	Parallel bool

	// DependsOn lists step IDs that must reach a terminal state before this
	// step becomes ready.
	DependsOn []string

	// Timeout overrides Settings.Timeout for this step when non-zero.
	Timeout time.Duration

	// Retries overrides Settings.Retries for this step when non-zero.
	// A value of N allows up to N+1 invocation attempts.
	Retries int

	// ContinueOnError lets the run proceed past this step's failure.
	ContinueOnError bool

	Tags []string
}

// Hooks are lists of action names run best-effort at lifecycle points.
// Hook failures are logged and swallowed; they never alter the outcome of
// a run.
type Hooks struct {
	BeforePipeline []string
	AfterPipeline  []string
	BeforeStep     []string
	AfterStep      []string
	OnError        []string
}

// Settings are the pipeline-level execution defaults.
type Settings struct {
	// Timeout is the default per-invocation timeout, passed down to the
	// action invoker. Zero means no timeout.
	Timeout time.Duration

	// Retries is the default retry budget for steps that do not set their
	// own.
	Retries int

	// ContinueOnError applies to every step unless the step overrides it.
	ContinueOnError bool

	// Parallel dispatches every ready batch concurrently.
	Parallel bool

	// MaxParallelSteps is advisory only; all ready steps in a wave run
	// together regardless.
	MaxParallelSteps int
}

// EffectiveRetries resolves the retry budget for a step against the
// pipeline settings.
func (d *PipelineDefinition) EffectiveRetries(s *StepDefinition) int {
	if s.Retries > 0 {
		return s.Retries
	}
	return d.Settings.Retries
}

// EffectiveTimeout resolves the invocation timeout for a step against the
// pipeline settings.
func (d *PipelineDefinition) EffectiveTimeout(s *StepDefinition) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return d.Settings.Timeout
}

// ContinuesOnError reports whether a failure of the given step should be
// recorded without aborting the run.
func (d *PipelineDefinition) ContinuesOnError(s *StepDefinition) bool {
	return s.ContinueOnError || d.Settings.ContinueOnError
}

// Step returns the step definition with the given id, or nil.
func (d *PipelineDefinition) Step(id string) *StepDefinition {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}
