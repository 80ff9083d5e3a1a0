package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/forgepipe/forgepipe/internal/model"
)

// Record wraps one PipelineExecution behind a mutex. Step goroutines in a
// concurrent batch all mutate the same counters, variables map, and error
// list, so every access funnels through here.
type Record struct {
	mu   sync.Mutex
	exec *model.PipelineExecution
	byID map[string]*model.StepExecution
}

// NewRecord builds a fresh execution record for a run: one pending step
// record per definition step, definition variables merged under the
// per-run overrides.
func NewRecord(def *model.PipelineDefinition, execID string, overrides map[string]any) *Record {
	vars := make(map[string]any, len(def.Variables)+len(overrides))
	for k, v := range def.Variables {
		vars[k] = v
	}
	for k, v := range overrides {
		vars[k] = v
	}
	env := make(map[string]string, len(def.Environment))
	for k, v := range def.Environment {
		env[k] = v
	}

	exec := &model.PipelineExecution{
		ID:           execID,
		PipelineName: def.Name,
		Status:       model.StatusPending,
		StartTime:    time.Now(),
		Variables:    vars,
		Environment:  env,
		Metadata:     model.ExecutionMetadata{TotalSteps: len(def.Steps)},
	}
	byID := make(map[string]*model.StepExecution, len(def.Steps))
	for i := range def.Steps {
		se := &model.StepExecution{
			StepID:   def.Steps[i].ID,
			ActionID: fmt.Sprintf("%s_%s", execID, def.Steps[i].ID),
			Status:   model.StatusPending,
		}
		exec.Steps = append(exec.Steps, se)
		byID[se.StepID] = se
	}
	return &Record{exec: exec, byID: byID}
}

// ExecutionID returns the run id.
func (r *Record) ExecutionID() string {
	return r.exec.ID
}

// PipelineName returns the registered name of the definition being run.
func (r *Record) PipelineName() string {
	return r.exec.PipelineName
}

// Status returns the current pipeline-level status.
func (r *Record) Status() model.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec.Status
}

// SetStatus transitions the pipeline-level status. Terminal states are
// sticky; a record never leaves one.
func (r *Record) SetStatus(s model.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec.Status.Terminal() {
		return
	}
	r.exec.Status = s
}

// Snapshot returns a deep copy of the execution record.
func (r *Record) Snapshot() *model.PipelineExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec.Clone()
}

// StepStates returns copies of every step record, keyed by step id, for
// the scheduler to compute the ready set from.
func (r *Record) StepStates() map[string]*model.StepExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*model.StepExecution, len(r.byID))
	for id, se := range r.byID {
		cp := *se
		out[id] = &cp
	}
	return out
}

// VariablesSnapshot returns a copy of the current run variables.
func (r *Record) VariablesSnapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.exec.Variables))
	for k, v := range r.exec.Variables {
		out[k] = v
	}
	return out
}

// EnvironmentSnapshot returns a copy of the run environment.
func (r *Record) EnvironmentSnapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.exec.Environment))
	for k, v := range r.exec.Environment {
		out[k] = v
	}
	return out
}

// MarkStepRunning releases a step into execution: dependencies met, status
// running, start time stamped.
func (r *Record) MarkStepRunning(stepID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	se := r.byID[stepID]
	if se == nil || se.Status.Terminal() {
		return
	}
	se.Status = model.StatusRunning
	se.StartTime = time.Now()
	se.DependenciesMet = true
}

// SetConditionResult records the outcome of a step's guard expression.
func (r *Record) SetConditionResult(stepID string, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if se := r.byID[stepID]; se != nil {
		se.ConditionResult = &v
	}
}

// IncRetry counts one retry attempt for a step.
func (r *Record) IncRetry(stepID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if se := r.byID[stepID]; se != nil {
		se.RetryCount++
	}
}

// MarkStepSkipped finishes a step whose condition evaluated false.
func (r *Record) MarkStepSkipped(stepID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	se := r.byID[stepID]
	if se == nil || se.Status.Terminal() {
		return
	}
	finishStep(se, model.StatusSkipped)
	r.exec.Metadata.SkippedSteps++
}

// MarkStepCompleted finishes a successful step, records its result, and
// merges any result metadata into the run variables under
// "<stepID>_<key>".
func (r *Record) MarkStepCompleted(stepID string, res *model.ActionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	se := r.byID[stepID]
	if se == nil || se.Status.Terminal() {
		return
	}
	se.Result = res
	finishStep(se, model.StatusCompleted)
	r.exec.Metadata.CompletedSteps++
	if res != nil {
		for k, v := range res.Metadata {
			r.exec.Variables[stepID+"_"+k] = v
		}
	}
}

// MarkStepFailed finishes a step whose retry budget is exhausted.
func (r *Record) MarkStepFailed(stepID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	se := r.byID[stepID]
	if se == nil || se.Status.Terminal() {
		return
	}
	se.Error = err.Error()
	finishStep(se, model.StatusFailed)
	r.exec.Metadata.FailedSteps++
	r.exec.Errors = append(r.exec.Errors, fmt.Sprintf("step %s: %s", stepID, err.Error()))
}

// AppendError records a run-level error message.
func (r *Record) AppendError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec.Errors = append(r.exec.Errors, msg)
}

// Cancel force-transitions a running execution, and every step still
// running inside it, to cancelled. It reports false when the execution is
// not running; terminal records are left untouched.
func (r *Record) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec.Status != model.StatusRunning {
		return false
	}
	now := time.Now()
	r.exec.Status = model.StatusCancelled
	r.exec.EndTime = now
	r.exec.Duration = now.Sub(r.exec.StartTime)
	for _, se := range r.byID {
		if se.Status == model.StatusRunning {
			finishStep(se, model.StatusCancelled)
		}
	}
	return true
}

// Finalize stamps the end of a run and computes its final status: failed
// when any step failed, completed otherwise. A cancelled run keeps its
// status.
func (r *Record) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec.Status.Terminal() {
		return
	}
	if r.exec.Metadata.FailedSteps > 0 {
		r.exec.Status = model.StatusFailed
	} else {
		r.exec.Status = model.StatusCompleted
	}
	now := time.Now()
	r.exec.EndTime = now
	r.exec.Duration = now.Sub(r.exec.StartTime)
}

// MarkFailed forces the run into the failed state after an unrecovered
// error, keeping the partial record intact.
func (r *Record) MarkFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec.Status.Terminal() {
		return
	}
	r.exec.Status = model.StatusFailed
	now := time.Now()
	r.exec.EndTime = now
	r.exec.Duration = now.Sub(r.exec.StartTime)
}

// PendingSteps lists the ids of steps that never left pending, for stall
// reporting.
func (r *Record) PendingSteps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, se := range r.exec.Steps {
		if se.Status == model.StatusPending {
			out = append(out, se.StepID)
		}
	}
	return out
}

// RunningSteps counts steps currently marked running.
func (r *Record) RunningSteps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, se := range r.byID {
		if se.Status == model.StatusRunning {
			n++
		}
	}
	return n
}

// AllStepsTerminal reports whether every step has finished one way or
// another.
func (r *Record) AllStepsTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, se := range r.byID {
		if !se.Status.Terminal() {
			return false
		}
	}
	return true
}

func finishStep(se *model.StepExecution, s model.Status) {
	now := time.Now()
	se.Status = s
	se.EndTime = now
	if !se.StartTime.IsZero() {
		se.Duration = now.Sub(se.StartTime)
	}
}
