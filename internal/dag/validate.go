package dag

import (
	"fmt"

	"github.com/forgepipe/forgepipe/internal/model"
)

// ValidationError reports a structural problem with a pipeline definition.
// StepID names the offending step when the problem is attributable to one.
type ValidationError struct {
	Pipeline string
	StepID   string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("pipeline %q: step %q: %s", e.Pipeline, e.StepID, e.Reason)
	}
	return fmt.Sprintf("pipeline %q: %s", e.Pipeline, e.Reason)
}

// Validate checks a pipeline definition before registration: non-empty name
// and step list, unique step ids, dependency references that resolve, and
// an acyclic depends-on relation. Checks run in that order and fail fast,
// so a definition is either fully accepted or rejected with the first
// offending step named.
func Validate(def *model.PipelineDefinition) error {
	if def.Name == "" {
		return &ValidationError{Reason: "pipeline name must not be empty"}
	}
	if len(def.Steps) == 0 {
		return &ValidationError{Pipeline: def.Name, Reason: "pipeline has no steps"}
	}

	seen := make(map[string]bool, len(def.Steps))
	for i := range def.Steps {
		s := &def.Steps[i]
		if s.ID == "" {
			return &ValidationError{Pipeline: def.Name, Reason: fmt.Sprintf("step at index %d has no id", i)}
		}
		if seen[s.ID] {
			return &ValidationError{Pipeline: def.Name, StepID: s.ID, Reason: "duplicate step id"}
		}
		seen[s.ID] = true
	}

	for i := range def.Steps {
		s := &def.Steps[i]
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return &ValidationError{
					Pipeline: def.Name,
					StepID:   s.ID,
					Reason:   fmt.Sprintf("depends on non-existent step %q", dep),
				}
			}
			if dep == s.ID {
				return &ValidationError{Pipeline: def.Name, StepID: s.ID, Reason: "step depends on itself"}
			}
		}
	}

	if id, ok := findCycle(def.Steps); ok {
		return &ValidationError{Pipeline: def.Name, StepID: id, Reason: "dependency cycle detected"}
	}
	return nil
}

// findCycle runs a depth-first search over the depends-on relation.
// visiting marks nodes on the current path, visited marks fully explored
// nodes; reaching a node already on the path means a cycle through it.
func findCycle(steps []model.StepDefinition) (string, bool) {
	deps := make(map[string][]string, len(steps))
	for i := range steps {
		deps[steps[i].ID] = steps[i].DependsOn
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		visiting[id] = true
		for _, dep := range deps[id] {
			if visiting[dep] {
				return dep, true
			}
			if !visited[dep] {
				if cycleID, found := visit(dep); found {
					return cycleID, true
				}
			}
		}
		delete(visiting, id)
		visited[id] = true
		return "", false
	}

	for i := range steps {
		if !visited[steps[i].ID] {
			if cycleID, found := visit(steps[i].ID); found {
				return cycleID, true
			}
		}
	}
	return "", false
}
