package dag

import "github.com/forgepipe/forgepipe/internal/model"

// Ready returns the steps eligible to run now, given the current per-step
// records. A step is ready when it is still pending and every step it
// depends on has reached a terminal state.
//
// Terminal means finished for any reason — success, failure, or skip — not
// necessarily succeeded. A downstream step is therefore released once its
// dependency has terminated, which lets sibling branches proceed after a
// continue-on-error failure upstream. Steps whose own record is already
// failed or skipped are never scheduled again.
func Ready(steps []model.StepDefinition, records map[string]*model.StepExecution) []model.StepDefinition {
	terminal := make(map[string]bool, len(records))
	running := make(map[string]bool, len(records))
	for id, rec := range records {
		if rec.Status.Terminal() {
			terminal[id] = true
		}
		if rec.Status == model.StatusRunning {
			running[id] = true
		}
	}

	var ready []model.StepDefinition
	for i := range steps {
		s := steps[i]
		if terminal[s.ID] || running[s.ID] {
			continue
		}
		if rec, ok := records[s.ID]; ok {
			if rec.Status == model.StatusFailed || rec.Status == model.StatusSkipped {
				continue
			}
		}
		eligible := true
		for _, dep := range s.DependsOn {
			if !terminal[dep] {
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, s)
		}
	}
	return ready
}
