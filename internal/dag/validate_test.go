package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgepipe/forgepipe/internal/model"
)

func step(id string, deps ...string) model.StepDefinition {
	return model.StepDefinition{ID: id, Action: "noop", DependsOn: deps}
}

func TestValidate_AcceptsWellFormedPipeline(t *testing.T) {
	def := &model.PipelineDefinition{
		Name: "diamond",
		Steps: []model.StepDefinition{
			step("a"),
			step("b", "a"),
			step("c", "a"),
			step("d", "b", "c"),
		},
	}
	assert.NoError(t, Validate(def))
}

func TestValidate_EmptyName(t *testing.T) {
	def := &model.PipelineDefinition{Steps: []model.StepDefinition{step("a")}}
	err := Validate(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must not be empty")
}

func TestValidate_NoSteps(t *testing.T) {
	def := &model.PipelineDefinition{Name: "empty"}
	err := Validate(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}

func TestValidate_MissingStepID(t *testing.T) {
	def := &model.PipelineDefinition{
		Name:  "p",
		Steps: []model.StepDefinition{step("a"), {Action: "noop"}},
	}
	err := Validate(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1")
}

func TestValidate_DuplicateStepID(t *testing.T) {
	def := &model.PipelineDefinition{
		Name:  "p",
		Steps: []model.StepDefinition{step("a"), step("a")},
	}
	err := Validate(def)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a", verr.StepID)
	assert.Contains(t, verr.Reason, "duplicate")
}

func TestValidate_UnknownDependency(t *testing.T) {
	def := &model.PipelineDefinition{
		Name:  "p",
		Steps: []model.StepDefinition{step("a", "ghost")},
	}
	err := Validate(def)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a", verr.StepID)
	assert.Contains(t, verr.Reason, `"ghost"`)
}

func TestValidate_SelfDependency(t *testing.T) {
	def := &model.PipelineDefinition{
		Name:  "p",
		Steps: []model.StepDefinition{step("a", "a")},
	}
	err := Validate(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on itself")
}

func TestValidate_CycleDetected(t *testing.T) {
	def := &model.PipelineDefinition{
		Name: "p",
		Steps: []model.StepDefinition{
			step("a", "c"),
			step("b", "a"),
			step("c", "b"),
		},
	}
	err := Validate(def)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "cycle")
	assert.Contains(t, []string{"a", "b", "c"}, verr.StepID)
}

func TestValidate_DisjointComponentsWithCycle(t *testing.T) {
	// An acyclic component must not mask a cycle elsewhere.
	def := &model.PipelineDefinition{
		Name: "p",
		Steps: []model.StepDefinition{
			step("ok1"),
			step("ok2", "ok1"),
			step("x", "y"),
			step("y", "x"),
		},
	}
	err := Validate(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidate_SharedDependencyIsNotACycle(t *testing.T) {
	def := &model.PipelineDefinition{
		Name: "p",
		Steps: []model.StepDefinition{
			step("root"),
			step("left", "root"),
			step("right", "root"),
			step("join", "left", "right"),
		},
	}
	assert.NoError(t, Validate(def))
}
