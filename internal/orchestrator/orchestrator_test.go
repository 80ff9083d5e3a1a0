package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgepipe/forgepipe/internal/executor"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
	"github.com/forgepipe/forgepipe/internal/registry"
	"github.com/forgepipe/forgepipe/internal/testutil"
)

func newTestOrchestrator(reg *registry.Registry) *Orchestrator {
	return New(reg, WithBackoff(executor.NoBackoff))
}

func TestRegisterPipeline(t *testing.T) {
	o := newTestOrchestrator(registry.New())

	def := model.PipelineDefinition{
		Name:  "p",
		Steps: []model.StepDefinition{{ID: "a", Action: "noop"}},
	}
	require.NoError(t, o.RegisterPipeline(def))

	t.Run("duplicate name rejected", func(t *testing.T) {
		err := o.RegisterPipeline(def)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("invalid definition rejected", func(t *testing.T) {
		bad := model.PipelineDefinition{
			Name: "cyclic",
			Steps: []model.StepDefinition{
				{ID: "a", Action: "noop", DependsOn: []string{"b"}},
				{ID: "b", Action: "noop", DependsOn: []string{"a"}},
			},
		}
		err := o.RegisterPipeline(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")

		_, ok := o.Pipeline("cyclic")
		assert.False(t, ok)
	})
}

func TestExecutePipeline_UnknownName(t *testing.T) {
	o := newTestOrchestrator(registry.New())
	_, err := o.ExecutePipeline(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, ErrPipelineNotFound)
	assert.Empty(t, o.Executions())
}

func TestExecutePipeline_SequentialOrderFollowsDependencies(t *testing.T) {
	action := &testutil.ScriptedAction{}
	reg := registry.New()
	reg.RegisterAction("work", action.Handler())

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name: "chain",
		Steps: []model.StepDefinition{
			{ID: "c", Action: "work", DependsOn: []string{"b"}},
			{ID: "b", Action: "work", DependsOn: []string{"a"}},
			{ID: "a", Action: "work"},
		},
	}))

	exec, err := o.ExecutePipeline(context.Background(), "chain", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, exec.Status)
	assert.Equal(t, 3, exec.Metadata.CompletedSteps)

	calls := action.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "a", calls[0].StepID)
	assert.Equal(t, "b", calls[1].StepID)
	assert.Equal(t, "c", calls[2].StepID)
}

func TestExecutePipeline_DiamondParallelWave(t *testing.T) {
	action := &testutil.ScriptedAction{Delay: 50 * time.Millisecond}
	reg := registry.New()
	reg.RegisterAction("work", action.Handler())

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name:     "diamond",
		Settings: model.Settings{Parallel: true},
		Steps: []model.StepDefinition{
			{ID: "a", Action: "work"},
			{ID: "b", Action: "work", DependsOn: []string{"a"}},
			{ID: "c", Action: "work", DependsOn: []string{"a"}},
			{ID: "d", Action: "work", DependsOn: []string{"b", "c"}},
		},
	}))

	exec, err := o.ExecutePipeline(context.Background(), "diamond", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, exec.Status)
	assert.Equal(t, 4, action.CallCount())

	aStart, aEnd, ok := action.StepWindow("a")
	require.True(t, ok)
	bStart, bEnd, ok := action.StepWindow("b")
	require.True(t, ok)
	cStart, cEnd, ok := action.StepWindow("c")
	require.True(t, ok)
	dStart, _, ok := action.StepWindow("d")
	require.True(t, ok)

	// Dependencies are honored.
	assert.False(t, bStart.Before(aEnd))
	assert.False(t, cStart.Before(aEnd))
	assert.False(t, dStart.Before(bEnd))
	assert.False(t, dStart.Before(cEnd))
	_ = aStart

	// The middle wave overlaps: each branch starts before the other ends.
	assert.True(t, bStart.Before(cEnd))
	assert.True(t, cStart.Before(bEnd))
}

func TestExecutePipeline_FailureAbortsDownstream(t *testing.T) {
	failing := &testutil.ScriptedAction{Err: errors.New("boom")}
	healthy := &testutil.ScriptedAction{}
	reg := registry.New()
	reg.RegisterAction("bad", failing.Handler())
	reg.RegisterAction("good", healthy.Handler())

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name: "abort",
		Steps: []model.StepDefinition{
			{ID: "a", Action: "bad"},
			{ID: "b", Action: "good", DependsOn: []string{"a"}},
			{ID: "c", Action: "good", DependsOn: []string{"a"}},
		},
	}))

	exec, err := o.ExecutePipeline(context.Background(), "abort", nil)
	require.Error(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, model.StatusFailed, exec.Status)
	assert.Equal(t, 1, exec.Metadata.FailedSteps)
	assert.Zero(t, healthy.CallCount())
	assert.Equal(t, model.StatusPending, exec.StepByID("b").Status)

	// The partial record stays retrievable.
	got, ok := o.Execution(exec.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Errors)
}

func TestExecutePipeline_ContinueOnErrorReleasesDependents(t *testing.T) {
	failing := &testutil.ScriptedAction{Err: errors.New("boom")}
	healthy := &testutil.ScriptedAction{}
	reg := registry.New()
	reg.RegisterAction("bad", failing.Handler())
	reg.RegisterAction("good", healthy.Handler())

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name: "tolerant",
		Steps: []model.StepDefinition{
			{ID: "a", Action: "bad", ContinueOnError: true},
			{ID: "b", Action: "good", DependsOn: []string{"a"}},
		},
	}))

	exec, err := o.ExecutePipeline(context.Background(), "tolerant", nil)
	require.NoError(t, err)

	// The dependent ran because its dependency is terminal, even though it
	// failed; the run still counts as failed overall.
	assert.Equal(t, model.StatusFailed, exec.Status)
	assert.Equal(t, model.StatusFailed, exec.StepByID("a").Status)
	assert.Equal(t, model.StatusCompleted, exec.StepByID("b").Status)
	assert.Equal(t, 1, healthy.CallCount())
}

func TestExecutePipeline_VariablesFlowBetweenSteps(t *testing.T) {
	producer := &testutil.ScriptedAction{
		Result: &model.ActionResult{Success: true, Metadata: map[string]any{"file": "out.txt"}},
	}
	var seen map[string]any
	reg := registry.New()
	reg.RegisterAction("produce", producer.Handler())
	reg.RegisterAction("consume", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		seen = ictx.Variables
		return &model.ActionResult{Success: true}, nil
	})

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name:      "flow",
		Variables: map[string]any{"env": "prod"},
		Steps: []model.StepDefinition{
			{ID: "make", Action: "produce"},
			{ID: "use", Action: "consume", DependsOn: []string{"make"}},
		},
	}))

	exec, err := o.ExecutePipeline(context.Background(), "flow", map[string]any{"env": "staging"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, exec.Status)

	require.NotNil(t, seen)
	assert.Equal(t, "staging", seen["env"])
	assert.Equal(t, "out.txt", seen["make_file"])
}

func TestExecutePipeline_ConditionGatesOnUpstreamResult(t *testing.T) {
	producer := &testutil.ScriptedAction{
		Result: &model.ActionResult{Success: true, Metadata: map[string]any{"mode": "dry"}},
	}
	gated := &testutil.ScriptedAction{}
	reg := registry.New()
	reg.RegisterAction("produce", producer.Handler())
	reg.RegisterAction("deploy", gated.Handler())

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name: "gated",
		Steps: []model.StepDefinition{
			{ID: "plan", Action: "produce"},
			{ID: "apply", Action: "deploy", DependsOn: []string{"plan"}, Condition: `plan_mode === 'live'`},
		},
	}))

	exec, err := o.ExecutePipeline(context.Background(), "gated", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, exec.Status)
	assert.Equal(t, model.StatusSkipped, exec.StepByID("apply").Status)
	assert.Zero(t, gated.CallCount())
}

func TestCancelExecution(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		o := newTestOrchestrator(registry.New())
		assert.False(t, o.CancelExecution("nope"))
	})

	t.Run("finished run", func(t *testing.T) {
		action := &testutil.ScriptedAction{}
		reg := registry.New()
		reg.RegisterAction("work", action.Handler())
		o := newTestOrchestrator(reg)
		require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
			Name:  "quick",
			Steps: []model.StepDefinition{{ID: "a", Action: "work"}},
		}))
		exec, err := o.ExecutePipeline(context.Background(), "quick", nil)
		require.NoError(t, err)
		assert.False(t, o.CancelExecution(exec.ID))
	})

	t.Run("running run", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan string, 1)
		reg := registry.New()
		reg.RegisterAction("slow", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
			started <- ictx.ExecutionID
			<-release
			return &model.ActionResult{Success: true}, nil
		})

		o := newTestOrchestrator(reg)
		require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
			Name: "slow-run",
			Steps: []model.StepDefinition{
				{ID: "a", Action: "slow"},
				{ID: "b", Action: "slow", DependsOn: []string{"a"}},
			},
		}))

		var wg sync.WaitGroup
		var exec *model.PipelineExecution
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec, _ = o.ExecutePipeline(context.Background(), "slow-run", nil)
		}()

		id := <-started
		require.True(t, o.CancelExecution(id))
		close(release)
		wg.Wait()

		require.NotNil(t, exec)
		assert.Equal(t, model.StatusCancelled, exec.Status)
		assert.False(t, exec.EndTime.IsZero())
		// The second step was never scheduled.
		assert.Equal(t, model.StatusPending, exec.StepByID("b").Status)
	})
}

func TestStats(t *testing.T) {
	good := &testutil.ScriptedAction{}
	bad := &testutil.ScriptedAction{Err: errors.New("boom")}
	reg := registry.New()
	reg.RegisterAction("good", good.Handler())
	reg.RegisterAction("bad", bad.Handler())

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name:  "ok",
		Steps: []model.StepDefinition{{ID: "a", Action: "good"}},
	}))
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name:  "broken",
		Steps: []model.StepDefinition{{ID: "a", Action: "bad"}},
	}))

	_, err := o.ExecutePipeline(context.Background(), "ok", nil)
	require.NoError(t, err)
	_, err = o.ExecutePipeline(context.Background(), "ok", nil)
	require.NoError(t, err)
	_, err = o.ExecutePipeline(context.Background(), "broken", nil)
	require.Error(t, err)

	s := o.Stats()
	assert.Equal(t, 2, s.TotalPipelines)
	assert.Equal(t, 3, s.TotalExecutions)
	assert.Equal(t, 2, s.CompletedExecutions)
	assert.Equal(t, 1, s.FailedExecutions)
	assert.Zero(t, s.RunningExecutions)
}

func TestExecutionsHistory(t *testing.T) {
	action := &testutil.ScriptedAction{}
	reg := registry.New()
	reg.RegisterAction("work", action.Handler())

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name:  "p",
		Steps: []model.StepDefinition{{ID: "a", Action: "work"}},
	}))

	first, err := o.ExecutePipeline(context.Background(), "p", nil)
	require.NoError(t, err)
	second, err := o.ExecutePipeline(context.Background(), "p", nil)
	require.NoError(t, err)

	all := o.Executions()
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)

	completed := o.ExecutionsByStatus(model.StatusCompleted)
	assert.Len(t, completed, 2)
	assert.Empty(t, o.ExecutionsByStatus(model.StatusFailed))

	o.ClearExecutions()
	assert.Empty(t, o.Executions())
	_, ok := o.Execution(first.ID)
	assert.False(t, ok)

	// Definitions survive a history clear.
	_, ok = o.Pipeline("p")
	assert.True(t, ok)
}

func TestExecutePipeline_PipelineHooksRun(t *testing.T) {
	var mu sync.Mutex
	var order []string
	hook := func(name string) registry.HandlerFunc {
		return func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return &model.ActionResult{Success: true}, nil
		}
	}

	reg := registry.New()
	reg.RegisterAction("work", (&testutil.ScriptedAction{}).Handler())
	reg.RegisterAction("before", hook("before"))
	reg.RegisterAction("after", hook("after"))

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name: "hooked",
		Hooks: model.Hooks{
			BeforePipeline: []string{"before"},
			AfterPipeline:  []string{"after"},
		},
		Steps: []model.StepDefinition{{ID: "a", Action: "work"}},
	}))

	_, err := o.ExecutePipeline(context.Background(), "hooked", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, order)
}

func TestExecutePipeline_OnErrorHooksFire(t *testing.T) {
	var fired bool
	reg := registry.New()
	reg.RegisterAction("bad", (&testutil.ScriptedAction{Err: errors.New("boom")}).Handler())
	reg.RegisterAction("alert", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		fired = true
		return &model.ActionResult{Success: true}, nil
	})

	o := newTestOrchestrator(reg)
	require.NoError(t, o.RegisterPipeline(model.PipelineDefinition{
		Name:  "alerting",
		Hooks: model.Hooks{OnError: []string{"alert"}},
		Steps: []model.StepDefinition{{ID: "a", Action: "bad"}},
	}))

	_, err := o.ExecutePipeline(context.Background(), "alerting", nil)
	require.Error(t, err)
	assert.True(t, fired)
}
