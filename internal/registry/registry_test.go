package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
)

type staticModule struct{ names []string }

func (m staticModule) Register(r *Registry) {
	for _, name := range m.names {
		r.RegisterAction(name, func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
			return &model.ActionResult{Success: true}, nil
		})
	}
}

func TestNew_RegistersModules(t *testing.T) {
	r := New(staticModule{names: []string{"print", "fs_write"}})
	assert.ElementsMatch(t, []string{"print", "fs_write"}, r.Actions())
}

func TestInvoke_UnknownAction(t *testing.T) {
	r := New()
	_, err := r.Invoke(context.Background(), "ghost", nil, invoker.Context{}, invoker.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestInvoke_PassesContextAndParams(t *testing.T) {
	r := New()
	r.RegisterAction("echo", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		return &model.ActionResult{
			Success: true,
			Message: ictx.StepID,
			Metadata: map[string]any{
				"pipeline": ictx.PipelineName,
				"param":    params["x"],
			},
		}, nil
	})

	res, err := r.Invoke(context.Background(), "echo",
		map[string]any{"x": 7},
		invoker.Context{PipelineName: "p", StepID: "s1"},
		invoker.Options{})
	require.NoError(t, err)
	assert.Equal(t, "s1", res.Message)
	assert.Equal(t, "p", res.Metadata["pipeline"])
	assert.Equal(t, 7, res.Metadata["param"])
}

func TestInvoke_NilResultBecomesBareSuccess(t *testing.T) {
	r := New()
	r.RegisterAction("quiet", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		return nil, nil
	})

	res, err := r.Invoke(context.Background(), "quiet", nil, invoker.Context{}, invoker.Options{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Success)
}

func TestInvoke_BusinessFailurePassesThrough(t *testing.T) {
	r := New()
	r.RegisterAction("refuse", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		return &model.ActionResult{Success: false, Message: "file exists"}, nil
	})

	res, err := r.Invoke(context.Background(), "refuse", nil, invoker.Context{}, invoker.Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "file exists", res.Message)
}

func TestInvoke_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("disk on fire")
	r := New()
	r.RegisterAction("bad", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		return nil, boom
	})

	_, err := r.Invoke(context.Background(), "bad", nil, invoker.Context{}, invoker.Options{})
	assert.ErrorIs(t, err, boom)
}

func TestInvoke_TimeoutAppliedAsDeadline(t *testing.T) {
	r := New()
	r.RegisterAction("slow", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		select {
		case <-time.After(time.Second):
			return &model.ActionResult{Success: true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	_, err := r.Invoke(context.Background(), "slow", nil, invoker.Context{}, invoker.Options{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegisterAction_LastBindingWins(t *testing.T) {
	r := New()
	r.RegisterAction("x", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		return &model.ActionResult{Success: true, Message: "first"}, nil
	})
	r.RegisterAction("x", func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		return &model.ActionResult{Success: true, Message: "second"}, nil
	})

	res, err := r.Invoke(context.Background(), "x", nil, invoker.Context{}, invoker.Options{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Message)
	assert.Len(t, r.Actions(), 1)
}
