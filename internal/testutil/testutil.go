// Package testutil provides shared helpers for engine tests: a
// thread-safe log buffer and scripted actions with observable call
// history.
package testutil

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
	"github.com/forgepipe/forgepipe/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Call records one invocation of a scripted action.
type Call struct {
	StepID string
	Params map[string]any
	Start  time.Time
	End    time.Time
}

// ScriptedAction is a fake action handler with programmable behavior: it
// fails a fixed number of times before succeeding, optionally sleeps to
// simulate work, and records every call.
type ScriptedAction struct {
	// FailTimes is how many leading calls report a business failure.
	FailTimes int

	// Err, when set, is returned as an infrastructure error instead of a
	// business failure for the leading FailTimes calls (or all calls if
	// FailTimes is zero and Err is set).
	Err error

	// Delay is slept on every call before responding.
	Delay time.Duration

	// Result is returned on success; nil yields a plain success.
	Result *model.ActionResult

	mu    sync.Mutex
	calls []Call
}

// Handler returns the registry handler for this scripted action.
func (s *ScriptedAction) Handler() registry.HandlerFunc {
	return func(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
		start := time.Now()
		if s.Delay > 0 {
			select {
			case <-time.After(s.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		s.mu.Lock()
		n := len(s.calls)
		s.calls = append(s.calls, Call{StepID: ictx.StepID, Params: params, Start: start, End: time.Now()})
		s.mu.Unlock()

		if s.Err != nil && (s.FailTimes == 0 || n < s.FailTimes) {
			return nil, s.Err
		}
		if n < s.FailTimes {
			return &model.ActionResult{Success: false, Message: "scripted failure"}, nil
		}
		if s.Result != nil {
			return s.Result, nil
		}
		return &model.ActionResult{Success: true}, nil
	}
}

// Calls returns a copy of the recorded invocations.
func (s *ScriptedAction) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many times the action ran.
func (s *ScriptedAction) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// StepWindow returns the start of the first call and the end of the last
// call made by the given step, for ordering assertions.
func (s *ScriptedAction) StepWindow(stepID string) (start, end time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.StepID != stepID {
			continue
		}
		if !ok || c.Start.Before(start) {
			start = c.Start
		}
		if c.End.After(end) {
			end = c.End
		}
		ok = true
	}
	return start, end, ok
}
