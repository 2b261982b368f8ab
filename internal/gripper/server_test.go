// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gripper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeActuator struct {
	mu      sync.Mutex
	running bool
	calls   []string
}

func (f *fakeActuator) GripIn(_ context.Context, side controller.Side) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "in:"+string(side))
	return nil
}

func (f *fakeActuator) GripOut(_ context.Context, side controller.Side) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "out:"+string(side))
	return nil
}

func (f *fakeActuator) IsProgramRunning(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running, nil
}

func (f *fakeActuator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func startServer(t *testing.T, act Actuator, interval time.Duration) *Server {
	t.Helper()
	s := NewServer(controller.SideLeft, act, Config{FeedbackInterval: interval})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func collect(ch <-chan Feedback) []int {
	var out []int
	for fb := range ch {
		out = append(out, fb.Percentage)
	}
	return out
}

func TestSubmit_RejectsUnsupportedPercentage(t *testing.T) {
	act := &fakeActuator{running: true}
	s := startServer(t, act, time.Millisecond)

	_, err := s.Submit(50)
	require.ErrorIs(t, err, ErrUnsupportedPercentage)
	assert.Empty(t, act.Calls())
}

func TestSubmit_ProgressFeedbackInStepsOfTen(t *testing.T) {
	for _, goal := range []int{Open, Closed} {
		act := &fakeActuator{running: true}
		s := NewServer(controller.SideLeft, act, Config{FeedbackInterval: time.Millisecond})

		info, err := s.Submit(goal)
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, info.Status)

		fb, err := s.Subscribe(info.ID)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = s.Run(ctx)
		}()

		got := collect(fb)
		res, err := s.Wait(context.Background(), info.ID)
		require.NoError(t, err)
		cancel()
		<-done

		assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, got)
		assert.Equal(t, StatusSucceeded, res.Status)
		assert.Equal(t, 100, res.Percentage)
	}
}

func TestSubmit_FeedbackEndsAtCompletion(t *testing.T) {
	tests := []struct {
		step int
		want []int
	}{
		{step: 25, want: []int{25, 50, 75, 100}},
		{step: 30, want: []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}},
		{step: 150, want: []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}},
	}
	for _, tt := range tests {
		act := &fakeActuator{running: true}
		s := NewServer(controller.SideLeft, act, Config{FeedbackInterval: time.Millisecond, Step: tt.step})

		info, err := s.Submit(Closed)
		require.NoError(t, err)
		fb, err := s.Subscribe(info.ID)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = s.Run(ctx)
		}()

		got := collect(fb)
		res, err := s.Wait(context.Background(), info.ID)
		require.NoError(t, err)
		cancel()
		<-done

		assert.Equal(t, tt.want, got, "step %d", tt.step)
		assert.Equal(t, StatusSucceeded, res.Status)
		assert.Equal(t, 100, res.Percentage)
	}
}

func TestSubmit_DrivesMatchingGripCommand(t *testing.T) {
	act := &fakeActuator{running: true}
	s := startServer(t, act, time.Millisecond)

	in, err := s.Submit(Closed)
	require.NoError(t, err)
	_, err = s.Wait(context.Background(), in.ID)
	require.NoError(t, err)

	out, err := s.Submit(Open)
	require.NoError(t, err)
	_, err = s.Wait(context.Background(), out.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"in:left", "out:left"}, act.Calls())
}

func TestCancel_ReportsLastPublishedPercentage(t *testing.T) {
	act := &fakeActuator{running: true}
	s := startServer(t, act, 20*time.Millisecond)

	info, err := s.Submit(Closed)
	require.NoError(t, err)
	fb, err := s.Subscribe(info.ID)
	require.NoError(t, err)

	var got []int
	for f := range fb {
		got = append(got, f.Percentage)
		if f.Percentage == 30 {
			require.NoError(t, s.Cancel(info.ID))
		}
	}

	res, err := s.Wait(context.Background(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
	require.NotEmpty(t, got)
	assert.Equal(t, got[len(got)-1], res.Percentage)
	assert.Less(t, res.Percentage, 100)

	require.ErrorIs(t, s.Cancel(info.ID), ErrTaskFinished)
	require.ErrorIs(t, s.Cancel("missing"), ErrTaskNotFound)
}

func TestExecute_AbortsWhenProgramStopped(t *testing.T) {
	act := &fakeActuator{running: false}
	s := startServer(t, act, time.Millisecond)

	info, err := s.Submit(Closed)
	require.NoError(t, err)
	res, err := s.Wait(context.Background(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Contains(t, res.Error, "not running")
	assert.Empty(t, act.Calls())
}

func TestCancel_QueuedTaskNeverExecutes(t *testing.T) {
	act := &fakeActuator{running: true}
	s := NewServer(controller.SideRight, act, Config{FeedbackInterval: time.Millisecond})

	info, err := s.Submit(Closed)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(info.ID))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	res, err := s.Wait(context.Background(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
	assert.Equal(t, 0, res.Percentage)

	cancel()
	<-done
	assert.Empty(t, act.Calls())
}

func TestRun_AbortsQueuedGoalsOnShutdown(t *testing.T) {
	act := &fakeActuator{running: true}
	s := NewServer(controller.SideLeft, act, Config{})
	info, err := s.Submit(Open)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	res, err := s.Get(info.ID)
	require.NoError(t, err)
	if res.Status != StatusAborted {
		// Run may have picked the goal before observing cancellation.
		assert.True(t, res.Status.Terminal())
	}
	_, err = s.Submit(Open)
	require.ErrorIs(t, err, ErrServerStopped)
}
