// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package planning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSim() *Sim {
	s := NewSim(map[string]SimComponent{
		"left_arm": {State: JointState{0, 0, 0, 0, 0, 0, 0}, Pose: Pose{Orientation: Identity}},
	})
	s.MotionDuration = 20 * time.Millisecond
	return s
}

func TestSim_AsyncGoalCompletes(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	target := Pose{Position: Vec3{X: 0.3}, Orientation: Identity}

	ok, err := s.MoveToPose(ctx, "left_arm", target, Options{Async: true})
	require.NoError(t, err)
	require.True(t, ok)

	reached, err := s.PoseReached(ctx, "left_arm", target)
	require.NoError(t, err)
	assert.False(t, reached)

	assert.Eventually(t, func() bool {
		r, _ := s.PoseReached(ctx, "left_arm", target)
		return r
	}, time.Second, 5*time.Millisecond)
}

func TestSim_StopAbortsAndBlocksUntilAllowed(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	target := Pose{Position: Vec3{Y: 0.2}, Orientation: Identity}

	_, err := s.MoveToPose(ctx, "left_arm", target, Options{Async: true})
	require.NoError(t, err)
	require.NoError(t, s.StopMotion(ctx, "left_arm"))

	ok, err := s.LinearMoveToPose(ctx, "left_arm", target, Options{})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AllowMotion(ctx, "left_arm"))
	ok, err = s.LinearMoveToPose(ctx, "left_arm", target, Options{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSim_ScriptedFailures(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	s.FailLinear("left_arm", 2)

	for i := 0; i < 2; i++ {
		ok, err := s.LinearMoveToPose(ctx, "left_arm", Pose{Orientation: Identity}, Options{})
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := s.LinearMoveToPose(ctx, "left_arm", Pose{Orientation: Identity}, Options{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSim_UnknownComponent(t *testing.T) {
	s := newTestSim()
	_, err := s.CurrentState(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownComponent)
}
