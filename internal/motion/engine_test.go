// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package motion

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/registry"
	"github.com/ManuGH/armcell/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type gate struct{ on atomic.Bool }

func (g *gate) Streaming() bool { return g.on.Load() }

var (
	leftHome  = planning.JointState{0, -2.2, 2.3, 0.5, 0, 0.7, 0}
	rightHome = planning.JointState{0, -2.2, -2.3, 0.5, 0, 0.7, 0}
	startPose = planning.Pose{Position: planning.Vec3{X: 0.4, Y: 0.2, Z: 0.3}, Orientation: planning.Identity}
)

type rig struct {
	engine  *Engine
	gate    *gate
	reg     *registry.Registry
	planner *planning.Sim
	ctrl    *controller.Sim
	scene   *scene.Scene
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.StopSettle = 0
	cfg.AttemptDelay = 0
	cfg.StrategyDelay = 0
	cfg.ReachRecheckDelay = 0
	cfg.GripSettle = 0
	cfg.ReplanPollInterval = 2 * time.Millisecond
	cfg.GoalTimeout = 5 * time.Second
	cfg.GripPollInterval = time.Millisecond
	cfg.GripTimeout = time.Second
	return cfg
}

func newRig(t *testing.T) *rig {
	t.Helper()
	reg, err := registry.New([]registry.Component{
		{ID: "left_arm", EndEffector: "gripper_l_base", Home: leftHome, GripperSide: controller.SideLeft},
		{ID: "right_arm", EndEffector: "gripper_r_base", Home: rightHome, GripperSide: controller.SideRight},
		{ID: "both_arms", Members: []string{"left_arm", "right_arm"}},
	})
	require.NoError(t, err)

	planner := planning.NewSim(map[string]planning.SimComponent{
		"left_arm":  {State: planning.JointState{0, 0, 0, 0, 0, 0, 0}, Pose: startPose},
		"right_arm": {State: planning.JointState{0, 0, 0, 0, 0, 0, 0}, Pose: startPose},
	})
	planner.MotionDuration = 20 * time.Millisecond

	ctrl := controller.NewSim(controller.SimConfig{AutoMode: true, ProgramRunning: true})
	sc := scene.New(reg)
	g := &gate{}
	g.on.Store(true)

	e, err := NewEngine(Deps{
		Gate:     g,
		Registry: reg,
		Planner:  planner,
		Signals:  planner,
		Scene:    sc,
		Gripper:  ctrl,
	}, fastConfig(), WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	return &rig{engine: e, gate: g, reg: reg, planner: planner, ctrl: ctrl, scene: sc}
}

func count(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

func target() planning.Pose {
	return planning.Pose{Position: planning.Vec3{X: 0.5, Y: 0.1, Z: 0.25}, Orientation: planning.Identity}
}

func TestMoveToGoal_UnknownComponentTouchesNothing(t *testing.T) {
	r := newRig(t)
	err := r.engine.MoveToGoal(context.Background(), "tail", PoseGoal(target(), 1))
	require.ErrorIs(t, err, registry.ErrUnknownComponent)
	assert.Empty(t, r.planner.Calls("left_arm"))
	assert.Empty(t, r.planner.Calls("right_arm"))
}

func TestMoveToGoal_RequiresStreaming(t *testing.T) {
	r := newRig(t)
	r.gate.on.Store(false)

	err := r.engine.MoveToGoal(context.Background(), "left_arm", PoseGoal(target(), 1))
	require.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, r.planner.Calls("left_arm"))

	inMotion, err := r.reg.InMotion("left_arm")
	require.NoError(t, err)
	assert.False(t, inMotion)
}

func TestMoveToGoal_Reached(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	require.NoError(t, r.engine.MoveToGoal(ctx, "left_arm", PoseGoal(target(), 2)))
	pose, err := r.planner.CurrentPose(ctx, "left_arm")
	require.NoError(t, err)
	assert.True(t, pose.Within(target(), 1e-9, 1e-9))

	require.NoError(t, r.engine.MoveToGoal(ctx, "right_arm", JointGoal(rightHome, 0)))
	state, err := r.planner.CurrentState(ctx, "right_arm")
	require.NoError(t, err)
	assert.Equal(t, rightHome, state)

	inMotion, err := r.reg.InMotion("left_arm")
	require.NoError(t, err)
	assert.False(t, inMotion)
}

func TestMoveToGoal_PlannerRejects(t *testing.T) {
	r := newRig(t)
	r.planner.FailPose("left_arm", 1)

	err := r.engine.MoveToGoal(context.Background(), "left_arm", PoseGoal(target(), 0))
	require.ErrorIs(t, err, ErrMotion)
}

func TestMoveToGoal_BusyComponent(t *testing.T) {
	r := newRig(t)
	ok, err := r.reg.TryBeginMotion("left_arm")
	require.NoError(t, err)
	require.True(t, ok)

	err = r.engine.MoveToGoal(context.Background(), "left_arm", PoseGoal(target(), 0))
	require.ErrorIs(t, err, ErrComponentBusy)
	assert.Empty(t, r.planner.Calls("left_arm"))
}

// stuckPlanner accepts a pose goal and never returns until its context ends.
type stuckPlanner struct {
	*planning.Sim
}

func (p stuckPlanner) MoveToPose(ctx context.Context, _ string, _ planning.Pose, _ planning.Options) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestMoveToGoal_GoalTimeoutBoundsPlanner(t *testing.T) {
	r := newRig(t)
	r.engine.deps.Planner = stuckPlanner{r.planner}
	cfg := fastConfig()
	cfg.GoalTimeout = 50 * time.Millisecond
	r.engine.SetConfig(cfg)

	done := make(chan error, 1)
	go func() {
		done <- r.engine.MoveToGoal(context.Background(), "left_arm", PoseGoal(target(), 0))
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrMotion)
		assert.NotErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("goal still blocked on the planner")
	}
	inMotion, err := r.reg.InMotion("left_arm")
	require.NoError(t, err)
	assert.False(t, inMotion)

	// the component accepts the next goal
	r.engine.deps.Planner = r.planner
	require.NoError(t, r.engine.MoveToGoal(context.Background(), "left_arm", JointGoal(leftHome, 0)))
}

func TestGoalValidate(t *testing.T) {
	p := target()
	tests := []struct {
		name string
		goal Goal
		ok   bool
	}{
		{"pose", PoseGoal(p, 1), true},
		{"joint", JointGoal(leftHome, 0), true},
		{"pose without pose", Goal{Kind: KindPose}, false},
		{"joint with pose", Goal{Kind: KindJoint, Pose: &p, JointState: leftHome}, false},
		{"unknown kind", Goal{Kind: "wiggle"}, false},
		{"negative budget", Goal{Kind: KindPose, Pose: &p, RetryBudget: -1}, false},
		{"speed above one", Goal{Kind: KindPose, Pose: &p, SpeedScale: 1.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.goal.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidGoal)
			}
		})
	}
}

func TestReplanning_RecomputesOnce(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	moved := planning.Pose{Position: planning.Vec3{X: 0.45, Y: -0.1, Z: 0.3}, Orientation: planning.Identity}

	require.NoError(t, r.reg.SetShouldReplan("left_arm", true))
	var recomputes atomic.Int32
	err := r.engine.MoveToGoalReplanning(ctx, "left_arm", PoseGoal(target(), 1), func(context.Context) (Goal, error) {
		recomputes.Add(1)
		return PoseGoal(moved, 1), nil
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), recomputes.Load())
	pose, err := r.planner.CurrentPose(ctx, "left_arm")
	require.NoError(t, err)
	assert.True(t, pose.Within(moved, 1e-9, 1e-9))

	calls := r.planner.Calls("left_arm")
	assert.Equal(t, 1, count(calls, "stop"))
	assert.Equal(t, 1, count(calls, "allow"))
	assert.Equal(t, 2, count(calls, "move_to_pose"))

	replan, err := r.reg.ShouldReplan("left_arm")
	require.NoError(t, err)
	assert.False(t, replan)
}

func TestReplanning_ObjectVanishesReturnsHome(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	require.NoError(t, r.scene.Add(scene.Object{
		ID:         "cup",
		Pose:       planning.Pose{Position: planning.Vec3{X: 0.5, Z: 0.02}, Orientation: planning.Identity},
		Dimensions: planning.Vec3{X: 0.08, Y: 0.08, Z: 0.1},
	}))

	objects := &vanishing{inner: r.scene}
	r.engine.deps.Scene = objects
	require.NoError(t, r.reg.SetShouldReplan("left_arm", true))

	err := r.engine.MoveToObject(ctx, "left_arm", "cup", 0.2, 1, true)
	require.ErrorIs(t, err, ErrObjectNotFound)

	state, err := r.planner.CurrentState(ctx, "left_arm")
	require.NoError(t, err)
	assert.Equal(t, leftHome, state)
	inMotion, err := r.reg.InMotion("left_arm")
	require.NoError(t, err)
	assert.False(t, inMotion)
}

// vanishing finds an object only on the first lookup.
type vanishing struct {
	inner Objects
	calls atomic.Int32
}

func (v *vanishing) Find(id string) (scene.Object, bool) {
	if v.calls.Add(1) > 1 {
		return scene.Object{}, false
	}
	return v.inner.Find(id)
}

func TestCancel_AbortsReplanningGoal(t *testing.T) {
	r := newRig(t)
	r.planner.MotionDuration = time.Hour

	done := make(chan error, 1)
	go func() {
		done <- r.engine.MoveToGoalReplanning(context.Background(), "left_arm", PoseGoal(target(), 1), nil)
	}()
	require.Eventually(t, func() bool {
		v, _ := r.reg.InMotion("left_arm")
		return v
	}, time.Second, time.Millisecond)

	require.NoError(t, r.engine.Cancel(context.Background(), "left_arm"))

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("goal did not observe cancellation")
	}
	inMotion, err := r.reg.InMotion("left_arm")
	require.NoError(t, err)
	assert.False(t, inMotion)
	calls := r.planner.Calls("left_arm")
	assert.Contains(t, calls, "stop")
	assert.Contains(t, calls, "allow")
}

func TestStopMotion_FansOutToMembers(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	require.NoError(t, r.reg.SetInMotion("both_arms", true))

	require.NoError(t, r.engine.StopMotion(ctx, "both_arms"))
	assert.Contains(t, r.planner.Calls("left_arm"), "stop")
	assert.Contains(t, r.planner.Calls("right_arm"), "stop")

	inMotion, err := r.reg.InMotion("both_arms")
	require.NoError(t, err)
	assert.False(t, inMotion)

	require.NoError(t, r.engine.AllowMotion(ctx, "both_arms"))
	require.NoError(t, r.engine.MoveToGoal(ctx, "left_arm", PoseGoal(target(), 0)))
}

func TestMoveHome(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	require.NoError(t, r.engine.MoveHome(ctx, "left_arm", false))
	state, err := r.planner.CurrentState(ctx, "left_arm")
	require.NoError(t, err)
	assert.Equal(t, leftHome, state)

	require.NoError(t, r.engine.MoveHome(ctx, "right_arm", true))
	state, err = r.planner.CurrentState(ctx, "right_arm")
	require.NoError(t, err)
	assert.Equal(t, rightHome, state)

	require.ErrorIs(t, r.engine.MoveHome(ctx, "both_arms", false), ErrInvalidGoal)
}

func TestSetConfig_KeepsLadderDefaults(t *testing.T) {
	r := newRig(t)
	cfg := fastConfig()
	cfg.Ladder = LadderConfig{}
	cfg.PlaceAttempts = 4
	r.engine.SetConfig(cfg)

	got := r.engine.Config()
	assert.Equal(t, 4, got.PlaceAttempts)
	assert.Len(t, got.Ladder.Seeds, len(DefaultLadder().Seeds))
	assert.True(t, slices.Equal(DefaultLadder().Seeds[0], got.Ladder.Seeds[0]))
}
