// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package motion

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/ManuGH/armcell/internal/planning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strategies(out Outcome) []Strategy {
	s := make([]Strategy, 0, len(out.Attempts))
	for _, a := range out.Attempts {
		s = append(s, a.Strategy)
	}
	return s
}

func TestLinearMove_Direct(t *testing.T) {
	r := newRig(t)
	out, err := r.engine.LinearMove(context.Background(), "left_arm", target(), LinearOptions{Retries: 3})
	require.NoError(t, err)
	assert.Equal(t, []Strategy{StrategyDirect}, strategies(out))
	assert.False(t, r.engine.MustStop())
}

func TestLinearMove_EquivalentStateRecovers(t *testing.T) {
	r := newRig(t)
	r.planner.FailLinear("left_arm", 1)

	out, err := r.engine.LinearMove(context.Background(), "left_arm", target(), LinearOptions{Retries: 2})
	require.NoError(t, err)
	assert.Equal(t, []Strategy{StrategyDirect, StrategyEquivalentState}, strategies(out))
	assert.Equal(t, 1, out.Attempts[1].RetriesLeft)
	assert.True(t, out.Attempts[1].Success)

	calls := r.planner.Calls("left_arm")
	assert.Equal(t, 1, count(calls, "move_to_state"))
	assert.Equal(t, 2, count(calls, "linear_move_to_pose"))
}

func TestLinearMove_PerturbWhenNoEquivalentState(t *testing.T) {
	r := newRig(t)
	r.planner.IK = func(string, planning.Pose, planning.JointState) (planning.JointState, bool) {
		return nil, false
	}
	r.planner.FailLinear("left_arm", 1)

	out, err := r.engine.LinearMove(context.Background(), "left_arm", target(), LinearOptions{Retries: 1})
	require.NoError(t, err)
	assert.Equal(t, []Strategy{StrategyDirect, StrategyPerturbAndReturn}, strategies(out))

	calls := r.planner.Calls("left_arm")
	assert.Equal(t, 3, count(calls, "move_to_pose"))
	assert.Zero(t, count(calls, "move_to_state"))
}

func TestLinearMove_RejectsSolutionsTooCloseToSeed(t *testing.T) {
	r := newRig(t)
	r.planner.IK = func(_ string, _ planning.Pose, seed planning.JointState) (planning.JointState, bool) {
		return seed.Clone(), true
	}
	r.planner.FailLinear("left_arm", 1)

	out, err := r.engine.LinearMove(context.Background(), "left_arm", target(), LinearOptions{Retries: 1})
	require.NoError(t, err)
	assert.Equal(t, StrategyPerturbAndReturn, out.Attempts[1].Strategy)
}

func TestLinearMove_ExhaustedBudgetRaisesMustStop(t *testing.T) {
	r := newRig(t)
	r.planner.FailLinear("left_arm", 100)

	out, err := r.engine.LinearMove(context.Background(), "left_arm", target(), LinearOptions{Retries: 2})
	require.ErrorIs(t, err, ErrRetryBudgetExhausted)
	require.ErrorIs(t, err, ErrMotion)
	assert.True(t, r.engine.MustStop())

	require.Len(t, out.Attempts, 3)
	assert.Equal(t, []int{2, 1, 0}, []int{out.Attempts[0].RetriesLeft, out.Attempts[1].RetriesLeft, out.Attempts[2].RetriesLeft})
	// one direct attempt plus one per retry, nothing after the budget hits zero
	assert.Equal(t, 3, count(r.planner.Calls("left_arm"), "linear_move_to_pose"))

	inMotion, err := r.reg.InMotion("left_arm")
	require.NoError(t, err)
	assert.False(t, inMotion)

	r.engine.ResetMustStop()
	assert.False(t, r.engine.MustStop())
}

func TestLinearMove_ZeroRetriesFailsWithoutMustStop(t *testing.T) {
	r := newRig(t)
	r.planner.FailLinear("left_arm", 1)

	out, err := r.engine.LinearMove(context.Background(), "left_arm", target(), LinearOptions{})
	require.ErrorIs(t, err, ErrMotion)
	require.NotErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.Len(t, out.Attempts, 1)
	assert.False(t, r.engine.MustStop())
}

func TestSeeds_Order(t *testing.T) {
	r := newRig(t)
	ladder := DefaultLadder()
	current := planning.JointState{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7}

	seeds := r.engine.seeds(ladder, current)
	require.Len(t, seeds, len(ladder.Seeds)+2)
	assert.Equal(t, ladder.Seeds[:ladder.RandomSeedIndex], seeds[:ladder.RandomSeedIndex])
	assert.Equal(t, ladder.Seeds[ladder.RandomSeedIndex:], seeds[ladder.RandomSeedIndex+1:len(seeds)-1])
	assert.Equal(t, current, seeds[len(seeds)-1])

	for i, v := range seeds[ladder.RandomSeedIndex] {
		d := math.Abs(v - current[i])
		assert.True(t, math.Abs(d-1) < 1e-9 || math.Abs(d-2) < 1e-9, "joint %d jitter %v", i, d)
	}
}

func TestNearbyPose(t *testing.T) {
	r := newRig(t)
	r.engine.rng = rand.New(rand.NewPCG(7, 11))
	flip := planning.Identity.Rotate(planning.AxisX, math.Pi)

	for i := 0; i < 50; i++ {
		p := r.engine.nearbyPose(startPose, 0.1, 20, 40)
		shift := p.Position.Sub(startPose.Position)
		assert.InDelta(t, 0.1, shift.Norm(), 1e-9)
		assert.Zero(t, shift.Z)
		assert.True(t, shift.X == 0 || shift.Y == 0)

		angle := p.Orientation.AngleTo(flip) * 180 / math.Pi
		assert.GreaterOrEqual(t, angle, 20-1e-6)
		assert.LessOrEqual(t, angle, 40+1e-6)
	}
}

func TestRandRange_Inclusive(t *testing.T) {
	r := newRig(t)
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		v := r.engine.randRange(1, 2)
		require.True(t, v == 1 || v == 2)
		seen[v] = true
	}
	assert.Len(t, seen, 2)
	assert.Equal(t, 5, r.engine.randRange(5, 5))
}
