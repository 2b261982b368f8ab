// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testComponents() []Component {
	return []Component{
		{ID: "left_arm", EndEffector: "gripper_l_base", Home: planning.JointState{0, -2.2, 2.3, 0.5, 0, 0.7, 0}, GripperSide: controller.SideLeft},
		{ID: "right_arm", EndEffector: "gripper_r_base", Home: planning.JointState{0, -2.2, -2.3, 0.5, 0, 0.7, 0}, GripperSide: controller.SideRight},
		{ID: "both_arms", Members: []string{"left_arm", "right_arm"}},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(testComponents())
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	_, err := New([]Component{{ID: "a"}, {ID: "a"}})
	require.Error(t, err)

	_, err = New([]Component{{ID: ""}})
	require.Error(t, err)

	_, err = New([]Component{{ID: "both", Members: []string{"ghost"}}})
	require.Error(t, err)
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Get("left_arm")
	require.NoError(t, err)
	c.Home[0] = 42

	again, err := r.Get("left_arm")
	require.NoError(t, err)
	if diff := cmp.Diff(testComponents()[0], again); diff != "" {
		t.Fatalf("component mutated through copy (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"left_arm", "right_arm", "both_arms"}, r.IDs())
}

func TestUnknownComponent(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get("tail")
	require.ErrorIs(t, err, ErrUnknownComponent)

	var uce *UnknownComponentError
	require.True(t, errors.As(err, &uce))
	assert.Equal(t, "tail", uce.ID)

	require.ErrorIs(t, r.SetShouldReplan("tail", true), ErrUnknownComponent)
	_, err = r.ConsumeShouldReplan("tail")
	require.ErrorIs(t, err, ErrUnknownComponent)
}

func TestConsumeShouldReplan_OneShot(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.SetShouldReplan("left_arm", true))

	v, err := r.ConsumeShouldReplan("left_arm")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = r.ConsumeShouldReplan("left_arm")
	require.NoError(t, err)
	assert.False(t, v)
}

func TestMarkAllShouldReplan(t *testing.T) {
	r := newTestRegistry(t)
	r.MarkAllShouldReplan()
	for _, id := range r.IDs() {
		v, err := r.ShouldReplan(id)
		require.NoError(t, err)
		assert.True(t, v, id)
	}
}

// Each set followed by a consume is observed exactly once, even when setters
// and consumers race.
func TestShouldReplan_NoLostOrDuplicatedSignals(t *testing.T) {
	r := newTestRegistry(t)
	const rounds = 2000

	var consumed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		require.NoError(t, r.SetShouldReplan("right_arm", true))

		hits := make(chan bool, 4)
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := r.ConsumeShouldReplan("right_arm")
				if err == nil && v {
					hits <- true
				}
			}()
		}
		wg.Wait()
		close(hits)
		n := 0
		for range hits {
			n++
		}
		require.Equal(t, 1, n, "round %d", i)
		consumed.Add(int64(n))
	}
	assert.Equal(t, int64(rounds), consumed.Load())
}

func TestTryBeginMotion(t *testing.T) {
	r := newTestRegistry(t)

	ok, err := r.TryBeginMotion("left_arm")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.TryBeginMotion("left_arm")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.SetInMotion("left_arm", false))
	in, err := r.InMotion("left_arm")
	require.NoError(t, err)
	assert.False(t, in)
}

func TestExpandAndStatus(t *testing.T) {
	r := newTestRegistry(t)

	ids, err := r.Expand("both_arms")
	require.NoError(t, err)
	assert.Equal(t, []string{"left_arm", "right_arm"}, ids)

	ids, err = r.Expand("left_arm")
	require.NoError(t, err)
	assert.Equal(t, []string{"left_arm"}, ids)

	require.NoError(t, r.SetInMotion("right_arm", true))
	st, err := r.Status("right_arm")
	require.NoError(t, err)
	assert.True(t, st.InMotion)
	assert.False(t, st.ShouldReplan)
	assert.Equal(t, controller.SideRight, st.Component.GripperSide)
}
