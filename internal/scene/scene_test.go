// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scene

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/armcell/internal/planning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReplanner struct{ n atomic.Int32 }

func (c *countingReplanner) MarkAllShouldReplan() { c.n.Add(1) }

func cube() Object {
	return Object{
		ID:         "cube",
		Pose:       planning.Pose{Position: planning.Vec3{X: 0.4, Y: 0.1, Z: 0.02}, Orientation: planning.Identity},
		Dimensions: planning.Vec3{X: 0.04, Y: 0.04, Z: 0.04},
	}
}

func TestMutationsRaiseReplan(t *testing.T) {
	r := &countingReplanner{}
	s := New(r)

	var kinds []ChangeKind
	s.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

	require.NoError(t, s.Add(cube()))
	require.NoError(t, s.Move("cube", planning.Pose{Position: planning.Vec3{X: 0.5}, Orientation: planning.Identity}))
	require.NoError(t, s.Remove("cube"))

	assert.Equal(t, int32(3), r.n.Load())
	assert.Equal(t, []ChangeKind{ChangeAdded, ChangeMoved, ChangeRemoved}, kinds)

	_, ok := s.Find("cube")
	assert.False(t, ok)
}

func TestUnknownObject(t *testing.T) {
	s := New(nil)
	require.ErrorIs(t, s.Remove("ghost"), ErrObjectNotFound)
	require.ErrorIs(t, s.Move("ghost", planning.Pose{}), ErrObjectNotFound)
	_, err := s.ShiftObject("ghost", 0.1)
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestAdd_Validation(t *testing.T) {
	s := New(nil)
	require.Error(t, s.Add(Object{}))
	bad := cube()
	bad.Dimensions.Z = -1
	require.Error(t, s.Add(bad))
}

func TestShiftObject(t *testing.T) {
	r := &countingReplanner{}
	s := New(r, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, s.Add(cube()))

	pos, err := s.ShiftObject("cube", 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, math.Abs(pos.Y-0.1), 1e-9)
	assert.InDelta(t, 0.4, pos.X, 1e-9)
	assert.Equal(t, int32(2), r.n.Load())

	o, ok := s.Find("cube")
	require.True(t, ok)
	assert.Equal(t, pos, o.Pose.Position)
}

func TestObjectsSorted(t *testing.T) {
	s := New(nil)
	b := cube()
	b.ID = "b"
	a := cube()
	a.ID = "a"
	require.NoError(t, s.Add(b))
	require.NoError(t, s.Add(a))

	objs := s.Objects()
	require.Len(t, objs, 2)
	assert.Equal(t, "a", objs[0].ID)
}
