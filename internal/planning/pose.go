// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package planning

import (
	"fmt"
	"math"
)

// Vec3 is a position in metres.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Norm returns the euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Quaternion is a unit rotation in (x, y, z, w) order.
type Quaternion struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// Identity is the zero rotation.
var Identity = Quaternion{W: 1}

// Axis selects a principal rotation axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// AxisAngle builds the rotation of angle radians about a principal axis.
func AxisAngle(axis Axis, angle float64) Quaternion {
	s, c := math.Sincos(angle / 2)
	switch axis {
	case AxisX:
		return Quaternion{X: s, W: c}
	case AxisY:
		return Quaternion{Y: s, W: c}
	default:
		return Quaternion{Z: s, W: c}
	}
}

// Mul returns the Hamilton product q*o.
func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Normalize scales q to unit length. A zero quaternion becomes Identity.
func (q Quaternion) Normalize() Quaternion {
	n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n == 0 {
		return Identity
	}
	return Quaternion{q.X / n, q.Y / n, q.Z / n, q.W / n}
}

// Rotate applies a rotation about a principal axis of q's own frame.
func (q Quaternion) Rotate(axis Axis, angle float64) Quaternion {
	return q.Mul(AxisAngle(axis, angle)).Normalize()
}

// AngleTo returns the smallest rotation angle in radians between q and o.
func (q Quaternion) AngleTo(o Quaternion) float64 {
	a, b := q.Normalize(), o.Normalize()
	dot := math.Abs(a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W)
	if dot > 1 {
		dot = 1
	}
	return 2 * math.Acos(dot)
}

// Pose is a position plus orientation; the 7-tuple (x, y, z, qx, qy, qz, qw).
type Pose struct {
	Position    Vec3       `json:"position" yaml:"position"`
	Orientation Quaternion `json:"orientation" yaml:"orientation"`
}

// PoseFromSlice builds a pose from a 7-element slice.
func PoseFromSlice(v []float64) (Pose, error) {
	if len(v) != 7 {
		return Pose{}, fmt.Errorf("pose needs 7 values, got %d", len(v))
	}
	return Pose{
		Position:    Vec3{v[0], v[1], v[2]},
		Orientation: Quaternion{v[3], v[4], v[5], v[6]},
	}, nil
}

// Slice returns the 7-tuple form of p.
func (p Pose) Slice() []float64 {
	return []float64{
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W,
	}
}

// Within reports whether o is within posTol metres and angTol radians of p.
func (p Pose) Within(o Pose, posTol, angTol float64) bool {
	return p.Position.Sub(o.Position).Norm() <= posTol &&
		p.Orientation.AngleTo(o.Orientation) <= angTol
}

func (p Pose) String() string {
	return fmt.Sprintf("[%.3f %.3f %.3f | %.3f %.3f %.3f %.3f]",
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W)
}

// JointState is a joint-space configuration in radians.
type JointState []float64

// Clone returns an independent copy.
func (j JointState) Clone() JointState {
	if j == nil {
		return nil
	}
	out := make(JointState, len(j))
	copy(out, j)
	return out
}

// L1 returns the sum of absolute joint differences over the common prefix.
func (j JointState) L1(o JointState) float64 {
	n := min(len(j), len(o))
	var d float64
	for i := 0; i < n; i++ {
		d += math.Abs(j[i] - o[i])
	}
	return d
}

// Sum returns the plain sum of all joint values.
func (j JointState) Sum() float64 {
	var s float64
	for _, v := range j {
		s += v
	}
	return s
}

// Within reports whether every joint of o is within tol of j.
func (j JointState) Within(o JointState, tol float64) bool {
	if len(j) != len(o) {
		return false
	}
	for i := range j {
		if math.Abs(j[i]-o[i]) > tol {
			return false
		}
	}
	return true
}

// AnyNonZero reports whether at least one joint reads a non-zero value.
func (j JointState) AnyNonZero() bool {
	for _, v := range j {
		if v != 0 {
			return true
		}
	}
	return false
}
