// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package planning defines the contract of the external motion-planning and
// kinematics service together with the pose types it exchanges.
package planning

import (
	"context"
	"errors"
)

// ErrUnknownComponent is returned by a Service for a component it does not plan for.
var ErrUnknownComponent = errors.New("planning: unknown component")

// Options tunes a single planning request.
type Options struct {
	// Retries is the number of internal planning retries the service may spend.
	Retries int
	// CollisionChecking enables collision checking for Cartesian paths.
	CollisionChecking bool
	// SpeedScale and AccelScale scale velocity and acceleration limits, in (0,1].
	SpeedScale float64
	AccelScale float64
	// PathFraction is the minimum fraction of a Cartesian path that must be
	// planned for the attempt to count; zero means the service default.
	PathFraction float64
	// Async dispatches the goal and returns once it was accepted.
	Async bool
}

// Service is the planning and kinematics service consumed by the motion engine.
// A false result without error means the goal was not achieved; errors are
// reserved for transport or addressing faults.
type Service interface {
	MoveToPose(ctx context.Context, component string, pose Pose, opts Options) (bool, error)
	MoveToState(ctx context.Context, component string, state JointState, opts Options) (bool, error)
	// LinearMoveToPose plans a Cartesian straight-line path to pose.
	LinearMoveToPose(ctx context.Context, component string, pose Pose, opts Options) (bool, error)
	PoseReached(ctx context.Context, component string, pose Pose) (bool, error)
	StateReached(ctx context.Context, component string, state JointState) (bool, error)
	CurrentState(ctx context.Context, component string) (JointState, error)
	CurrentPose(ctx context.Context, component string) (Pose, error)
	// InverseKinematics returns a joint solution for pose starting from seed.
	// ok is false when no solution exists.
	InverseKinematics(ctx context.Context, component string, pose Pose, seed JointState) (JointState, bool, error)
}

// Signaler carries the stop and resume-allowed signals for a component's
// trajectory execution.
type Signaler interface {
	StopMotion(ctx context.Context, component string) error
	AllowMotion(ctx context.Context, component string) error
}
