// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/armcell/internal/metrics"
)

// ErrCallTimeout is returned when a planning call outlives its timeout.
var ErrCallTimeout = errors.New("planning: call timed out")

const defaultCallTimeout = 2 * time.Minute

// Limited bounds every call on a planning service and its stop signals with a
// per-call timeout and records it in metrics.
type Limited struct {
	svc     Service
	sig     Signaler
	timeout time.Duration
}

// NewLimited decorates svc and sig. A zero timeout uses the default.
func NewLimited(svc Service, sig Signaler, timeout time.Duration) *Limited {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Limited{svc: svc, sig: sig, timeout: timeout}
}

// Timeout returns the per-call bound.
func (l *Limited) Timeout() time.Duration { return l.timeout }

func call[T any](ctx context.Context, l *Limited, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeoutCause(ctx, l.timeout, ErrCallTimeout)
	defer cancel()

	start := time.Now()
	v, err := fn(ctx)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrCallTimeout) {
			metrics.ObservePlannerCall(op, metrics.ResultTimeout, time.Since(start))
			return zero, fmt.Errorf("%s after %s: %w", op, l.timeout, ErrCallTimeout)
		}
		metrics.ObservePlannerCall(op, metrics.ResultError, time.Since(start))
		return zero, err
	}
	metrics.ObservePlannerCall(op, metrics.ResultOK, time.Since(start))
	return v, nil
}

func (l *Limited) MoveToPose(ctx context.Context, component string, pose Pose, opts Options) (bool, error) {
	return call(ctx, l, "move_to_pose", func(ctx context.Context) (bool, error) {
		return l.svc.MoveToPose(ctx, component, pose, opts)
	})
}

func (l *Limited) MoveToState(ctx context.Context, component string, state JointState, opts Options) (bool, error) {
	return call(ctx, l, "move_to_state", func(ctx context.Context) (bool, error) {
		return l.svc.MoveToState(ctx, component, state, opts)
	})
}

func (l *Limited) LinearMoveToPose(ctx context.Context, component string, pose Pose, opts Options) (bool, error) {
	return call(ctx, l, "linear_move_to_pose", func(ctx context.Context) (bool, error) {
		return l.svc.LinearMoveToPose(ctx, component, pose, opts)
	})
}

func (l *Limited) PoseReached(ctx context.Context, component string, pose Pose) (bool, error) {
	return call(ctx, l, "pose_reached", func(ctx context.Context) (bool, error) {
		return l.svc.PoseReached(ctx, component, pose)
	})
}

func (l *Limited) StateReached(ctx context.Context, component string, state JointState) (bool, error) {
	return call(ctx, l, "state_reached", func(ctx context.Context) (bool, error) {
		return l.svc.StateReached(ctx, component, state)
	})
}

func (l *Limited) CurrentState(ctx context.Context, component string) (JointState, error) {
	return call(ctx, l, "current_state", func(ctx context.Context) (JointState, error) {
		return l.svc.CurrentState(ctx, component)
	})
}

func (l *Limited) CurrentPose(ctx context.Context, component string) (Pose, error) {
	return call(ctx, l, "current_pose", func(ctx context.Context) (Pose, error) {
		return l.svc.CurrentPose(ctx, component)
	})
}

type ikResult struct {
	state JointState
	ok    bool
}

func (l *Limited) InverseKinematics(ctx context.Context, component string, pose Pose, seed JointState) (JointState, bool, error) {
	r, err := call(ctx, l, "inverse_kinematics", func(ctx context.Context) (ikResult, error) {
		s, ok, err := l.svc.InverseKinematics(ctx, component, pose, seed)
		return ikResult{state: s, ok: ok}, err
	})
	return r.state, r.ok, err
}

func (l *Limited) StopMotion(ctx context.Context, component string) error {
	_, err := call(ctx, l, "stop_motion", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.sig.StopMotion(ctx, component)
	})
	return err
}

func (l *Limited) AllowMotion(ctx context.Context, component string) error {
	_, err := call(ctx, l, "allow_motion", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.sig.AllowMotion(ctx, component)
	})
	return err
}

var (
	_ Service  = (*Limited)(nil)
	_ Signaler = (*Limited)(nil)
)
