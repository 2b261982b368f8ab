// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package motion

import (
	"errors"

	"github.com/ManuGH/armcell/internal/scene"
)

var (
	// ErrNotReady rejects motion while the session is not streaming.
	ErrNotReady = errors.New("motion: controller not in streaming mode")
	// ErrMotion reports a goal that was not achieved.
	ErrMotion = errors.New("motion: goal not achieved")
	// ErrRetryBudgetExhausted is wrapped together with ErrMotion when the
	// Cartesian retry ladder runs out of attempts.
	ErrRetryBudgetExhausted = errors.New("motion: retry budget exhausted")
	// ErrComponentBusy rejects a goal for a component that already has one in flight.
	ErrComponentBusy = errors.New("motion: component already in motion")
	// ErrObjectNotFound reports an object missing from the scene.
	ErrObjectNotFound = scene.ErrObjectNotFound
	// ErrCancelled is the cause of a goal aborted through Cancel.
	ErrCancelled = errors.New("motion: goal cancelled")
	// ErrInvalidGoal rejects malformed goals.
	ErrInvalidGoal = errors.New("motion: invalid goal")
	// ErrNoGripper is returned for gripper operations on a component without one.
	ErrNoGripper = errors.New("motion: component has no gripper")
	// ErrGripNotVerified reports a grip or release the sensor did not confirm.
	ErrGripNotVerified = errors.New("motion: gripper state not verified")
)
