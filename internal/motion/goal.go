// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package motion

import (
	"fmt"

	"github.com/ManuGH/armcell/internal/planning"
)

// Kind selects the target space of a goal.
type Kind string

const (
	KindPose  Kind = "pose"
	KindJoint Kind = "joint"
)

// Goal is a single requested target. Exactly one of Pose and JointState is
// set, matching Kind. Zero scales use the engine defaults.
type Goal struct {
	Kind              Kind                `json:"kind"`
	Pose              *planning.Pose      `json:"pose,omitempty"`
	JointState        planning.JointState `json:"jointState,omitempty"`
	RetryBudget       int                 `json:"retryBudget"`
	CollisionChecking bool                `json:"collisionChecking"`
	SpeedScale        float64             `json:"speedScale,omitempty"`
	AccelScale        float64             `json:"accelScale,omitempty"`
}

// PoseGoal builds a pose target.
func PoseGoal(p planning.Pose, retries int) Goal {
	return Goal{Kind: KindPose, Pose: &p, RetryBudget: retries}
}

// JointGoal builds a joint-space target.
func JointGoal(j planning.JointState, retries int) Goal {
	return Goal{Kind: KindJoint, JointState: j.Clone(), RetryBudget: retries}
}

// Validate checks the kind/target pairing and value ranges.
func (g Goal) Validate() error {
	switch g.Kind {
	case KindPose:
		if g.Pose == nil || g.JointState != nil {
			return fmt.Errorf("%w: pose goal needs a pose and no joint state", ErrInvalidGoal)
		}
	case KindJoint:
		if g.Pose != nil || len(g.JointState) == 0 {
			return fmt.Errorf("%w: joint goal needs a joint state and no pose", ErrInvalidGoal)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidGoal, g.Kind)
	}
	if g.RetryBudget < 0 {
		return fmt.Errorf("%w: negative retry budget", ErrInvalidGoal)
	}
	for name, v := range map[string]float64{"speed": g.SpeedScale, "accel": g.AccelScale} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s scale %.2f outside (0,1]", ErrInvalidGoal, name, v)
		}
	}
	return nil
}

// Strategy tags one retry ladder attempt.
type Strategy string

const (
	StrategyDirect           Strategy = "direct"
	StrategyEquivalentState  Strategy = "equivalent_state"
	StrategyPerturbAndReturn Strategy = "perturb_and_return"
)

// RetryAttempt records one attempt made while executing a goal.
type RetryAttempt struct {
	Strategy    Strategy `json:"strategy"`
	Success     bool     `json:"success"`
	RetriesLeft int      `json:"retriesLeft"`
}

// Outcome summarizes a Cartesian move.
type Outcome struct {
	Attempts []RetryAttempt `json:"attempts"`
}

// LinearOptions tunes a Cartesian move.
type LinearOptions struct {
	Retries           int
	CollisionChecking bool
	// PathFraction is the minimum planned fraction of the path; zero uses the planner default.
	PathFraction float64
	SpeedScale   float64
	AccelScale   float64
}
