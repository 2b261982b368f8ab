// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package motion

import (
	"time"

	"github.com/ManuGH/armcell/internal/planning"
)

// LadderConfig holds the empirically tuned constants of the Cartesian retry
// ladder. The policy structure is fixed; these values are not.
type LadderConfig struct {
	// Seeds are the inverse kinematics seeds tried in order.
	Seeds []planning.JointState
	// RandomSeedIndex is where the randomly perturbed current state is inserted.
	RandomSeedIndex int
	// JitterMin and JitterMax bound the per-joint perturbation of that seed.
	JitterMin int
	JitterMax int
	// SeedDistance is the minimum L1 distance between a solution and its seed.
	SeedDistance float64
	// CurrentDistance is the minimum L1 distance between a solution and the current state.
	CurrentDistance float64
	// EquivalentRetries is the planner retry budget for the move to an equivalent state.
	EquivalentRetries int
	// LateralShift is the position offset of a perturbation pose, in metres.
	LateralShift float64
	// First and second perturbation rotation ranges, in degrees.
	FirstAngleMin  int
	FirstAngleMax  int
	SecondAngleMin int
	SecondAngleMax int
	// PerturbRetries is the planner retry budget for each perturbation move.
	PerturbRetries int
}

// DefaultLadder returns the seeds and ranges tuned on the dual-arm cell.
func DefaultLadder() LadderConfig {
	return LadderConfig{
		Seeds: []planning.JointState{
			{-2.83, -1.18, 2.64, -0.47, 1.89, 0.96, 1.56},
			{-1.95, -1.95, 0.94, 0.87, -3.55, 2.87, 2.41},
			{-1.61, -1.68, 0.97, 0.91, 2.35, 2.07, 2.21},
			{-2.40, -0.3177, 2.62, 0.46, 1.86, 0.69, 1.39},
			{-1.68, -0.88, 1.57, 0.60, 2.10, 1.34, 1.66},
			{0.24, -0.69, -0.77, 0.35, 2.2, -0.021, -1},
			{0, 0, 0, 0.2, 0, 0, 0},
			{0.9, -2, -1.7, 0.76, -2.7, 1, 1},
			{-0.78, -1.8, 1.5, 0.12, 1.15, 0.85, 0.92},
			{-0.97, -1.8, 1.4, 0.34, 0.61, 1.3, 0.76},
			{1.15, -1.5, -1.74, -0.64, -0.61, 0.54, -0.89},
		},
		RandomSeedIndex:   9,
		JitterMin:         1,
		JitterMax:         2,
		SeedDistance:      0.5,
		CurrentDistance:   0.25,
		EquivalentRetries: 5,
		LateralShift:      0.1,
		FirstAngleMin:     20,
		FirstAngleMax:     40,
		SecondAngleMin:    50,
		SecondAngleMax:    150,
		PerturbRetries:    3,
	}
}

// Config tunes the engine's delays and workflow constants.
type Config struct {
	// ReplanPollInterval is the goal-reached poll period in replanning mode.
	ReplanPollInterval time.Duration
	// GoalTimeout bounds a direct or replanning goal execution.
	GoalTimeout time.Duration
	// StopSettle is the delay between the stop and resume-allowed signals.
	StopSettle time.Duration
	// AttemptDelay precedes every retry ladder attempt.
	AttemptDelay time.Duration
	// StrategyDelay precedes the sub-strategy of a ladder attempt.
	StrategyDelay time.Duration
	// ReachRecheckDelay precedes the second goal-reached check of a Cartesian move.
	ReachRecheckDelay time.Duration
	// GripSettle follows gripper actions inside pick and place.
	GripSettle time.Duration
	// GripPollInterval and GripTimeout bound blocking gripper waits.
	GripPollInterval time.Duration
	GripTimeout      time.Duration
	// GripperLength is the distance from flange to finger tips, in metres.
	GripperLength float64
	// PickHover, PickDisable and PlaceHover, PlaceDown are approach margins in metres.
	PickHover   float64
	PickDisable float64
	PlaceHover  float64
	PlaceDown   float64
	// PickRetries is the planner retry budget for pick moves.
	PickRetries int
	// PlaceAttempts bounds the attempts of each place leg.
	PlaceAttempts int
	// PathFraction is the minimum Cartesian fraction for retract and place legs.
	PathFraction float64
	// HomeRetries is the retry budget for moves home after a missing object.
	HomeRetries int
	// SpeedScale and AccelScale are the defaults for goals that leave them zero.
	SpeedScale float64
	AccelScale float64
	Ladder     LadderConfig
}

// DefaultConfig returns the timings used on the real cell.
func DefaultConfig() Config {
	return Config{
		ReplanPollInterval: 100 * time.Millisecond,
		GoalTimeout:        2 * time.Minute,
		StopSettle:         500 * time.Millisecond,
		AttemptDelay:       3 * time.Second,
		StrategyDelay:      2 * time.Second,
		ReachRecheckDelay:  time.Second,
		GripSettle:         3 * time.Second,
		GripPollInterval:   100 * time.Millisecond,
		GripTimeout:        10 * time.Second,
		GripperLength:      0.135,
		PickHover:          0.20,
		PickDisable:        0.05,
		PlaceHover:         0.20,
		PlaceDown:          0.01,
		PickRetries:        3,
		PlaceAttempts:      10,
		PathFraction:       0.7,
		HomeRetries:        2,
		SpeedScale:         1.0,
		AccelScale:         1.0,
		Ladder:             DefaultLadder(),
	}
}
