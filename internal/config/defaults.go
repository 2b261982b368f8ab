// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/armcell/internal/motion"
	"github.com/ManuGH/armcell/internal/session"
)

// Defaults returns the configuration of the dual-arm cell.
func Defaults() AppConfig {
	s := session.DefaultConfig()
	m := motion.DefaultConfig()

	seeds := make([][]float64, len(m.Ladder.Seeds))
	for i, seed := range m.Ladder.Seeds {
		seeds[i] = append([]float64(nil), seed...)
	}

	return AppConfig{
		LogLevel: "info",
		Mode:     ModeVirtual,
		Controller: ControllerConfig{
			CallTimeout: 2 * time.Second,
			RateLimit:   50,
			RateBurst:   10,
			Tasks:       append([]string(nil), s.Tasks...),
		},
		Planner: PlannerConfig{
			CallTimeout: 2 * time.Minute,
		},
		Session: SessionConfig{
			ConnectRetryInterval: s.ConnectRetryInterval,
			ConnectTimeout:       s.ConnectTimeout,
			StopSettle:           s.StopSettle,
			QuirkDelay:           s.QuirkDelay,
			StartSettle:          s.StartSettle,
			IdlePollInterval:     s.IdlePollInterval,
			IdleTimeout:          s.IdleTimeout,
			StreamConfirmTimeout: s.StreamConfirmTimeout,
			RecoveryDelay:        s.RecoveryDelay,
			CalibrationSettle:    s.CalibrationSettle,
			HoldForce:            s.HoldForce,
			ReadyPollInterval:    time.Second,
			ActivateRetryDelay:   time.Second,
		},
		Motion: MotionConfig{
			ReplanPollInterval: m.ReplanPollInterval,
			GoalTimeout:        m.GoalTimeout,
			StopSettle:         m.StopSettle,
			AttemptDelay:       m.AttemptDelay,
			StrategyDelay:      m.StrategyDelay,
			ReachRecheckDelay:  m.ReachRecheckDelay,
			GripSettle:         m.GripSettle,
			GripPollInterval:   m.GripPollInterval,
			GripTimeout:        m.GripTimeout,
			GripperLength:      m.GripperLength,
			PickHover:          m.PickHover,
			PickDisable:        m.PickDisable,
			PlaceHover:         m.PlaceHover,
			PlaceDown:          m.PlaceDown,
			PickRetries:        m.PickRetries,
			PlaceAttempts:      m.PlaceAttempts,
			HomeRetries:        m.HomeRetries,
			PathFraction:       m.PathFraction,
			SpeedScale:         m.SpeedScale,
			AccelScale:         m.AccelScale,
			Ladder: LadderConfig{
				Seeds:             seeds,
				RandomSeedIndex:   m.Ladder.RandomSeedIndex,
				JitterMin:         m.Ladder.JitterMin,
				JitterMax:         m.Ladder.JitterMax,
				SeedDistance:      m.Ladder.SeedDistance,
				CurrentDistance:   m.Ladder.CurrentDistance,
				EquivalentRetries: m.Ladder.EquivalentRetries,
				LateralShift:      m.Ladder.LateralShift,
				FirstAngleMin:     m.Ladder.FirstAngleMin,
				FirstAngleMax:     m.Ladder.FirstAngleMax,
				SecondAngleMin:    m.Ladder.SecondAngleMin,
				SecondAngleMax:    m.Ladder.SecondAngleMax,
				PerturbRetries:    m.Ladder.PerturbRetries,
			},
		},
		Components: []ComponentConfig{
			{ID: "left_arm", EndEffector: "gripper_l_base", Home: []float64{0, -2.2, 2.3, 0.5, 0, 0.7, 0}, Gripper: "left"},
			{ID: "right_arm", EndEffector: "gripper_r_base", Home: []float64{0, -2.2, -2.3, 0.5, 0, 0.7, 0}, Gripper: "right"},
			{ID: "both_arms", Members: []string{"left_arm", "right_arm"}},
		},
		Gripper: GripperConfig{
			FeedbackInterval: 100 * time.Millisecond,
			Step:             10,
			QueueSize:        8,
		},
		API: APIConfig{
			ListenAddr:      ":8080",
			RateLimit:       120,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "armcell",
			Environment:  "lab",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		SceneEvents: SceneEventsConfig{
			Addr:             "localhost:6379",
			Channel:          "armcell:scene",
			FeedbackInterval: 100 * time.Millisecond,
		},
	}
}
