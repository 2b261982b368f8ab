// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/events"
	"github.com/ManuGH/armcell/internal/gripper"
	"github.com/ManuGH/armcell/internal/motion"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/registry"
	"github.com/ManuGH/armcell/internal/session"
	"github.com/ManuGH/armcell/internal/telemetry"
	"golang.org/x/time/rate"
)

// SessionConfig returns the session driver configuration.
func (c AppConfig) SessionConfig() session.Config {
	s := c.Session
	return session.Config{
		Tasks:                append([]string(nil), c.Controller.Tasks...),
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
	}
}

// MotionConfig returns the motion engine configuration.
func (c AppConfig) MotionConfig() motion.Config {
	m := c.Motion
	seeds := make([]planning.JointState, len(m.Ladder.Seeds))
	for i, s := range m.Ladder.Seeds {
		seeds[i] = planning.JointState(s).Clone()
	}
	return motion.Config{
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
		PathFraction:       m.PathFraction,
		HomeRetries:        m.HomeRetries,
		SpeedScale:         m.SpeedScale,
		AccelScale:         m.AccelScale,
		Ladder: motion.LadderConfig{
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
	}
}

// ControllerOptions returns the control channel limits.
func (c AppConfig) ControllerOptions() controller.Options {
	return controller.Options{
		CallTimeout:    c.Controller.CallTimeout,
		RateLimit:      rate.Limit(c.Controller.RateLimit),
		RateLimitBurst: c.Controller.RateBurst,
	}
}

// PlannerCallTimeout returns the per-call bound on the planning service.
func (c AppConfig) PlannerCallTimeout() time.Duration {
	return c.Planner.CallTimeout
}

// GripperConfig returns the action server configuration.
func (c AppConfig) GripperConfig() gripper.Config {
	return gripper.Config{
		FeedbackInterval: c.Gripper.FeedbackInterval,
		Step:             c.Gripper.Step,
		QueueSize:        c.Gripper.QueueSize,
	}
}

// TelemetryConfig returns the OpenTelemetry provider configuration.
func (c AppConfig) TelemetryConfig() telemetry.Config {
	t := c.Telemetry
	return telemetry.Config{
		Enabled:        t.Enabled,
		ServiceName:    t.ServiceName,
		ServiceVersion: c.Version,
		Environment:    t.Environment,
		ExporterType:   t.ExporterType,
		Endpoint:       t.Endpoint,
		SamplingRate:   t.SamplingRate,
	}
}

// RegistryComponents returns the planning components.
func (c AppConfig) RegistryComponents() []registry.Component {
	out := make([]registry.Component, 0, len(c.Components))
	for _, cc := range c.Components {
		out = append(out, registry.Component{
			ID:          cc.ID,
			EndEffector: cc.EndEffector,
			Home:        planning.JointState(cc.Home).Clone(),
			Members:     append([]string(nil), cc.Members...),
			GripperSide: controller.Side(cc.Gripper),
		})
	}
	return out
}

// ArmIDs returns the components that drive a single arm.
func (c AppConfig) ArmIDs() []string {
	var ids []string
	for _, cc := range c.Components {
		if len(cc.Members) == 0 {
			ids = append(ids, cc.ID)
		}
	}
	return ids
}

// RedisConfig returns the scene subscriber connection settings.
func (c AppConfig) RedisConfig() events.RedisConfig {
	return events.RedisConfig{
		Addr:     c.SceneEvents.Addr,
		Password: c.SceneEvents.Password,
		DB:       c.SceneEvents.DB,
		Channel:  c.SceneEvents.Channel,
	}
}
