// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/armcell/internal/metrics"
	"github.com/ManuGH/armcell/internal/validate"
)

// JointCount is the number of joints of one arm.
const JointCount = 7

var logLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}

// Validate checks cfg and returns a validate.ValidationError listing every problem.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("mode", cfg.Mode, []string{ModeVirtual, ModeHardware})
	v.OneOf("logLevel", strings.ToLower(cfg.LogLevel), logLevels)

	validateController(v, cfg.Controller)
	v.Positive("planner.callTimeout", cfg.Planner.CallTimeout)
	validateSession(v, cfg.Session)
	validateMotion(v, cfg.Motion)
	validateComponents(v, cfg.Components)

	v.Positive("gripper.feedbackInterval", cfg.Gripper.FeedbackInterval)
	v.Range("gripper.step", cfg.Gripper.Step, 1, 100)
	if cfg.Gripper.Step > 0 && 100%cfg.Gripper.Step != 0 {
		v.AddError("gripper.step", "must divide 100", cfg.Gripper.Step)
	}
	v.Range("gripper.queueSize", cfg.Gripper.QueueSize, 1, 1024)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.Range("api.rateLimit", cfg.API.RateLimit, 1, 100000)
	v.Positive("api.shutdownTimeout", cfg.API.ShutdownTimeout)

	if cfg.Metrics.Enabled {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
		if cfg.Metrics.ListenAddr == cfg.API.ListenAddr {
			v.AddError("metrics.listenAddr", "must differ from api.listenAddr", cfg.Metrics.ListenAddr)
		}
	}

	if cfg.Telemetry.Enabled {
		v.NotEmpty("telemetry.serviceName", cfg.Telemetry.ServiceName)
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.OneOf("telemetry.exporterType", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	if cfg.SceneEvents.Enabled {
		v.NotEmpty("sceneEvents.addr", cfg.SceneEvents.Addr)
		v.NotEmpty("sceneEvents.channel", cfg.SceneEvents.Channel)
		v.Range("sceneEvents.db", cfg.SceneEvents.DB, 0, 15)
	}
	v.Positive("sceneEvents.feedbackInterval", cfg.SceneEvents.FeedbackInterval)

	if err := v.Err(); err != nil {
		metrics.IncConfigValidationError()
		return err
	}
	return nil
}

func validateController(v *validate.Validator, c ControllerConfig) {
	v.Positive("controller.callTimeout", c.CallTimeout)
	v.FloatRange("controller.rateLimit", c.RateLimit, 0.1, 10000)
	v.Range("controller.rateBurst", c.RateBurst, 1, 10000)
	if len(c.Tasks) == 0 {
		v.AddError("controller.tasks", "at least one task is required", c.Tasks)
	}
	for i, task := range c.Tasks {
		v.NotEmpty(fmt.Sprintf("controller.tasks[%d]", i), task)
	}
}

func validateSession(v *validate.Validator, s SessionConfig) {
	v.Positive("session.connectRetryInterval", s.ConnectRetryInterval)
	v.NonNegative("session.connectTimeout", s.ConnectTimeout)
	v.NonNegative("session.stopSettle", s.StopSettle)
	v.NonNegative("session.quirkDelay", s.QuirkDelay)
	v.NonNegative("session.startSettle", s.StartSettle)
	v.Positive("session.idlePollInterval", s.IdlePollInterval)
	v.Positive("session.idleTimeout", s.IdleTimeout)
	v.Positive("session.streamConfirmTimeout", s.StreamConfirmTimeout)
	v.NonNegative("session.recoveryDelay", s.RecoveryDelay)
	v.NonNegative("session.calibrationSettle", s.CalibrationSettle)
	v.Range("session.holdForce", s.HoldForce, 1, 20)
	v.Positive("session.readyPollInterval", s.ReadyPollInterval)
	v.NonNegative("session.activateRetryDelay", s.ActivateRetryDelay)
}

func validateMotion(v *validate.Validator, m MotionConfig) {
	v.Positive("motion.replanPollInterval", m.ReplanPollInterval)
	v.Positive("motion.goalTimeout", m.GoalTimeout)
	v.NonNegative("motion.stopSettle", m.StopSettle)
	v.NonNegative("motion.attemptDelay", m.AttemptDelay)
	v.NonNegative("motion.strategyDelay", m.StrategyDelay)
	v.NonNegative("motion.reachRecheckDelay", m.ReachRecheckDelay)
	v.NonNegative("motion.gripSettle", m.GripSettle)
	v.Positive("motion.gripPollInterval", m.GripPollInterval)
	v.Positive("motion.gripTimeout", m.GripTimeout)

	v.FloatRange("motion.gripperLength", m.GripperLength, 0, 1)
	v.FloatRange("motion.pickHover", m.PickHover, 0, 1)
	v.FloatRange("motion.pickDisable", m.PickDisable, 0, 1)
	v.FloatRange("motion.placeHover", m.PlaceHover, 0, 1)
	v.FloatRange("motion.placeDown", m.PlaceDown, 0, 1)
	if m.PickDisable > m.PickHover {
		v.AddError("motion.pickDisable", "must not exceed motion.pickHover", m.PickDisable)
	}
	v.Range("motion.pickRetries", m.PickRetries, 0, 100)
	v.Range("motion.placeAttempts", m.PlaceAttempts, 1, 100)
	v.Range("motion.homeRetries", m.HomeRetries, 0, 100)
	v.FloatRange("motion.pathFraction", m.PathFraction, 0, 1)
	v.FloatRange("motion.speedScale", m.SpeedScale, 0.01, 1)
	v.FloatRange("motion.accelScale", m.AccelScale, 0.01, 1)

	l := m.Ladder
	if len(l.Seeds) == 0 {
		v.AddError("motion.ladder.seeds", "at least one seed is required", nil)
	}
	for i, seed := range l.Seeds {
		if len(seed) != JointCount {
			v.AddError(fmt.Sprintf("motion.ladder.seeds[%d]", i), fmt.Sprintf("must have %d joints", JointCount), len(seed))
		}
	}
	v.Range("motion.ladder.randomSeedIndex", l.RandomSeedIndex, 0, len(l.Seeds))
	v.Range("motion.ladder.jitterMin", l.JitterMin, 0, 10)
	v.Range("motion.ladder.jitterMax", l.JitterMax, l.JitterMin, 10)
	v.FloatRange("motion.ladder.seedDistance", l.SeedDistance, 0, 100)
	v.FloatRange("motion.ladder.currentDistance", l.CurrentDistance, 0, 100)
	v.Range("motion.ladder.equivalentRetries", l.EquivalentRetries, 0, 100)
	v.FloatRange("motion.ladder.lateralShift", l.LateralShift, 0, 1)
	v.Range("motion.ladder.firstAngleMin", l.FirstAngleMin, 0, 180)
	v.Range("motion.ladder.firstAngleMax", l.FirstAngleMax, l.FirstAngleMin, 180)
	v.Range("motion.ladder.secondAngleMin", l.SecondAngleMin, 0, 180)
	v.Range("motion.ladder.secondAngleMax", l.SecondAngleMax, l.SecondAngleMin, 180)
	v.Range("motion.ladder.perturbRetries", l.PerturbRetries, 0, 100)
}

func validateComponents(v *validate.Validator, comps []ComponentConfig) {
	if len(comps) == 0 {
		v.AddError("components", "at least one component is required", nil)
		return
	}
	ids := make(map[string]struct{}, len(comps))
	grippers := make(map[string]string)
	for i, c := range comps {
		field := fmt.Sprintf("components[%d]", i)
		if strings.TrimSpace(c.ID) == "" {
			v.AddError(field+".id", "must not be empty", c.ID)
			continue
		}
		if _, dup := ids[c.ID]; dup {
			v.AddError(field+".id", "duplicate component id", c.ID)
		}
		ids[c.ID] = struct{}{}

		if len(c.Home) != 0 && len(c.Home)%JointCount != 0 {
			v.AddError(field+".home", fmt.Sprintf("must have a multiple of %d joints", JointCount), len(c.Home))
		}
		if c.Gripper != "" {
			v.OneOf(field+".gripper", c.Gripper, []string{"left", "right"})
			if owner, taken := grippers[c.Gripper]; taken {
				v.AddError(field+".gripper", "gripper already mounted on "+owner, c.Gripper)
			}
			grippers[c.Gripper] = c.ID
		}
	}
	for i, c := range comps {
		for _, m := range c.Members {
			if _, ok := ids[m]; !ok {
				v.AddError(fmt.Sprintf("components[%d].members", i), "unknown member component", m)
			}
			if m == c.ID {
				v.AddError(fmt.Sprintf("components[%d].members", i), "component cannot list itself", m)
			}
		}
	}
}
