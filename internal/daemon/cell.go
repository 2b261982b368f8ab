// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the cell from configuration and owns its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/armcell/internal/api"
	"github.com/ManuGH/armcell/internal/cell"
	"github.com/ManuGH/armcell/internal/config"
	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/events"
	"github.com/ManuGH/armcell/internal/gripper"
	"github.com/ManuGH/armcell/internal/health"
	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/motion"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/registry"
	"github.com/ManuGH/armcell/internal/scene"
	"github.com/ManuGH/armcell/internal/session"
)

// Backends are the hardware-facing collaborators. In virtual mode missing
// backends are replaced by simulators.
type Backends struct {
	Controller controller.Controller
	Planner    planning.Service
	Signals    planning.Signaler
}

// Cell is the assembled runtime.
type Cell struct {
	Config      config.AppConfig
	Session     *session.Driver
	Registry    *registry.Registry
	Scene       *scene.Scene
	Engine      *motion.Engine
	Grippers    map[controller.Side]*gripper.Server
	Feedback    *events.FeedbackWatcher
	Subscriber  *events.SceneSubscriber
	Coordinator *cell.Coordinator
	Health      *health.Manager
	API         *api.Server
}

var virtualStart = map[controller.Side]planning.Pose{
	controller.SideLeft:  {Position: planning.Vec3{X: 0.4, Y: 0.2, Z: 0.3}, Orientation: planning.Identity},
	controller.SideRight: {Position: planning.Vec3{X: 0.4, Y: -0.2, Z: 0.3}, Orientation: planning.Identity},
}

// fillVirtual substitutes simulators for missing backends. Simulated arms
// start at their home states so joint feedback is live from the first sample.
func fillVirtual(cfg config.AppConfig, b Backends) Backends {
	if b.Controller == nil {
		b.Controller = controller.NewSim(controller.SimConfig{
			Tasks:          cfg.Controller.Tasks,
			AutoMode:       true,
			ProgramRunning: true,
		})
	}
	if b.Planner == nil || b.Signals == nil {
		comps := make(map[string]planning.SimComponent)
		for _, c := range cfg.RegistryComponents() {
			if len(c.Members) > 0 {
				continue
			}
			comps[c.ID] = planning.SimComponent{State: c.Home.Clone(), Pose: virtualStart[c.GripperSide]}
		}
		sim := planning.NewSim(comps)
		if b.Planner == nil {
			b.Planner = sim
		}
		if b.Signals == nil {
			b.Signals = sim
		}
	}
	return b
}

// Build assembles the cell. The scene subscriber connects to redis here, so
// an unreachable event bus fails the build.
func Build(ctx context.Context, cfg config.AppConfig, b Backends) (*Cell, error) {
	logger := xglog.WithComponent("daemon")

	switch cfg.Mode {
	case config.ModeHardware:
		if b.Controller == nil || b.Planner == nil || b.Signals == nil {
			return nil, ErrMissingBackends
		}
	default:
		if b.Controller == nil || b.Planner == nil {
			logger.Warn().
				Str(xglog.FieldEvent, "daemon.virtual_backends").
				Str(xglog.FieldMode, cfg.Mode).
				Msg("using simulated controller and planner")
		}
		b = fillVirtual(cfg, b)
	}

	ch := controller.NewLimited(b.Controller, cfg.ControllerOptions())
	planner := planning.NewLimited(b.Planner, b.Signals, cfg.PlannerCallTimeout())

	driver, err := session.NewDriver(ch, cfg.SessionConfig())
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	reg, err := registry.New(cfg.RegistryComponents())
	if err != nil {
		return nil, err
	}
	sc := scene.New(reg)

	engine, err := motion.NewEngine(motion.Deps{
		Gate:     driver,
		Registry: reg,
		Planner:  planner,
		Signals:  planner,
		Scene:    sc,
		Gripper:  ch,
	}, cfg.MotionConfig())
	if err != nil {
		return nil, err
	}

	grippers := make(map[controller.Side]*gripper.Server, len(controller.Sides))
	apiGrippers := make(map[controller.Side]api.GripperServer, len(controller.Sides))
	for _, side := range controller.Sides {
		g := gripper.NewServer(side, ch, cfg.GripperConfig())
		grippers[side] = g
		apiGrippers[side] = g
	}

	feedback := events.NewFeedbackWatcher(planner, cfg.ArmIDs(), cfg.SceneEvents.FeedbackInterval)
	coord := cell.NewCoordinator(driver, feedback, cell.Config{
		ReadyPollInterval: cfg.Session.ReadyPollInterval,
		RetryDelay:        cfg.Session.ActivateRetryDelay,
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewSessionChecker(driver))
	hm.RegisterChecker(health.NewFlagChecker("must_stop",
		func() bool { return !engine.MustStop() },
		health.StatusDegraded, "motion allowed", "retry budget exhausted, operator reset required"))
	hm.RegisterChecker(health.NewFlagChecker("joint_feedback",
		feedback.Live, health.StatusDegraded, "joint feedback live", "no joint feedback"))

	var sub *events.SceneSubscriber
	if cfg.SceneEvents.Enabled {
		sub, err = events.NewSceneSubscriber(ctx, cfg.RedisConfig(), sc)
		if err != nil {
			return nil, err
		}
		hm.RegisterChecker(health.NewPingChecker("scene_events", sub.HealthCheck, 2*time.Second, health.StatusDegraded))
	}

	srv, err := api.New(api.Config{
		RateLimit:      cfg.API.RateLimit,
		TracingService: tracingService(cfg),
		EnableMetrics:  cfg.Metrics.Enabled,
	}, api.Deps{
		Session:    driver,
		Motion:     engine,
		Components: reg,
		Grippers:   apiGrippers,
		Scene:      sc,
		Health:     hm,
	})
	if err != nil {
		if sub != nil {
			err = errors.Join(err, sub.Close())
		}
		return nil, err
	}

	return &Cell{
		Config:      cfg,
		Session:     driver,
		Registry:    reg,
		Scene:       sc,
		Engine:      engine,
		Grippers:    grippers,
		Feedback:    feedback,
		Subscriber:  sub,
		Coordinator: coord,
		Health:      hm,
		API:         srv,
	}, nil
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.Telemetry.ServiceName
}
