// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the operator HTTP surface of the cell: the streaming
// mode switches, motion goals, gripper actions and the scene.
package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/armcell/internal/api/middleware"
	"github.com/ManuGH/armcell/internal/health"
	"github.com/go-chi/chi/v5"
)

// Config configures the HTTP surface.
type Config struct {
	// RateLimit is the per-client request budget per minute. Zero disables limiting.
	RateLimit int
	// TracingService names the otelhttp spans. Empty disables tracing.
	TracingService string
	EnableMetrics  bool
}

// Server routes operator requests to the cell.
type Server struct {
	cfg  Config
	deps Deps
}

// New validates deps and creates a server.
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Session == nil:
		return nil, errors.New("api: session is required")
	case deps.Motion == nil:
		return nil, errors.New("api: motion engine is required")
	case deps.Components == nil:
		return nil, errors.New("api: component registry is required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	return &Server{cfg: cfg, deps: deps}, nil
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         s.cfg.EnableMetrics,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.APIRateLimit(s.cfg.RateLimit))
		}
		r.Route("/api/v1", s.registerRoutes)
	})
	return r
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/session", s.handleSession)
	r.Get("/ready", s.handleIsReady)
	r.Post("/egm/start", s.handleStartEgm)
	r.Post("/egm/stop", s.handleStopEgm)
	r.Post("/motors/stop", s.handleStopMotors)

	r.Get("/motion/must-stop", s.handleMustStop)
	r.Delete("/motion/must-stop", s.handleResetMustStop)

	r.Route("/components", func(r chi.Router) {
		r.Get("/", s.handleListComponents)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetComponent)
			r.Post("/goal", s.handleMoveToGoal)
			r.Post("/linear", s.handleLinearMove)
			r.Post("/home", s.handleMoveHome)
			r.Post("/object", s.handleMoveToObject)
			r.Post("/pick", s.handlePick)
			r.Post("/place", s.handlePlace)
			r.Post("/grip", s.handleGrip)
			r.Post("/cancel", s.handleCancel)
			r.Post("/stop", s.handleStopMotion)
			r.Post("/allow", s.handleAllowMotion)
		})
	})

	r.Route("/grippers/{side}/goals", func(r chi.Router) {
		r.Post("/", s.handleSubmitGripperGoal)
		r.Get("/{taskID}", s.handleGetGripperGoal)
		r.Delete("/{taskID}", s.handleCancelGripperGoal)
		r.Get("/{taskID}/feedback", s.handleGripperFeedback)
	})

	r.Route("/scene/objects", func(r chi.Router) {
		r.Get("/", s.handleListObjects)
		r.Get("/{objectID}", s.handleGetObject)
		r.Put("/{objectID}", s.handlePutObject)
		r.Delete("/{objectID}", s.handleDeleteObject)
		r.Post("/{objectID}/shift", s.handleShiftObject)
		r.Get("/{objectID}/grasp", s.handleGraspPoses)
	})
}
