// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cell brings the cell into streaming mode once the controller is
// ready and takes it back down on shutdown.
package cell

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/poll"
	"github.com/ManuGH/armcell/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session is the part of the session driver the coordinator drives.
type Session interface {
	IsReady() bool
	EnterStreamingMode(ctx context.Context) error
	StopStreaming(ctx context.Context) error
	RequestMotorsOff(ctx context.Context) error
}

// Feedback reports when joint feedback has been seen.
type Feedback interface {
	Wait(ctx context.Context) error
}

// Config tunes activation.
type Config struct {
	// ReadyPollInterval is the IsReady poll period.
	ReadyPollInterval time.Duration
	// RetryDelay separates the two streaming attempts.
	RetryDelay time.Duration
}

// Coordinator sequences cell activation and termination.
type Coordinator struct {
	session  Session
	feedback Feedback
	cfg      Config
	logger   zerolog.Logger
	tracer   trace.Tracer
	active   atomic.Bool
}

// NewCoordinator creates a coordinator. feedback may be nil to skip the
// joint feedback wait.
func NewCoordinator(s Session, feedback Feedback, cfg Config) *Coordinator {
	if cfg.ReadyPollInterval <= 0 {
		cfg.ReadyPollInterval = time.Second
	}
	return &Coordinator{
		session:  s,
		feedback: feedback,
		cfg:      cfg,
		logger:   xglog.WithComponent("cell"),
		tracer:   telemetry.Tracer("armcell/cell"),
	}
}

// Active reports whether Activate completed and Terminate has not run since.
func (c *Coordinator) Active() bool { return c.active.Load() }

// Activate waits until the controller is ready, enters streaming mode with
// one retry and waits for live joint feedback.
func (c *Coordinator) Activate(ctx context.Context) (err error) {
	ctx, span := c.tracer.Start(ctx, "cell.activate")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	c.logger.Info().Str(xglog.FieldEvent, "cell.wait_ready").Msg("waiting for controller readiness")
	err = poll.Until(ctx, poll.Options{Interval: c.cfg.ReadyPollInterval}, func(context.Context) (bool, error) {
		return c.session.IsReady(), nil
	})
	if err != nil {
		return fmt.Errorf("cell: wait ready: %w", err)
	}

	if err := c.session.EnterStreamingMode(ctx); err != nil {
		c.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "cell.streaming_retry").
			Dur("delay", c.cfg.RetryDelay).
			Msg("streaming mode failed, retrying once")
		if serr := poll.Sleep(ctx, c.cfg.RetryDelay); serr != nil {
			return fmt.Errorf("cell: enter streaming: %w", errors.Join(err, serr))
		}
		if err := c.session.EnterStreamingMode(ctx); err != nil {
			return fmt.Errorf("cell: enter streaming: %w", err)
		}
	}

	if c.feedback != nil {
		c.logger.Info().Str(xglog.FieldEvent, "cell.wait_feedback").Msg("waiting for joint feedback")
		if err := c.feedback.Wait(ctx); err != nil {
			return fmt.Errorf("cell: wait joint feedback: %w", err)
		}
	}

	c.active.Store(true)
	c.logger.Info().Str(xglog.FieldEvent, "cell.active").Msg("cell active")
	return nil
}

// Terminate leaves streaming mode and switches the motors off. Both steps
// run even if the first fails.
func (c *Coordinator) Terminate(ctx context.Context) error {
	c.active.Store(false)
	var errs []error
	if err := c.session.StopStreaming(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cell: stop streaming: %w", err))
	}
	if err := c.session.RequestMotorsOff(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cell: motors off: %w", err))
	}
	err := errors.Join(errs...)
	ev := c.logger.Info()
	if err != nil {
		ev = c.logger.Error().Err(err)
	}
	ev.Str(xglog.FieldEvent, "cell.terminated").Msg("cell terminated")
	return err
}
