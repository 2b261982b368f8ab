// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session drives the robot controller from an unknown boot state into
// streaming mode and mediates every later mode switch.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/fsm"
	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/metrics"
	"github.com/ManuGH/armcell/internal/poll"
	"github.com/ManuGH/armcell/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config tunes the driver's waits. Zero values fall back to DefaultConfig.
type Config struct {
	// Tasks are the controller motion tasks that must settle together.
	Tasks []string
	// ConnectRetryInterval is the connectivity poll period.
	ConnectRetryInterval time.Duration
	// ConnectTimeout bounds Connect. Zero blocks until connected.
	ConnectTimeout time.Duration
	// StopSettle is the wait between stopping the program and verifying it stopped.
	StopSettle time.Duration
	// QuirkDelay separates the steps of the first-run start/stop sequence.
	QuirkDelay time.Duration
	// StartSettle is the wait after the program reports running.
	StartSettle time.Duration
	// IdlePollInterval and IdleTimeout bound the task idle busy-wait.
	IdlePollInterval time.Duration
	IdleTimeout      time.Duration
	// StreamConfirmTimeout bounds the wait for tasks to report streaming.
	StreamConfirmTimeout time.Duration
	// RecoveryDelay separates the steps of the undefined-state recovery.
	RecoveryDelay time.Duration
	// CalibrationSettle is the wait after gripper calibration.
	CalibrationSettle time.Duration
	// HoldForce is applied to both grippers after calibration.
	HoldForce int
}

// DefaultConfig returns the timings used against a real controller.
func DefaultConfig() Config {
	return Config{
		Tasks:                []string{"T_ROB_L", "T_ROB_R"},
		ConnectRetryInterval: 2 * time.Second,
		StopSettle:           time.Second,
		QuirkDelay:           500 * time.Millisecond,
		StartSettle:          150 * time.Millisecond,
		IdlePollInterval:     100 * time.Millisecond,
		IdleTimeout:          60 * time.Second,
		StreamConfirmTimeout: 2 * time.Second,
		RecoveryDelay:        500 * time.Millisecond,
		CalibrationSettle:    2 * time.Second,
		HoldForce:            20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Tasks) == 0 {
		c.Tasks = d.Tasks
	}
	if c.ConnectRetryInterval <= 0 {
		c.ConnectRetryInterval = d.ConnectRetryInterval
	}
	if c.IdlePollInterval <= 0 {
		c.IdlePollInterval = d.IdlePollInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.StreamConfirmTimeout <= 0 {
		c.StreamConfirmTimeout = d.StreamConfirmTimeout
	}
	if c.HoldForce <= 0 {
		c.HoldForce = d.HoldForce
	}
	return c
}

// ControllerSession is a snapshot of the live handshake state.
type ControllerSession struct {
	Phase          Phase `json:"phase"`
	Connected      bool  `json:"connected"`
	AutoMode       bool  `json:"autoMode"`
	ProgramRunning bool  `json:"programRunning"`
	CurrentMode    Mode  `json:"currentMode"`
	MotorsOn       bool  `json:"motorsOn"`
	Ready          bool  `json:"ready"`
}

// Driver owns the controller phase machine. It is created once per cell and
// is safe for concurrent use; mode-changing operations are serialized.
type Driver struct {
	ch      controller.Controller
	cfg     Config
	machine *fsm.Machine[Phase, Event]
	logger  zerolog.Logger
	tracer  trace.Tracer

	opMu sync.Mutex // serializes mode-changing operations

	mu               sync.Mutex
	snap             ControllerSession
	firstStartIssued bool
}

// NewDriver builds a driver in PhaseDisconnected.
func NewDriver(ch controller.Controller, cfg Config) (*Driver, error) {
	m, err := fsm.New(PhaseDisconnected, transitions())
	if err != nil {
		return nil, fmt.Errorf("session: build phase machine: %w", err)
	}
	d := &Driver{
		ch:      ch,
		cfg:     cfg.withDefaults(),
		machine: m,
		logger:  xglog.WithComponent("session"),
		tracer:  telemetry.Tracer("armcell/session"),
		snap:    ControllerSession{Phase: PhaseDisconnected, CurrentMode: ModeIdle},
	}
	m.Observe(d.onTransition)
	metrics.SetSessionPhase(string(PhaseDisconnected))
	return d, nil
}

func (d *Driver) onTransition(from, to Phase, ev Event) {
	d.mu.Lock()
	d.snap.Phase = to
	d.snap.CurrentMode = to.mode()
	if to == PhaseDisconnected {
		d.snap.Connected = false
	}
	d.mu.Unlock()

	metrics.SetSessionPhase(string(to))
	metrics.RecordSessionTransition(string(from), string(to), string(ev))
	d.logger.Info().
		Str(xglog.FieldEvent, "session.transition").
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(to)).
		Str("trigger", string(ev)).
		Msg("session phase changed")
}

// Phase returns the current phase.
func (d *Driver) Phase() Phase {
	return d.machine.State()
}

// Streaming reports whether the controller accepts streamed motion.
func (d *Driver) Streaming() bool {
	return d.machine.State() == PhaseStreaming
}

// IsReady reports whether calibration completed.
func (d *Driver) IsReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap.Ready
}

// Snapshot returns the last known controller session state.
func (d *Driver) Snapshot() ControllerSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

func (d *Driver) update(fn func(*ControllerSession)) {
	d.mu.Lock()
	fn(&d.snap)
	d.mu.Unlock()
}

func (d *Driver) fire(ctx context.Context, ev Event) error {
	_, err := d.machine.Fire(ctx, ev)
	return err
}

func (d *Driver) span(ctx context.Context, op string) (context.Context, trace.Span) {
	ctx, span := d.tracer.Start(ctx, "session."+op)
	span.SetAttributes(telemetry.SessionAttributes(string(d.Phase()), op)...)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Connect polls the controller until it reports connectivity. With a zero
// ConnectTimeout it blocks until connected or ctx is cancelled.
func (d *Driver) Connect(ctx context.Context) (err error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	ctx, span := d.span(ctx, "connect")
	defer func() { endSpan(span, err) }()

	err = poll.Until(ctx, poll.Options{
		Interval: d.cfg.ConnectRetryInterval,
		Timeout:  d.cfg.ConnectTimeout,
		OnPending: func(attempt int, next time.Duration) {
			metrics.IncConnectRetry()
			d.logger.Warn().
				Str(xglog.FieldEvent, "session.connect_retry").
				Int(xglog.FieldAttempt, attempt).
				Dur("retry_in", next).
				Msg("controller not connected, retrying")
		},
	}, func(ctx context.Context) (bool, error) {
		ok, err := d.ch.IsConnected(ctx)
		if err != nil {
			d.logger.Debug().Err(err).Str(xglog.FieldEvent, "session.connect_probe_failed").Msg("connectivity probe failed")
			return false, nil
		}
		return ok, nil
	})
	if err != nil {
		return newError(KindConnection, "connect", err)
	}

	d.update(func(s *ControllerSession) { s.Connected = true })
	if d.Phase() == PhaseDisconnected {
		if err := d.fire(ctx, EventConnect); err != nil {
			return newError(KindConnection, "connect", err)
		}
	}
	d.logger.Info().Str(xglog.FieldEvent, "session.connected").Msg("controller connected")
	return nil
}

// MarkDisconnected records that the channel to the controller was lost.
func (d *Driver) MarkDisconnected() {
	d.machine.Reset(PhaseDisconnected, EventConnectionLost)
}

// VerifyAutoMode fails without retry when the controller is not in automatic mode.
func (d *Driver) VerifyAutoMode(ctx context.Context) (err error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	ctx, span := d.span(ctx, "verify_auto_mode")
	defer func() { endSpan(span, err) }()

	auto, err := d.ch.IsAutoMode(ctx)
	if err != nil {
		return newError(KindPrecondition, "verify_auto_mode", err)
	}
	d.update(func(s *ControllerSession) { s.AutoMode = auto })
	if !auto {
		d.logger.Error().Str(xglog.FieldEvent, "session.manual_mode").Msg("controller is not in automatic mode")
		return newError(KindPrecondition, "verify_auto_mode", errors.New("controller is in manual mode"))
	}
	if d.Phase() == PhaseConnected {
		if err := d.fire(ctx, EventVerifyAutoMode); err != nil {
			return newError(KindPrecondition, "verify_auto_mode", err)
		}
	}
	return nil
}

// EnsureIdle stops a running program and verifies it stopped.
func (d *Driver) EnsureIdle(ctx context.Context) (err error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	ctx, span := d.span(ctx, "ensure_idle")
	defer func() { endSpan(span, err) }()
	return d.ensureIdle(ctx)
}

func (d *Driver) ensureIdle(ctx context.Context) error {
	const op = "ensure_idle"
	running, err := d.ch.IsProgramRunning(ctx)
	if err != nil {
		return newError(KindPrecondition, op, err)
	}
	if running {
		d.logger.Info().Str(xglog.FieldEvent, "session.stopping_program").Msg("program running, stopping it")
		if err := d.ch.StopProgram(ctx); err != nil {
			return newError(KindPrecondition, op, err)
		}
		if err := poll.Sleep(ctx, d.cfg.StopSettle); err != nil {
			return newError(KindPrecondition, op, err)
		}
		running, err = d.ch.IsProgramRunning(ctx)
		if err != nil {
			return newError(KindPrecondition, op, err)
		}
		if running {
			return newError(KindPrecondition, op, errors.New("program still running after stop"))
		}
		d.logger.Info().Str(xglog.FieldEvent, "session.program_stopped").Msg("program stopped")
	}
	d.update(func(s *ControllerSession) { s.ProgramRunning = false })
	if err := d.fire(ctx, EventEnsureIdle); err != nil {
		return newError(KindPrecondition, op, err)
	}
	return nil
}

// Start powers the motors, starts program execution and waits until all
// tasks report idle.
func (d *Driver) Start(ctx context.Context) (err error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	ctx, span := d.span(ctx, "start")
	defer func() { endSpan(span, err) }()
	return d.start(ctx)
}

func (d *Driver) start(ctx context.Context) error {
	const op = "start"
	if err := d.fire(ctx, EventStart); err != nil {
		return newError(KindStart, op, err)
	}

	on, err := d.ch.IsMotorOn(ctx)
	if err != nil {
		return newError(KindStart, op, err)
	}
	if !on {
		if err := d.ch.SetMotorsOn(ctx); err != nil {
			return newError(KindStart, op, err)
		}
		d.logger.Info().Str(xglog.FieldEvent, "session.motors_on").Msg("motors switched on")
	}
	d.update(func(s *ControllerSession) { s.MotorsOn = true })

	d.mu.Lock()
	first := !d.firstStartIssued
	d.mu.Unlock()

	if first {
		// The motor-enable path only takes effect after one start/stop cycle.
		d.logger.Info().Str(xglog.FieldEvent, "session.first_start_cycle").Msg("running first-start cycle")
		steps := []func(context.Context) error{
			d.ch.StartProgram,
			func(ctx context.Context) error { return poll.Sleep(ctx, d.cfg.QuirkDelay) },
			d.ch.StopProgram,
			func(ctx context.Context) error { return poll.Sleep(ctx, d.cfg.QuirkDelay) },
		}
		for _, step := range steps {
			if err := step(ctx); err != nil {
				return newError(KindStart, op, err)
			}
		}
		d.mu.Lock()
		d.firstStartIssued = true
		d.mu.Unlock()
	}

	if err := d.ch.ResetProgramPointer(ctx); err != nil {
		return newError(KindStart, op, err)
	}
	if err := d.ch.StartProgram(ctx); err != nil {
		return newError(KindStart, op, err)
	}
	running, err := d.ch.IsProgramRunning(ctx)
	if err != nil {
		return newError(KindStart, op, err)
	}
	if !running {
		return newError(KindStart, op, errors.New("program not running after start"))
	}
	d.update(func(s *ControllerSession) { s.ProgramRunning = true })

	if err := poll.Sleep(ctx, d.cfg.StartSettle); err != nil {
		return newError(KindStart, op, err)
	}
	if err := d.waitTasksIdle(ctx); err != nil {
		return newError(KindStart, op, err)
	}
	if err := d.fire(ctx, EventProgramReady); err != nil {
		return newError(KindStart, op, err)
	}
	d.logger.Info().Str(xglog.FieldEvent, "session.started").Msg("program started and idle")
	return nil
}

func (d *Driver) waitTasksIdle(ctx context.Context) error {
	err := poll.Until(ctx, poll.Options{
		Interval: d.cfg.IdlePollInterval,
		Timeout:  d.cfg.IdleTimeout,
	}, func(ctx context.Context) (bool, error) {
		for _, task := range d.cfg.Tasks {
			st, err := d.ch.TaskState(ctx, task)
			if err != nil {
				return false, err
			}
			if st != controller.TaskIdle {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("wait for idle tasks: %w", err)
	}
	return nil
}

// EnterStreamingMode switches an idle running program into streaming. An
// undefined task state triggers one restart-and-retry; a second occurrence is
// a hard failure.
func (d *Driver) EnterStreamingMode(ctx context.Context) (err error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	ctx, span := d.span(ctx, "enter_streaming")
	defer func() { endSpan(span, err) }()
	return d.enterStreaming(ctx, false)
}

type streamOutcome int

const (
	streamPending streamOutcome = iota
	streamConfirmed
	streamUndefined
)

func (d *Driver) enterStreaming(ctx context.Context, recovering bool) error {
	const op = "enter_streaming"
	if d.Phase() == PhaseStreaming {
		return nil
	}
	if d.Phase() != PhaseIdle {
		return newError(KindMode, op, fmt.Errorf("phase %s, want %s", d.Phase(), PhaseIdle))
	}
	running, err := d.ch.IsProgramRunning(ctx)
	if err != nil {
		return newError(KindMode, op, err)
	}
	if !running {
		return newError(KindMode, op, errors.New("program not running"))
	}
	if err := d.waitTasksIdle(ctx); err != nil {
		return newError(KindMode, op, err)
	}

	if err := d.fire(ctx, EventRequestStream); err != nil {
		return newError(KindMode, op, err)
	}
	if err := d.ch.SendSignal(ctx, controller.SignalStreamStart); err != nil {
		_ = d.fire(ctx, EventStreamFailed)
		return newError(KindMode, op, err)
	}

	outcome, err := d.awaitStreaming(ctx)
	switch {
	case err != nil && outcome == streamPending:
		_ = d.fire(ctx, EventStreamFailed)
		return newError(KindMode, op, err)
	case outcome == streamConfirmed:
		if err := d.fire(ctx, EventStreamConfirmed); err != nil {
			return newError(KindMode, op, err)
		}
		if recovering {
			metrics.RecordSelfHeal(true)
		}
		d.logger.Info().Str(xglog.FieldEvent, "session.streaming").Msg("streaming mode active")
		return nil
	}

	if err := d.fire(ctx, EventAnomaly); err != nil {
		return newError(KindMode, op, err)
	}
	d.logger.Warn().
		Str(xglog.FieldEvent, "session.undefined_state").
		Bool("recovering", recovering).
		Msg("task reported undefined state after stream start")
	if recovering {
		metrics.RecordSelfHeal(false)
		return newError(KindMode, op, ErrUndefinedState)
	}
	if err := d.recover(ctx); err != nil {
		metrics.RecordSelfHeal(false)
		return newError(KindMode, op, fmt.Errorf("%w: recovery: %w", ErrUndefinedState, err))
	}
	return d.enterStreaming(ctx, true)
}

// awaitStreaming polls the tasks until all stream or any is undefined.
func (d *Driver) awaitStreaming(ctx context.Context) (streamOutcome, error) {
	outcome := streamPending
	err := poll.Until(ctx, poll.Options{
		Interval: d.cfg.IdlePollInterval,
		Timeout:  d.cfg.StreamConfirmTimeout,
	}, func(ctx context.Context) (bool, error) {
		streaming := 0
		for _, task := range d.cfg.Tasks {
			st, err := d.ch.TaskState(ctx, task)
			if err != nil {
				return false, err
			}
			switch st {
			case controller.TaskUndefined:
				outcome = streamUndefined
				return true, nil
			case controller.TaskRunning:
				streaming++
			}
		}
		if streaming == len(d.cfg.Tasks) {
			outcome = streamConfirmed
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return streamPending, fmt.Errorf("tasks did not report streaming: %w", err)
	}
	return outcome, nil
}

// recover restarts the program from scratch after an undefined task state.
func (d *Driver) recover(ctx context.Context) error {
	d.logger.Info().Str(xglog.FieldEvent, "session.self_heal").Msg("restarting program after undefined state")
	steps := []func(context.Context) error{
		d.ch.StopProgram,
		func(ctx context.Context) error { return poll.Sleep(ctx, d.cfg.RecoveryDelay) },
		d.ch.ResetProgramPointer,
		func(ctx context.Context) error { return poll.Sleep(ctx, d.cfg.RecoveryDelay) },
		d.start,
		func(ctx context.Context) error { return poll.Sleep(ctx, d.cfg.RecoveryDelay) },
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopStreaming sends the stream-stop signal and returns to Idle.
func (d *Driver) StopStreaming(ctx context.Context) (err error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	ctx, span := d.span(ctx, "stop_streaming")
	defer func() { endSpan(span, err) }()

	if err := d.ch.SendSignal(ctx, controller.SignalStreamStop); err != nil {
		return newError(KindMode, "stop_streaming", err)
	}
	if d.Phase() == PhaseStreaming {
		if err := d.fire(ctx, EventStopStream); err != nil {
			return newError(KindMode, "stop_streaming", err)
		}
	}
	d.logger.Info().Str(xglog.FieldEvent, "session.streaming_stopped").Msg("streaming mode stopped")
	return nil
}

// RequestMotorsOff switches the motors off and verifies the flag cleared.
func (d *Driver) RequestMotorsOff(ctx context.Context) (err error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	ctx, span := d.span(ctx, "motors_off")
	defer func() { endSpan(span, err) }()

	const op = "motors_off"
	if err := d.ch.SetMotorsOff(ctx); err != nil {
		return newError(KindActuation, op, err)
	}
	on, err := d.ch.IsMotorOn(ctx)
	if err != nil {
		return newError(KindActuation, op, err)
	}
	d.update(func(s *ControllerSession) { s.MotorsOn = on })
	if on {
		return newError(KindActuation, op, errors.New("motors still on"))
	}
	d.logger.Info().Str(xglog.FieldEvent, "session.motors_off").Msg("motors switched off")
	return nil
}

// Configure calibrates both grippers, applies the hold force and marks the
// cell ready. The program must be running.
func (d *Driver) Configure(ctx context.Context) (err error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	ctx, span := d.span(ctx, "configure")
	defer func() { endSpan(span, err) }()

	const op = "configure"
	running, err := d.ch.IsProgramRunning(ctx)
	if err != nil {
		return newError(KindPrecondition, op, err)
	}
	if !running {
		return newError(KindPrecondition, op, errors.New("program not running"))
	}
	if err := d.waitTasksIdle(ctx); err != nil {
		return newError(KindActuation, op, err)
	}
	if err := d.ch.Calibrate(ctx); err != nil {
		return newError(KindActuation, op, err)
	}
	if err := poll.Sleep(ctx, d.cfg.CalibrationSettle); err != nil {
		return newError(KindActuation, op, err)
	}
	if err := d.waitTasksIdle(ctx); err != nil {
		return newError(KindActuation, op, err)
	}
	for _, side := range controller.Sides {
		if err := d.ch.SetHoldForce(ctx, side, d.cfg.HoldForce); err != nil {
			return newError(KindActuation, op, err)
		}
	}

	d.update(func(s *ControllerSession) { s.Ready = true })
	metrics.SetReady(true)
	d.logger.Info().
		Str(xglog.FieldEvent, "session.calibrated").
		Int("hold_force", d.cfg.HoldForce).
		Msg("grippers calibrated, cell ready")
	return nil
}

// Bootstrap runs connect, auto-mode verification, idle, start and configure.
func (d *Driver) Bootstrap(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"connect", d.Connect},
		{"verify_auto_mode", d.VerifyAutoMode},
		{"ensure_idle", d.EnsureIdle},
		{"start", d.Start},
		{"configure", d.Configure},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			d.logger.Error().Err(err).Str(xglog.FieldEvent, "session.bootstrap_failed").Str("step", s.name).Msg("bootstrap failed")
			return err
		}
	}
	return nil
}
