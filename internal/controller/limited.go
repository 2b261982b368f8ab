// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/armcell/internal/metrics"
	"golang.org/x/time/rate"
)

// Options configures the Limited decorator.
type Options struct {
	CallTimeout    time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
}

const (
	defaultCallTimeout    = 2 * time.Second
	defaultRateLimit      = 50
	defaultRateLimitBurst = 10
)

func normalizeOptions(opts Options) Options {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	return opts
}

// Limited wraps a Controller so that every call is rate limited, bounded by a
// per-call timeout and recorded in metrics.
type Limited struct {
	inner   Controller
	limiter *rate.Limiter
	timeout time.Duration
}

// NewLimited decorates inner with opts.
func NewLimited(inner Controller, opts Options) *Limited {
	n := normalizeOptions(opts)
	return &Limited{
		inner:   inner,
		limiter: rate.NewLimiter(n.RateLimit, n.RateLimitBurst),
		timeout: n.CallTimeout,
	}
}

func do[T any](ctx context.Context, l *Limited, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.limiter.Wait(ctx); err != nil {
		metrics.ObserveControllerCall(op, metrics.ResultError, 0)
		return zero, fmt.Errorf("controller %s: rate limit: %w", op, err)
	}

	start := time.Now()
	v, err := fn(ctx)
	if err != nil {
		metrics.ObserveControllerCall(op, metrics.ResultError, time.Since(start))
		return zero, fmt.Errorf("controller %s: %w", op, err)
	}
	metrics.ObserveControllerCall(op, metrics.ResultOK, time.Since(start))
	return v, nil
}

func doErr(ctx context.Context, l *Limited, op string, fn func(context.Context) error) error {
	_, err := do(ctx, l, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (l *Limited) IsConnected(ctx context.Context) (bool, error) {
	return do(ctx, l, "is_connected", l.inner.IsConnected)
}

func (l *Limited) IsAutoMode(ctx context.Context) (bool, error) {
	return do(ctx, l, "is_auto_mode", l.inner.IsAutoMode)
}

func (l *Limited) IsProgramRunning(ctx context.Context) (bool, error) {
	return do(ctx, l, "is_program_running", l.inner.IsProgramRunning)
}

func (l *Limited) TaskState(ctx context.Context, task string) (TaskState, error) {
	return do(ctx, l, "task_state", func(ctx context.Context) (TaskState, error) {
		return l.inner.TaskState(ctx, task)
	})
}

func (l *Limited) SendSignal(ctx context.Context, sig Signal) error {
	return doErr(ctx, l, "send_signal", func(ctx context.Context) error {
		return l.inner.SendSignal(ctx, sig)
	})
}

func (l *Limited) StartProgram(ctx context.Context) error {
	return doErr(ctx, l, "start_program", l.inner.StartProgram)
}

func (l *Limited) StopProgram(ctx context.Context) error {
	return doErr(ctx, l, "stop_program", l.inner.StopProgram)
}

func (l *Limited) ResetProgramPointer(ctx context.Context) error {
	return doErr(ctx, l, "reset_program_pointer", l.inner.ResetProgramPointer)
}

func (l *Limited) SetMotorsOn(ctx context.Context) error {
	return doErr(ctx, l, "set_motors_on", l.inner.SetMotorsOn)
}

func (l *Limited) SetMotorsOff(ctx context.Context) error {
	return doErr(ctx, l, "set_motors_off", l.inner.SetMotorsOff)
}

func (l *Limited) IsMotorOn(ctx context.Context) (bool, error) {
	return do(ctx, l, "is_motor_on", l.inner.IsMotorOn)
}

func (l *Limited) GripIn(ctx context.Context, side Side) error {
	return doErr(ctx, l, "grip_in", func(ctx context.Context) error { return l.inner.GripIn(ctx, side) })
}

func (l *Limited) GripOut(ctx context.Context, side Side) error {
	return doErr(ctx, l, "grip_out", func(ctx context.Context) error { return l.inner.GripOut(ctx, side) })
}

func (l *Limited) Calibrate(ctx context.Context) error {
	return doErr(ctx, l, "calibrate", l.inner.Calibrate)
}

func (l *Limited) SetHoldForce(ctx context.Context, side Side, force int) error {
	return doErr(ctx, l, "set_hold_force", func(ctx context.Context) error {
		return l.inner.SetHoldForce(ctx, side, force)
	})
}

func (l *Limited) IsClosed(ctx context.Context, side Side) (bool, error) {
	return do(ctx, l, "is_closed", func(ctx context.Context) (bool, error) { return l.inner.IsClosed(ctx, side) })
}

func (l *Limited) IsOpen(ctx context.Context, side Side) (bool, error) {
	return do(ctx, l, "is_open", func(ctx context.Context) (bool, error) { return l.inner.IsOpen(ctx, side) })
}

var _ Controller = (*Limited)(nil)
