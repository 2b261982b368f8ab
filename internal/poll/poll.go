// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package poll provides the bounded poll-with-backoff helper shared by the
// session driver, the motion engine and the background workers.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrTimeout is returned when a poll exceeds its configured timeout.
var ErrTimeout = errors.New("poll timeout")

// errPending marks a condition that is not yet satisfied. It never escapes Until.
var errPending = errors.New("condition pending")

// Condition reports whether the awaited state has been reached.
// A non-nil error aborts polling immediately.
type Condition func(ctx context.Context) (bool, error)

// Options tunes a poll loop.
type Options struct {
	// Interval is the delay between checks. Defaults to 100ms.
	Interval time.Duration
	// MaxInterval enables exponential growth of the delay up to this cap.
	// Zero or a value not above Interval keeps the delay constant.
	MaxInterval time.Duration
	// Timeout bounds the whole loop. Zero waits until ctx is done.
	Timeout time.Duration
	// OnPending is called before each wait with the number of failed checks so far.
	OnPending func(attempt int, next time.Duration)
}

func (o Options) backOff() backoff.BackOff {
	interval := o.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if o.MaxInterval <= interval {
		return backoff.NewConstantBackOff(interval)
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     interval,
		RandomizationFactor: 0,
		Multiplier:          1.5,
		MaxInterval:         o.MaxInterval,
	}
}

// Until evaluates cond until it returns true, cond fails, the timeout elapses
// or ctx is cancelled. The first check runs immediately.
func Until(ctx context.Context, opts Options, cond Condition) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, opts.Timeout, ErrTimeout)
		defer cancel()
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := cond(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errPending
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(opts.backOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, next time.Duration) {
			attempt++
			if opts.OnPending != nil {
				opts.OnPending(attempt, next)
			}
		}),
	)
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(context.Cause(ctx), ErrTimeout) {
		return ErrTimeout
	}
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
