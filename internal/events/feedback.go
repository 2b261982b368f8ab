// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/rs/zerolog"
)

// StateSource reports joint feedback.
type StateSource interface {
	CurrentState(ctx context.Context, component string) (planning.JointState, error)
}

// FeedbackWatcher tracks whether every watched component reports live joint
// feedback. An all-zero joint vector counts as no feedback.
type FeedbackWatcher struct {
	src        StateSource
	components []string
	interval   time.Duration
	logger     zerolog.Logger

	live     atomic.Bool
	once     sync.Once
	liveOnce chan struct{}
}

// NewFeedbackWatcher watches components every interval (default 100ms).
func NewFeedbackWatcher(src StateSource, components []string, interval time.Duration) *FeedbackWatcher {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &FeedbackWatcher{
		src:        src,
		components: append([]string(nil), components...),
		interval:   interval,
		logger:     xglog.WithComponent("joint-feedback"),
		liveOnce:   make(chan struct{}),
	}
}

// Live reports whether the last sample had feedback for every component.
func (w *FeedbackWatcher) Live() bool { return w.live.Load() }

// Wait blocks until feedback was seen at least once or ctx is done.
func (w *FeedbackWatcher) Wait(ctx context.Context) error {
	select {
	case <-w.liveOnce:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Run samples feedback until ctx is cancelled.
func (w *FeedbackWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.sample(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *FeedbackWatcher) sample(ctx context.Context) {
	live := len(w.components) > 0
	for _, c := range w.components {
		state, err := w.src.CurrentState(ctx, c)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Debug().Err(err).Str(xglog.FieldPlanningComponent, c).Msg("joint feedback unavailable")
			}
			live = false
			break
		}
		if !state.AnyNonZero() {
			live = false
			break
		}
	}

	if prev := w.live.Swap(live); prev != live {
		w.logger.Info().
			Str(xglog.FieldEvent, "feedback.changed").
			Bool("live", live).
			Msg("joint feedback state changed")
	}
	if live {
		w.once.Do(func() { close(w.liveOnce) })
	}
}
