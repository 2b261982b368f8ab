// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gripper implements the action-style gripper interface: goals are
// accepted, executed one at a time by a scheduler loop, stream estimated
// progress and finish as succeeded, cancelled or aborted.
package gripper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/armcell/internal/controller"
	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/metrics"
	"github.com/ManuGH/armcell/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrUnsupportedPercentage rejects goals other than fully open or fully closed.
	ErrUnsupportedPercentage = errors.New("gripper: only 0 and 100 percent closed are supported")
	ErrTaskNotFound          = errors.New("gripper: task not found")
	ErrTaskFinished          = errors.New("gripper: task already finished")
	ErrQueueFull             = errors.New("gripper: goal queue full")
	ErrNotRunning            = errors.New("gripper: controller program not running")
	ErrServerStopped         = errors.New("gripper: server stopped")
)

// Supported goal values.
const (
	Open   = 0
	Closed = 100
)

// Status is the lifecycle state of a gripper task.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusExecuting Status = "executing"
	StatusSucceeded Status = "succeeded"
	StatusCancelled Status = "cancelled"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusCancelled || s == StatusAborted
}

// Actuator is the subset of the controller a gripper server drives.
type Actuator interface {
	GripIn(ctx context.Context, side controller.Side) error
	GripOut(ctx context.Context, side controller.Side) error
	IsProgramRunning(ctx context.Context) (bool, error)
}

// Config tunes the feedback loop.
type Config struct {
	// FeedbackInterval is the period between progress updates.
	FeedbackInterval time.Duration
	// Step is the progress increment per update. It must divide 100 so the
	// last update reports completion.
	Step int
	// QueueSize bounds the number of accepted goals awaiting execution.
	QueueSize int
	// Retain is the number of finished tasks kept for lookup.
	Retain int
}

func (c Config) withDefaults() Config {
	if c.FeedbackInterval <= 0 {
		c.FeedbackInterval = 100 * time.Millisecond
	}
	if c.Step <= 0 || c.Step > 100 || 100%c.Step != 0 {
		c.Step = 10
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 8
	}
	if c.Retain <= 0 {
		c.Retain = 64
	}
	return c
}

// Feedback is one progress update.
type Feedback struct {
	TaskID     string `json:"taskId"`
	Percentage int    `json:"percentage"`
}

// TaskInfo is a snapshot of a task.
type TaskInfo struct {
	ID         string          `json:"id"`
	Side       controller.Side `json:"side"`
	Goal       int             `json:"goal"`
	Status     Status          `json:"status"`
	Percentage int             `json:"percentage"`
	Error      string          `json:"error,omitempty"`
}

type task struct {
	id         string
	goal       int
	status     Status
	percentage int
	err        error
	cancelReq  chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
	subs       []chan Feedback
}

// Server executes gripper goals for one side.
type Server struct {
	side   controller.Side
	act    Actuator
	cfg    Config
	logger zerolog.Logger
	tracer trace.Tracer

	queue chan *task

	mu       sync.Mutex
	tasks    map[string]*task
	finished []string
	stopped  bool
}

// NewServer builds a server for side. Run must be called to execute goals.
func NewServer(side controller.Side, act Actuator, cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		side:   side,
		act:    act,
		cfg:    cfg,
		logger: xglog.WithComponent("gripper").With().Str(xglog.FieldSide, string(side)).Logger(),
		tracer: telemetry.Tracer("armcell/gripper"),
		queue:  make(chan *task, cfg.QueueSize),
		tasks:  make(map[string]*task),
	}
}

// Side returns the gripper this server drives.
func (s *Server) Side() controller.Side { return s.side }

// Submit validates and enqueues a goal. Unsupported percentages are rejected
// without touching the gripper.
func (s *Server) Submit(percentage int) (TaskInfo, error) {
	if percentage != Open && percentage != Closed {
		metrics.RecordGripperGoal(string(s.side), "rejected")
		s.logger.Error().
			Str(xglog.FieldEvent, "gripper.goal_rejected").
			Int(xglog.FieldPercentage, percentage).
			Msg("unsupported grip percentage")
		return TaskInfo{}, fmt.Errorf("%w: got %d", ErrUnsupportedPercentage, percentage)
	}

	t := &task{
		id:        uuid.NewString(),
		goal:      percentage,
		status:    StatusAccepted,
		cancelReq: make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return TaskInfo{}, ErrServerStopped
	}
	select {
	case s.queue <- t:
	default:
		return TaskInfo{}, ErrQueueFull
	}
	s.tasks[t.id] = t
	metrics.AddGripperActive(string(s.side), 1)
	s.logger.Info().
		Str(xglog.FieldEvent, "gripper.goal_accepted").
		Str(xglog.FieldTaskID, t.id).
		Int(xglog.FieldPercentage, percentage).
		Msg("gripper goal accepted")
	return s.infoLocked(t), nil
}

// Cancel requests cancellation of a task. A queued task is cancelled at once;
// an executing task stops at the next progress step.
func (s *Server) Cancel(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.status.Terminal() {
		s.mu.Unlock()
		return ErrTaskFinished
	}
	if t.status == StatusAccepted {
		s.finishLocked(t, StatusCancelled, nil)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	t.cancelOnce.Do(func() { close(t.cancelReq) })
	return nil
}

// Get returns a snapshot of a task.
func (s *Server) Get(id string) (TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return TaskInfo{}, ErrTaskNotFound
	}
	return s.infoLocked(t), nil
}

// Wait blocks until the task finishes or ctx is done.
func (s *Server) Wait(ctx context.Context, id string) (TaskInfo, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return TaskInfo{}, ErrTaskNotFound
	}
	select {
	case <-t.done:
		return s.Get(id)
	case <-ctx.Done():
		return TaskInfo{}, ctx.Err()
	}
}

// Subscribe returns a channel of progress updates for a task. The channel is
// closed when the task finishes.
func (s *Server) Subscribe(id string) (<-chan Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	ch := make(chan Feedback, 100/s.cfg.Step+1)
	if t.status.Terminal() {
		close(ch)
		return ch, nil
	}
	t.subs = append(t.subs, ch)
	return ch, nil
}

// Run executes queued goals one at a time until ctx is done. Goals still
// queued at shutdown are aborted.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Str(xglog.FieldEvent, "gripper.started").Msg("gripper server started")
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case t := <-s.queue:
			s.execute(ctx, t)
		}
	}
}

func (s *Server) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for {
		select {
		case t := <-s.queue:
			if !t.status.Terminal() {
				s.finishLocked(t, StatusAborted, ErrServerStopped)
			}
		default:
			return
		}
	}
}

func (s *Server) execute(ctx context.Context, t *task) {
	s.mu.Lock()
	if t.status != StatusAccepted {
		s.mu.Unlock()
		return
	}
	t.status = StatusExecuting
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "gripper.execute")
	span.SetAttributes(telemetry.GripperAttributes(string(s.side), t.goal)...)
	defer span.End()

	logger := s.logger.With().Str(xglog.FieldTaskID, t.id).Logger()

	abort := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Str(xglog.FieldEvent, "gripper.aborted").Msg("gripper goal aborted")
		s.mu.Lock()
		s.finishLocked(t, StatusAborted, err)
		s.mu.Unlock()
	}

	running, err := s.act.IsProgramRunning(ctx)
	if err != nil {
		abort(err)
		return
	}
	if !running {
		abort(ErrNotRunning)
		return
	}

	if t.goal == Closed {
		err = s.act.GripIn(ctx, s.side)
	} else {
		err = s.act.GripOut(ctx, s.side)
	}
	if err != nil {
		abort(err)
		return
	}
	logger.Info().Str(xglog.FieldEvent, "gripper.executing").Int(xglog.FieldPercentage, t.goal).Msg("gripper goal executing")

	// The gripper reports no position; progress is an estimate at a fixed rate.
	ticker := time.NewTicker(s.cfg.FeedbackInterval)
	defer ticker.Stop()
	steps := 100 / s.cfg.Step
	for i := 1; i <= steps; i++ {
		select {
		case <-t.cancelReq:
			s.mu.Lock()
			s.finishLocked(t, StatusCancelled, nil)
			s.mu.Unlock()
			logger.Info().Str(xglog.FieldEvent, "gripper.cancelled").Msg("gripper goal cancelled")
			return
		case <-ctx.Done():
			abort(ErrServerStopped)
			return
		default:
		}

		s.mu.Lock()
		t.percentage += s.cfg.Step
		fb := Feedback{TaskID: t.id, Percentage: t.percentage}
		for _, sub := range t.subs {
			select {
			case sub <- fb:
			default:
			}
		}
		s.mu.Unlock()

		if i == steps {
			break
		}
		select {
		case <-ticker.C:
		case <-t.cancelReq:
			s.mu.Lock()
			s.finishLocked(t, StatusCancelled, nil)
			s.mu.Unlock()
			logger.Info().Str(xglog.FieldEvent, "gripper.cancelled").Msg("gripper goal cancelled")
			return
		case <-ctx.Done():
			abort(ErrServerStopped)
			return
		}
	}

	s.mu.Lock()
	s.finishLocked(t, StatusSucceeded, nil)
	s.mu.Unlock()
	logger.Info().Str(xglog.FieldEvent, "gripper.succeeded").Msg("gripper goal succeeded")
}

// finishLocked moves t into a terminal status. Caller holds s.mu.
func (s *Server) finishLocked(t *task, st Status, err error) {
	t.status = st
	t.err = err
	for _, sub := range t.subs {
		close(sub)
	}
	t.subs = nil
	close(t.done)
	metrics.AddGripperActive(string(s.side), -1)
	metrics.RecordGripperGoal(string(s.side), string(st))

	s.finished = append(s.finished, t.id)
	for len(s.finished) > s.cfg.Retain {
		delete(s.tasks, s.finished[0])
		s.finished = s.finished[1:]
	}
}

func (s *Server) infoLocked(t *task) TaskInfo {
	info := TaskInfo{
		ID:         t.id,
		Side:       s.side,
		Goal:       t.goal,
		Status:     t.status,
		Percentage: t.percentage,
	}
	if t.err != nil {
		info.Error = t.err.Error()
	}
	return info
}
