// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package motion executes motion goals for planning components: direct and
// replanning goal execution, the Cartesian retry ladder, object-relative moves
// and the pick and place workflows.
package motion

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/armcell/internal/controller"
	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/metrics"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/poll"
	"github.com/ManuGH/armcell/internal/registry"
	"github.com/ManuGH/armcell/internal/scene"
	"github.com/ManuGH/armcell/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Gate reports whether motion may be dispatched.
type Gate interface {
	Streaming() bool
}

// Objects resolves scene objects by id.
type Objects interface {
	Find(id string) (scene.Object, bool)
}

// Recompute produces a fresh goal after a replan request.
type Recompute func(ctx context.Context) (Goal, error)

// Deps are the collaborators of an Engine.
type Deps struct {
	Gate     Gate
	Registry *registry.Registry
	Planner  planning.Service
	Signals  planning.Signaler
	Scene    Objects
	Gripper  controller.Gripper
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for seed jitter and perturbation poses.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// Engine executes motion goals. All methods are safe for concurrent use; a
// component accepts one goal at a time.
type Engine struct {
	deps   Deps
	logger zerolog.Logger
	tracer trace.Tracer

	ladderAttempts metric.Int64Counter

	cfgMu sync.RWMutex
	cfg   Config

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	inflight map[string]*flight

	mustStop atomic.Bool
}

type flight struct {
	cancel context.CancelCauseFunc
}

// claimKey marks a context that already holds the claim on a component, so
// the legs of a workflow run under a single claim.
type claimKey struct{ id string }

func holdsClaim(ctx context.Context, id string) bool {
	return ctx.Value(claimKey{id}) != nil
}

// NewEngine wires an engine. Zero delays mean no wait; zero poll intervals,
// timeouts, scales and an empty ladder fall back to DefaultConfig.
func NewEngine(deps Deps, cfg Config, opts ...Option) (*Engine, error) {
	switch {
	case deps.Gate == nil:
		return nil, errors.New("motion: gate is required")
	case deps.Registry == nil:
		return nil, errors.New("motion: registry is required")
	case deps.Planner == nil:
		return nil, errors.New("motion: planner is required")
	case deps.Signals == nil:
		return nil, errors.New("motion: signaler is required")
	}

	counter, err := telemetry.Meter("armcell/motion").Int64Counter(
		"armcell.motion.ladder_attempts",
		metric.WithDescription("Cartesian retry ladder attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("motion: create ladder counter: %w", err)
	}

	e := &Engine{
		deps:           deps,
		logger:         xglog.WithComponent("motion"),
		tracer:         telemetry.Tracer("armcell/motion"),
		ladderAttempts: counter,
		cfg:            withDefaults(cfg),
		rng:            rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), // #nosec G404 -- motion jitter, not security
		inflight:       make(map[string]*flight),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	setDur := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	setDur(&cfg.ReplanPollInterval, def.ReplanPollInterval)
	setDur(&cfg.GoalTimeout, def.GoalTimeout)
	setDur(&cfg.GripPollInterval, def.GripPollInterval)
	setDur(&cfg.GripTimeout, def.GripTimeout)
	if cfg.GripperLength <= 0 {
		cfg.GripperLength = def.GripperLength
	}
	if cfg.PlaceAttempts <= 0 {
		cfg.PlaceAttempts = def.PlaceAttempts
	}
	if cfg.SpeedScale <= 0 {
		cfg.SpeedScale = def.SpeedScale
	}
	if cfg.AccelScale <= 0 {
		cfg.AccelScale = def.AccelScale
	}
	if len(cfg.Ladder.Seeds) == 0 {
		cfg.Ladder = def.Ladder
	}
	return cfg
}

// Config returns the active tuning.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// SetConfig swaps the tuning. Goals already executing keep the values they started with.
func (e *Engine) SetConfig(cfg Config) {
	cfg = withDefaults(cfg)
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
	e.logger.Info().Str(xglog.FieldEvent, "motion.config_applied").Msg("motion tuning updated")
}

// MustStop reports whether a retry ladder ran out of attempts.
func (e *Engine) MustStop() bool { return e.mustStop.Load() }

// ResetMustStop clears the must-stop flag.
func (e *Engine) ResetMustStop() {
	e.mustStop.Store(false)
	metrics.SetMustStop(false)
}

func (e *Engine) setMustStop() {
	e.mustStop.Store(true)
	metrics.SetMustStop(true)
}

func (e *Engine) randIntN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

// randRange returns an integer uniformly drawn from [lo, hi].
func (e *Engine) randRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + e.randIntN(hi-lo+1)
}

// begin validates addressing and readiness and claims the component.
// The component is checked first so an unknown id never reaches the planner.
// A context that already holds the claim for id reuses it.
func (e *Engine) begin(ctx context.Context, id string) (context.Context, registry.Component, func(), error) {
	comp, err := e.deps.Registry.Get(id)
	if err != nil {
		return ctx, registry.Component{}, nil, err
	}
	if !e.deps.Gate.Streaming() {
		return ctx, comp, nil, ErrNotReady
	}
	if holdsClaim(ctx, id) {
		return ctx, comp, func() {}, nil
	}
	ok, err := e.deps.Registry.TryBeginMotion(id)
	if err != nil {
		return ctx, comp, nil, err
	}
	if !ok {
		return ctx, comp, nil, fmt.Errorf("%w: %s", ErrComponentBusy, id)
	}
	metrics.SetInMotion(id, true)

	fctx, cancel := context.WithCancelCause(ctx)
	f := &flight{cancel: cancel}
	e.mu.Lock()
	e.inflight[id] = f
	e.mu.Unlock()

	end := func() {
		cancel(nil)
		e.mu.Lock()
		owned := e.inflight[id] == f
		if owned {
			delete(e.inflight, id)
		}
		e.mu.Unlock()
		if owned {
			_ = e.deps.Registry.SetInMotion(id, false)
			metrics.SetInMotion(id, false)
		}
	}
	return context.WithValue(fctx, claimKey{id}, f), comp, end, nil
}

func (e *Engine) goalContext(ctx context.Context) (context.Context, zerolog.Logger) {
	goalID := xglog.GoalIDFromContext(ctx)
	if goalID == "" {
		goalID = uuid.NewString()
		ctx = xglog.ContextWithGoalID(ctx, goalID)
	}
	return ctx, xglog.WithComponentFromContext(ctx, "motion")
}

func (e *Engine) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := e.tracer.Start(ctx, "motion."+op)
	span.SetAttributes(attrs...)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "reached"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrComponentBusy), errors.Is(err, ErrInvalidGoal),
		errors.Is(err, registry.ErrUnknownComponent):
		return "rejected"
	default:
		return "failed"
	}
}

func (e *Engine) planOptions(cfg Config, g Goal, async bool) planning.Options {
	opts := planning.Options{
		Retries:           g.RetryBudget,
		CollisionChecking: g.CollisionChecking,
		SpeedScale:        g.SpeedScale,
		AccelScale:        g.AccelScale,
		Async:             async,
	}
	if opts.SpeedScale == 0 {
		opts.SpeedScale = cfg.SpeedScale
	}
	if opts.AccelScale == 0 {
		opts.AccelScale = cfg.AccelScale
	}
	return opts
}

// dispatch sends g to the planner.
func (e *Engine) dispatch(ctx context.Context, cfg Config, id string, g Goal, async bool) (bool, error) {
	opts := e.planOptions(cfg, g, async)
	if g.Kind == KindPose {
		return e.deps.Planner.MoveToPose(ctx, id, *g.Pose, opts)
	}
	return e.deps.Planner.MoveToState(ctx, id, g.JointState, opts)
}

func (e *Engine) reached(ctx context.Context, id string, g Goal) (bool, error) {
	if g.Kind == KindPose {
		return e.deps.Planner.PoseReached(ctx, id, *g.Pose)
	}
	return e.deps.Planner.StateReached(ctx, id, g.JointState)
}

// cause prefers the cancellation cause of ctx over err.
func cause(ctx context.Context, err error) error {
	c := context.Cause(ctx)
	switch {
	case c == nil:
		return err
	case errors.Is(c, ErrCancelled):
		return ErrCancelled
	case errors.Is(c, ErrMotion):
		return c
	}
	return err
}

// MoveToGoal executes g once and blocks until the planner reports completion
// or GoalTimeout passes. The goal succeeds only when the final state matches it.
func (e *Engine) MoveToGoal(ctx context.Context, id string, g Goal) (err error) {
	ctx, logger := e.goalContext(ctx)
	ctx, span := e.span(ctx, "move_to_goal", telemetry.MotionAttributes(id, string(g.Kind), g.RetryBudget, false)...)
	start := time.Now()
	defer func() {
		metrics.RecordMotionGoal(id, string(g.Kind), outcomeOf(err), time.Since(start))
		endSpan(span, err)
	}()

	ctx, _, end, err := e.begin(ctx, id)
	if err != nil {
		return err
	}
	defer end()
	if err := g.Validate(); err != nil {
		return err
	}
	cfg := e.Config()
	ctx, cancel := context.WithTimeoutCause(ctx, cfg.GoalTimeout,
		fmt.Errorf("%w: %s not reached within %s", ErrMotion, id, cfg.GoalTimeout))
	defer cancel()

	logger.Info().
		Str(xglog.FieldEvent, "motion.goal_dispatched").
		Str(xglog.FieldPlanningComponent, id).
		Str("kind", string(g.Kind)).
		Int("retry_budget", g.RetryBudget).
		Msg("executing motion goal")

	ok, err := e.dispatch(ctx, cfg, id, g, false)
	if err != nil {
		return cause(ctx, fmt.Errorf("motion: dispatch %s: %w", id, err))
	}
	if !ok {
		return fmt.Errorf("%w: planner rejected %s goal for %s", ErrMotion, g.Kind, id)
	}
	reached, err := e.reached(ctx, id, g)
	if err != nil {
		return cause(ctx, fmt.Errorf("motion: check goal %s: %w", id, err))
	}
	if !reached {
		return fmt.Errorf("%w: %s did not reach the %s target", ErrMotion, id, g.Kind)
	}
	logger.Info().
		Str(xglog.FieldEvent, "motion.goal_reached").
		Str(xglog.FieldPlanningComponent, id).
		Dur("duration", time.Since(start)).
		Msg("motion goal reached")
	return nil
}

// MoveToGoalReplanning dispatches g asynchronously and polls until it is
// reached. When the component is flagged for replanning the running motion is
// stopped, the goal is recomputed and dispatched again. A nil recompute reuses g.
func (e *Engine) MoveToGoalReplanning(ctx context.Context, id string, g Goal, recompute Recompute) (err error) {
	ctx, logger := e.goalContext(ctx)
	ctx, span := e.span(ctx, "move_to_goal_replanning", telemetry.MotionAttributes(id, string(g.Kind), g.RetryBudget, true)...)
	start := time.Now()
	defer func() {
		metrics.RecordMotionGoal(id, string(g.Kind), outcomeOf(err), time.Since(start))
		endSpan(span, err)
	}()

	ctx, _, end, err := e.begin(ctx, id)
	if err != nil {
		return err
	}
	defer end()
	if err := g.Validate(); err != nil {
		return err
	}
	cfg := e.Config()

	send := func(goal Goal) error {
		ok, err := e.dispatch(ctx, cfg, id, goal, true)
		if err != nil {
			return fmt.Errorf("motion: dispatch %s: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("%w: planner rejected %s goal for %s", ErrMotion, goal.Kind, id)
		}
		return nil
	}
	if err := send(g); err != nil {
		return cause(ctx, err)
	}

	replans := 0
	err = poll.Until(ctx, poll.Options{Interval: cfg.ReplanPollInterval, Timeout: cfg.GoalTimeout}, func(ctx context.Context) (bool, error) {
		reached, err := e.reached(ctx, id, g)
		if err != nil {
			return false, err
		}
		if reached {
			return true, nil
		}
		replan, err := e.deps.Registry.ConsumeShouldReplan(id)
		if err != nil || !replan {
			return false, err
		}

		replans++
		metrics.IncReplan(id)
		logger.Info().
			Str(xglog.FieldEvent, "motion.replan").
			Str(xglog.FieldPlanningComponent, id).
			Int(xglog.FieldAttempt, replans).
			Msg("scene changed, replanning")

		if err := e.stopAndAllow(ctx, cfg, id); err != nil {
			return false, err
		}
		if recompute != nil {
			next, err := recompute(ctx)
			if err != nil {
				return false, err
			}
			if err := next.Validate(); err != nil {
				return false, err
			}
			g = next
		}
		return false, send(g)
	})
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			return fmt.Errorf("%w: %s not reached within %s", ErrMotion, id, cfg.GoalTimeout)
		}
		return cause(ctx, err)
	}
	logger.Info().
		Str(xglog.FieldEvent, "motion.goal_reached").
		Str(xglog.FieldPlanningComponent, id).
		Int("replans", replans).
		Dur("duration", time.Since(start)).
		Msg("motion goal reached")
	return nil
}

// StopMotion sends the stop signal to id, fanning out to the members of a
// combined component, and clears its in-motion flag.
func (e *Engine) StopMotion(ctx context.Context, id string) error {
	if err := e.signalStop(ctx, id); err != nil {
		return err
	}
	e.release(id)
	return nil
}

func (e *Engine) signalStop(ctx context.Context, id string) error {
	members, err := e.deps.Registry.Expand(id)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := e.deps.Signals.StopMotion(ctx, m); err != nil {
			return fmt.Errorf("motion: stop %s: %w", m, err)
		}
	}
	return nil
}

// AllowMotion lifts the stop signal for id and its members.
func (e *Engine) AllowMotion(ctx context.Context, id string) error {
	members, err := e.deps.Registry.Expand(id)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := e.deps.Signals.AllowMotion(ctx, m); err != nil {
			return fmt.Errorf("motion: allow %s: %w", m, err)
		}
	}
	return nil
}

// Cancel aborts any goal in flight for id and runs the stop path: stop,
// settle, allow. The in-motion flag is always cleared.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	if _, err := e.deps.Registry.Get(id); err != nil {
		return err
	}
	e.mu.Lock()
	inFlight := e.inflight[id] != nil
	e.mu.Unlock()
	e.logger.Info().
		Str(xglog.FieldEvent, "motion.cancel").
		Str(xglog.FieldPlanningComponent, id).
		Bool("in_flight", inFlight).
		Msg("cancelling motion")

	if err := e.StopMotion(ctx, id); err != nil {
		return err
	}
	if err := poll.Sleep(ctx, e.Config().StopSettle); err != nil {
		return err
	}
	return e.AllowMotion(ctx, id)
}

// stopAndAllow interrupts the running trajectory of id without giving up the claim.
func (e *Engine) stopAndAllow(ctx context.Context, cfg Config, id string) error {
	if err := e.signalStop(ctx, id); err != nil {
		return err
	}
	if err := poll.Sleep(ctx, cfg.StopSettle); err != nil {
		return err
	}
	return e.AllowMotion(ctx, id)
}

// release drops the in-flight claim for id.
func (e *Engine) release(id string) {
	e.mu.Lock()
	f := e.inflight[id]
	delete(e.inflight, id)
	e.mu.Unlock()
	if f != nil {
		f.cancel(ErrCancelled)
	}
	_ = e.deps.Registry.SetInMotion(id, false)
	metrics.SetInMotion(id, false)
}
