// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package motion

import (
	"context"
	"fmt"
	"math"
	"time"

	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/metrics"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/poll"
	"github.com/ManuGH/armcell/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LinearMove plans a Cartesian path to target. When the direct attempt fails
// it walks the retry ladder: every attempt costs one retry and first tries to
// reconfigure the arm into an equivalent joint state, falling back to a
// perturb-and-return manoeuvre. An exhausted ladder raises the must-stop flag.
func (e *Engine) LinearMove(ctx context.Context, id string, target planning.Pose, opts LinearOptions) (out Outcome, err error) {
	ctx, logger := e.goalContext(ctx)
	ctx, span := e.span(ctx, "linear_move", telemetry.MotionAttributes(id, "linear", opts.Retries, false)...)
	start := time.Now()
	defer func() {
		metrics.RecordMotionGoal(id, "linear", outcomeOf(err), time.Since(start))
		endSpan(span, err)
	}()

	ctx, _, end, err := e.begin(ctx, id)
	if err != nil {
		return out, err
	}
	defer end()
	if opts.Retries < 0 {
		return out, fmt.Errorf("%w: negative retry budget", ErrInvalidGoal)
	}
	cfg := e.Config()

	origin, err := e.deps.Planner.CurrentPose(ctx, id)
	if err != nil {
		return out, cause(ctx, fmt.Errorf("motion: read pose %s: %w", id, err))
	}

	linear := func() (bool, error) {
		return e.deps.Planner.LinearMoveToPose(ctx, id, target, e.linearOptions(cfg, opts))
	}

	success, err := linear()
	if err != nil {
		return out, cause(ctx, err)
	}
	retriesLeft := opts.Retries
	out.Attempts = append(out.Attempts, RetryAttempt{Strategy: StrategyDirect, Success: success, RetriesLeft: retriesLeft})
	e.recordAttempt(ctx, id, StrategyDirect, success)

	for !success && retriesLeft > 0 {
		retriesLeft--
		if err := poll.Sleep(ctx, cfg.AttemptDelay); err != nil {
			return out, cause(ctx, err)
		}

		strategy, ok, err := e.ladderStep(ctx, cfg, id, origin)
		if err != nil {
			return out, cause(ctx, err)
		}
		if ok {
			if success, err = linear(); err != nil {
				return out, cause(ctx, err)
			}
		}
		out.Attempts = append(out.Attempts, RetryAttempt{Strategy: strategy, Success: success, RetriesLeft: retriesLeft})
		e.recordAttempt(ctx, id, strategy, success)
		logger.Info().
			Str(xglog.FieldEvent, "motion.ladder_attempt").
			Str(xglog.FieldPlanningComponent, id).
			Str(xglog.FieldStrategy, string(strategy)).
			Int(xglog.FieldRetriesLeft, retriesLeft).
			Bool("success", success).
			Msg("retry ladder attempt")

		if !success && retriesLeft == 0 {
			e.setMustStop()
			logger.Error().
				Str(xglog.FieldEvent, "motion.must_stop").
				Str(xglog.FieldPlanningComponent, id).
				Int(xglog.FieldAttempt, len(out.Attempts)).
				Msg("retry budget exhausted, must stop")
			return out, fmt.Errorf("%w: %w: %s after %d attempts", ErrMotion, ErrRetryBudgetExhausted, id, len(out.Attempts))
		}
	}
	if !success {
		return out, fmt.Errorf("%w: Cartesian path to target failed for %s", ErrMotion, id)
	}

	reached, err := e.deps.Planner.PoseReached(ctx, id, target)
	if err != nil {
		return out, cause(ctx, err)
	}
	if !reached {
		if err := poll.Sleep(ctx, cfg.ReachRecheckDelay); err != nil {
			return out, cause(ctx, err)
		}
		if reached, err = e.deps.Planner.PoseReached(ctx, id, target); err != nil {
			return out, cause(ctx, err)
		}
	}
	if !reached {
		return out, fmt.Errorf("%w: %s stopped short of the Cartesian target", ErrMotion, id)
	}
	return out, nil
}

func (e *Engine) linearOptions(cfg Config, opts LinearOptions) planning.Options {
	po := planning.Options{
		CollisionChecking: opts.CollisionChecking,
		PathFraction:      opts.PathFraction,
		SpeedScale:        opts.SpeedScale,
		AccelScale:        opts.AccelScale,
	}
	if po.SpeedScale <= 0 {
		po.SpeedScale = cfg.SpeedScale
	}
	if po.AccelScale <= 0 {
		po.AccelScale = cfg.AccelScale
	}
	return po
}

func (e *Engine) recordAttempt(ctx context.Context, id string, s Strategy, success bool) {
	metrics.RecordLadderAttempt(id, string(s), success)
	e.ladderAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String(telemetry.MotionComponentKey, id),
		attribute.String(telemetry.MotionStrategyKey, string(s)),
		attribute.Bool("success", success),
	))
}

// ladderStep reconfigures the arm for another Cartesian attempt. ok reports
// whether the arm ended in a configuration worth retrying from.
func (e *Engine) ladderStep(ctx context.Context, cfg Config, id string, origin planning.Pose) (Strategy, bool, error) {
	ladder := cfg.Ladder

	state, found, err := e.equivalentState(ctx, ladder, id, origin)
	if err != nil {
		return StrategyEquivalentState, false, err
	}
	current, err := e.deps.Planner.CurrentState(ctx, id)
	if err != nil {
		return StrategyEquivalentState, false, err
	}
	if found && state.L1(current) > ladder.CurrentDistance {
		moved, err := e.deps.Planner.MoveToState(ctx, id, state, planning.Options{
			Retries:    ladder.EquivalentRetries,
			SpeedScale: cfg.SpeedScale,
			AccelScale: cfg.AccelScale,
		})
		if err != nil {
			return StrategyEquivalentState, false, err
		}
		if moved {
			if err := poll.Sleep(ctx, cfg.StrategyDelay); err != nil {
				return StrategyEquivalentState, false, err
			}
			return StrategyEquivalentState, true, nil
		}
	}

	if err := poll.Sleep(ctx, cfg.StrategyDelay); err != nil {
		return StrategyPerturbAndReturn, false, err
	}
	ok, err := e.perturbAndReturn(ctx, cfg, id, origin)
	return StrategyPerturbAndReturn, ok, err
}

// perturbAndReturn moves through two random poses near origin and back.
// Only the return move decides the outcome.
func (e *Engine) perturbAndReturn(ctx context.Context, cfg Config, id string, origin planning.Pose) (bool, error) {
	ladder := cfg.Ladder
	opts := planning.Options{Retries: ladder.PerturbRetries, SpeedScale: cfg.SpeedScale, AccelScale: cfg.AccelScale}

	first := e.nearbyPose(origin, ladder.LateralShift, ladder.FirstAngleMin, ladder.FirstAngleMax)
	if _, err := e.deps.Planner.MoveToPose(ctx, id, first, opts); err != nil {
		return false, err
	}
	second := e.nearbyPose(origin, ladder.LateralShift, ladder.SecondAngleMin, ladder.SecondAngleMax)
	if _, err := e.deps.Planner.MoveToPose(ctx, id, second, opts); err != nil {
		return false, err
	}
	return e.deps.Planner.MoveToPose(ctx, id, origin, opts)
}

// nearbyPose shifts origin by shift along x or y with a random sign and
// orients the tool by a random rotation about z or y of [lo, hi] degrees,
// flipped to point down.
func (e *Engine) nearbyPose(origin planning.Pose, shift float64, lo, hi int) planning.Pose {
	p := origin
	offset := shift
	if e.randIntN(2) == 0 {
		offset = -offset
	}
	if e.randIntN(2) == 0 {
		p.Position.X += offset
	} else {
		p.Position.Y += offset
	}

	axis := planning.AxisZ
	if e.randIntN(2) == 1 {
		axis = planning.AxisY
	}
	angle := float64(e.randRange(lo, hi)) * math.Pi / 180
	p.Orientation = planning.Identity.Rotate(axis, angle).Rotate(planning.AxisX, math.Pi)
	return p
}

// equivalentState searches for a joint configuration reaching pose that is
// clearly distinct from the seed it was solved from.
func (e *Engine) equivalentState(ctx context.Context, ladder LadderConfig, id string, pose planning.Pose) (planning.JointState, bool, error) {
	current, err := e.deps.Planner.CurrentState(ctx, id)
	if err != nil {
		return nil, false, err
	}

	for _, seed := range e.seeds(ladder, current) {
		sol, ok, err := e.deps.Planner.InverseKinematics(ctx, id, pose, seed)
		if err != nil {
			return nil, false, err
		}
		if ok && sol.AnyNonZero() && sol.L1(seed) > ladder.SeedDistance {
			return sol, true, nil
		}
	}
	return nil, false, nil
}

// seeds returns the configured seeds with a jittered copy of current inserted
// at RandomSeedIndex and current itself appended.
func (e *Engine) seeds(ladder LadderConfig, current planning.JointState) []planning.JointState {
	jittered := current.Clone()
	for i := range jittered {
		d := float64(e.randRange(ladder.JitterMin, ladder.JitterMax))
		if e.randIntN(2) == 0 {
			d = -d
		}
		jittered[i] += d
	}

	idx := min(max(ladder.RandomSeedIndex, 0), len(ladder.Seeds))
	out := make([]planning.JointState, 0, len(ladder.Seeds)+2)
	out = append(out, ladder.Seeds[:idx]...)
	out = append(out, jittered)
	out = append(out, ladder.Seeds[idx:]...)
	return append(out, current.Clone())
}
