// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package motion

import (
	"context"
	"errors"
	"fmt"
	"math"

	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/poll"
	"github.com/ManuGH/armcell/internal/registry"
	"github.com/ManuGH/armcell/internal/scene"
	"github.com/ManuGH/armcell/internal/telemetry"
)

// GraspPose returns the tool pose that approaches obj from above: the object
// frame flipped about its x axis and lifted by half the object height, the
// gripper length and hover.
func GraspPose(obj scene.Object, gripperLength, hover float64) planning.Pose {
	p := obj.Pose
	p.Orientation = p.Orientation.Rotate(planning.AxisX, math.Pi)
	p.Position.Z += obj.Dimensions.Z/2 + gripperLength + hover
	return p
}

// GraspPoses are the poses of a pick.
type GraspPoses struct {
	Hover   planning.Pose `json:"hover"`
	Disable planning.Pose `json:"disable"`
	Grip    planning.Pose `json:"grip"`
}

// GraspPoses computes the pick poses for objectID.
func (e *Engine) GraspPoses(objectID string) (GraspPoses, error) {
	obj, ok := e.find(objectID)
	if !ok {
		return GraspPoses{}, fmt.Errorf("%w: %s", ErrObjectNotFound, objectID)
	}
	cfg := e.Config()
	return GraspPoses{
		Hover:   GraspPose(obj, cfg.GripperLength, cfg.PickHover),
		Disable: GraspPose(obj, cfg.GripperLength, cfg.PickDisable),
		Grip:    GraspPose(obj, cfg.GripperLength, 0),
	}, nil
}

func (e *Engine) find(objectID string) (scene.Object, bool) {
	if e.deps.Scene == nil {
		return scene.Object{}, false
	}
	return e.deps.Scene.Find(objectID)
}

// MoveHome drives id to its configured home joint state.
func (e *Engine) MoveHome(ctx context.Context, id string, replan bool) error {
	comp, err := e.deps.Registry.Get(id)
	if err != nil {
		return err
	}
	if len(comp.Home) == 0 {
		return fmt.Errorf("%w: %s has no home state", ErrInvalidGoal, id)
	}
	g := JointGoal(comp.Home, e.Config().HomeRetries)
	if replan {
		return e.MoveToGoalReplanning(ctx, id, g, nil)
	}
	return e.MoveToGoal(ctx, id, g)
}

// abandon stops id and sends it home after its target object vanished.
func (e *Engine) abandon(ctx context.Context, id, objectID string) error {
	e.logger.Warn().
		Str(xglog.FieldEvent, "motion.object_missing").
		Str(xglog.FieldPlanningComponent, id).
		Str(xglog.FieldObjectID, objectID).
		Msg("target object not in scene, returning home")

	notFound := fmt.Errorf("%w: %s", ErrObjectNotFound, objectID)
	var err error
	if holdsClaim(ctx, id) {
		err = e.stopAndAllow(ctx, e.Config(), id)
	} else {
		err = e.Cancel(ctx, id)
	}
	if err != nil {
		return errors.Join(notFound, err)
	}
	if err := e.MoveHome(ctx, id, false); err != nil {
		return errors.Join(notFound, fmt.Errorf("motion: return home: %w", err))
	}
	return notFound
}

// MoveToObject moves id above objectID with the given hover margin. In
// replanning mode the target follows the object as the scene changes.
func (e *Engine) MoveToObject(ctx context.Context, id, objectID string, hover float64, retries int, replan bool) (err error) {
	ctx, span := e.span(ctx, "move_to_object", telemetry.ObjectAttributes(id, objectID)...)
	defer func() { endSpan(span, err) }()

	if _, err := e.deps.Registry.Get(id); err != nil {
		return err
	}
	obj, ok := e.find(objectID)
	if !ok {
		return e.abandon(ctx, id, objectID)
	}
	cfg := e.Config()
	g := PoseGoal(GraspPose(obj, cfg.GripperLength, hover), retries)
	if !replan {
		return e.MoveToGoal(ctx, id, g)
	}

	err = e.MoveToGoalReplanning(ctx, id, g, func(context.Context) (Goal, error) {
		obj, ok := e.find(objectID)
		if !ok {
			return Goal{}, fmt.Errorf("%w: %s", ErrObjectNotFound, objectID)
		}
		return PoseGoal(GraspPose(obj, e.Config().GripperLength, hover), retries), nil
	})
	if errors.Is(err, ErrObjectNotFound) {
		return e.abandon(ctx, id, objectID)
	}
	return err
}

// LinearMoveToObject moves id above objectID along a Cartesian path.
func (e *Engine) LinearMoveToObject(ctx context.Context, id, objectID string, hover float64, opts LinearOptions) (out Outcome, err error) {
	ctx, span := e.span(ctx, "linear_move_to_object", telemetry.ObjectAttributes(id, objectID)...)
	defer func() { endSpan(span, err) }()

	if _, err := e.deps.Registry.Get(id); err != nil {
		return out, err
	}
	obj, ok := e.find(objectID)
	if !ok {
		return out, e.abandon(ctx, id, objectID)
	}
	return e.LinearMove(ctx, id, GraspPose(obj, e.Config().GripperLength, hover), opts)
}

// GripIn closes the gripper of id. With blocking set it waits for the closed sensor.
func (e *Engine) GripIn(ctx context.Context, id string, blocking bool) error {
	return e.grip(ctx, id, true, blocking)
}

// GripOut opens the gripper of id. With blocking set it waits for the open sensor.
func (e *Engine) GripOut(ctx context.Context, id string, blocking bool) error {
	return e.grip(ctx, id, false, blocking)
}

func (e *Engine) gripperOf(id string) (registry.Component, error) {
	comp, err := e.deps.Registry.Get(id)
	if err != nil {
		return comp, err
	}
	if comp.GripperSide == "" || e.deps.Gripper == nil {
		return comp, fmt.Errorf("%w: %s", ErrNoGripper, id)
	}
	return comp, nil
}

func (e *Engine) grip(ctx context.Context, id string, closed, blocking bool) error {
	comp, err := e.gripperOf(id)
	if err != nil {
		return err
	}
	side := comp.GripperSide
	if closed {
		err = e.deps.Gripper.GripIn(ctx, side)
	} else {
		err = e.deps.Gripper.GripOut(ctx, side)
	}
	if err != nil {
		return fmt.Errorf("motion: actuate %s gripper: %w", side, err)
	}
	if !blocking {
		return nil
	}

	cfg := e.Config()
	err = poll.Until(ctx, poll.Options{Interval: cfg.GripPollInterval, Timeout: cfg.GripTimeout}, func(ctx context.Context) (bool, error) {
		if closed {
			return e.deps.Gripper.IsClosed(ctx, side)
		}
		return e.deps.Gripper.IsOpen(ctx, side)
	})
	if errors.Is(err, poll.ErrTimeout) {
		want := "open"
		if closed {
			want = "closed"
		}
		return fmt.Errorf("%w: %s gripper did not report %s", ErrGripNotVerified, side, want)
	}
	return err
}

// PickObject grasps objectID with id: approach the hover pose, open, descend
// in a straight line, close, retract and verify the grip. The component stays
// claimed from approach to verification.
func (e *Engine) PickObject(ctx context.Context, id, objectID string) (err error) {
	ctx, logger := e.goalContext(ctx)
	ctx, span := e.span(ctx, "pick", telemetry.ObjectAttributes(id, objectID)...)
	defer func() { endSpan(span, err) }()

	comp, err := e.gripperOf(id)
	if err != nil {
		return err
	}
	poses, err := e.GraspPoses(objectID)
	if err != nil {
		return err
	}
	ctx, _, end, err := e.begin(ctx, id)
	if err != nil {
		return err
	}
	defer end()
	cfg := e.Config()

	if err := e.MoveToGoal(ctx, id, PoseGoal(poses.Hover, cfg.PickRetries)); err != nil {
		return fmt.Errorf("pick %s: approach: %w", objectID, err)
	}
	if err := e.GripOut(ctx, id, true); err != nil {
		return fmt.Errorf("pick %s: open: %w", objectID, err)
	}
	if _, err := e.LinearMove(ctx, id, poses.Grip, LinearOptions{Retries: cfg.PickRetries}); err != nil {
		return fmt.Errorf("pick %s: descend: %w", objectID, err)
	}
	if err := e.GripIn(ctx, id, true); err != nil {
		return fmt.Errorf("pick %s: close: %w", objectID, err)
	}
	if err := poll.Sleep(ctx, cfg.GripSettle); err != nil {
		return err
	}
	if _, err := e.LinearMove(ctx, id, poses.Hover, LinearOptions{PathFraction: cfg.PathFraction}); err != nil {
		return fmt.Errorf("pick %s: retract: %w", objectID, err)
	}

	holding, err := e.deps.Gripper.IsClosed(ctx, comp.GripperSide)
	if err != nil {
		return fmt.Errorf("pick %s: read gripper: %w", objectID, err)
	}
	if !holding {
		return fmt.Errorf("pick %s: %w", objectID, ErrGripNotVerified)
	}
	logger.Info().
		Str(xglog.FieldEvent, "motion.picked").
		Str(xglog.FieldPlanningComponent, id).
		Str(xglog.FieldObjectID, objectID).
		Msg("object picked")
	return nil
}

// PlaceObject sets the held object down on objectID: approach with collision
// checking, lower without it, release, retreat and close the empty gripper.
// Each leg gets up to PlaceAttempts Cartesian attempts. The component stays
// claimed for the whole workflow.
func (e *Engine) PlaceObject(ctx context.Context, id, objectID string) (err error) {
	ctx, logger := e.goalContext(ctx)
	ctx, span := e.span(ctx, "place", telemetry.ObjectAttributes(id, objectID)...)
	defer func() { endSpan(span, err) }()

	comp, err := e.gripperOf(id)
	if err != nil {
		return err
	}
	ctx, _, end, err := e.begin(ctx, id)
	if err != nil {
		return err
	}
	defer end()
	cfg := e.Config()

	leg := func(name string, hover float64, collision bool) error {
		var last error
		for attempt := 1; attempt <= cfg.PlaceAttempts; attempt++ {
			_, err := e.LinearMoveToObject(ctx, id, objectID, hover, LinearOptions{
				CollisionChecking: collision,
				PathFraction:      cfg.PathFraction,
			})
			if err == nil {
				return nil
			}
			if !errors.Is(err, ErrMotion) {
				return fmt.Errorf("place %s: %s: %w", objectID, name, err)
			}
			last = err
			logger.Debug().
				Str(xglog.FieldEvent, "motion.place_retry").
				Str(xglog.FieldPlanningComponent, id).
				Str("leg", name).
				Int(xglog.FieldAttempt, attempt).
				Err(err).
				Msg("place leg attempt failed")
		}
		return fmt.Errorf("place %s: %s: %w", objectID, name, last)
	}

	if err := leg("approach", cfg.PlaceHover, true); err != nil {
		return err
	}
	if err := leg("lower", cfg.PlaceDown, false); err != nil {
		return err
	}
	if err := e.GripOut(ctx, id, true); err != nil {
		return fmt.Errorf("place %s: release: %w", objectID, err)
	}
	if err := poll.Sleep(ctx, cfg.GripSettle); err != nil {
		return err
	}
	released, err := e.deps.Gripper.IsOpen(ctx, comp.GripperSide)
	if err != nil {
		return fmt.Errorf("place %s: read gripper: %w", objectID, err)
	}
	if err := leg("retreat", cfg.PlaceHover, true); err != nil {
		return err
	}
	if err := e.GripIn(ctx, id, true); err != nil {
		return fmt.Errorf("place %s: close: %w", objectID, err)
	}
	if !released {
		return fmt.Errorf("place %s: %w", objectID, ErrGripNotVerified)
	}
	logger.Info().
		Str(xglog.FieldEvent, "motion.placed").
		Str(xglog.FieldPlanningComponent, id).
		Str(xglog.FieldObjectID, objectID).
		Msg("object placed")
	return nil
}
