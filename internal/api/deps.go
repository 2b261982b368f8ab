// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/gripper"
	"github.com/ManuGH/armcell/internal/health"
	"github.com/ManuGH/armcell/internal/motion"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/registry"
	"github.com/ManuGH/armcell/internal/scene"
	"github.com/ManuGH/armcell/internal/session"
)

// Session is the operator surface of the session driver.
type Session interface {
	IsReady() bool
	Streaming() bool
	Snapshot() session.ControllerSession
	EnterStreamingMode(ctx context.Context) error
	StopStreaming(ctx context.Context) error
	RequestMotorsOff(ctx context.Context) error
}

// Motion is the operator surface of the motion engine.
type Motion interface {
	MoveToGoal(ctx context.Context, id string, g motion.Goal) error
	MoveToGoalReplanning(ctx context.Context, id string, g motion.Goal, recompute motion.Recompute) error
	LinearMove(ctx context.Context, id string, target planning.Pose, opts motion.LinearOptions) (motion.Outcome, error)
	MoveHome(ctx context.Context, id string, replan bool) error
	MoveToObject(ctx context.Context, id, objectID string, hover float64, retries int, replan bool) error
	LinearMoveToObject(ctx context.Context, id, objectID string, hover float64, opts motion.LinearOptions) (motion.Outcome, error)
	PickObject(ctx context.Context, id, objectID string) error
	PlaceObject(ctx context.Context, id, objectID string) error
	GripIn(ctx context.Context, id string, blocking bool) error
	GripOut(ctx context.Context, id string, blocking bool) error
	Cancel(ctx context.Context, id string) error
	StopMotion(ctx context.Context, id string) error
	AllowMotion(ctx context.Context, id string) error
	GraspPoses(objectID string) (motion.GraspPoses, error)
	MustStop() bool
	ResetMustStop()
}

// Components exposes the component registry.
type Components interface {
	IDs() []string
	Status(id string) (registry.Status, error)
}

// GripperServer is one side's gripper action server.
type GripperServer interface {
	Submit(percentage int) (gripper.TaskInfo, error)
	Cancel(id string) error
	Get(id string) (gripper.TaskInfo, error)
	Subscribe(id string) (<-chan gripper.Feedback, error)
}

// Scene is the object store.
type Scene interface {
	Objects() []scene.Object
	Find(id string) (scene.Object, bool)
	Add(o scene.Object) error
	Remove(id string) error
	ShiftObject(id string, sideShift float64) (planning.Vec3, error)
}

// Deps are the collaborators the API drives.
type Deps struct {
	Session    Session
	Motion     Motion
	Components Components
	Grippers   map[controller.Side]GripperServer
	Scene      Scene
	Health     *health.Manager
}
