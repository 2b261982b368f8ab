// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package controller defines the command/response contract of the robot
// controller and ships a rate-limited decorator plus an in-memory simulator.
package controller

import (
	"context"
	"fmt"
)

// TaskState is the execution sub-state reported for one motion task.
type TaskState int

const (
	TaskIdle TaskState = iota
	TaskInitializing
	// TaskRunning means the task is streaming externally supplied motion.
	TaskRunning
	// TaskUndefined is a known anomaly on first streaming start after boot.
	TaskUndefined
)

func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "idle"
	case TaskInitializing:
		return "initializing"
	case TaskRunning:
		return "running"
	case TaskUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("task_state(%d)", int(s))
	}
}

// Signal names a digital signal understood by the controller program.
type Signal string

const (
	SignalStreamStart Signal = "egm_start"
	SignalStreamStop  Signal = "egm_stop"
)

// Side addresses one of the two grippers.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Sides lists both grippers in a stable order.
var Sides = []Side{SideLeft, SideRight}

// Valid reports whether s names a known gripper.
func (s Side) Valid() bool { return s == SideLeft || s == SideRight }

// Channel is the request/response transport to the robot controller.
type Channel interface {
	IsConnected(ctx context.Context) (bool, error)
	IsAutoMode(ctx context.Context) (bool, error)
	IsProgramRunning(ctx context.Context) (bool, error)
	TaskState(ctx context.Context, task string) (TaskState, error)
	SendSignal(ctx context.Context, sig Signal) error
	StartProgram(ctx context.Context) error
	StopProgram(ctx context.Context) error
	ResetProgramPointer(ctx context.Context) error
	SetMotorsOn(ctx context.Context) error
	SetMotorsOff(ctx context.Context) error
	IsMotorOn(ctx context.Context) (bool, error)
}

// Gripper is the controller-side gripper command set.
type Gripper interface {
	GripIn(ctx context.Context, side Side) error
	GripOut(ctx context.Context, side Side) error
	// Calibrate calibrates both grippers at once.
	Calibrate(ctx context.Context) error
	SetHoldForce(ctx context.Context, side Side, force int) error
	IsClosed(ctx context.Context, side Side) (bool, error)
	IsOpen(ctx context.Context, side Side) (bool, error)
}

// Controller bundles the channel and the gripper command set.
type Controller interface {
	Channel
	Gripper
}
