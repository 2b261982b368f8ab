// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldGoalID    = "goal_id"
	FieldTaskID    = "task_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Cell fields
	FieldPlanningComponent = "planning_component"
	FieldObjectID          = "object_id"
	FieldStrategy          = "strategy"
	FieldRetriesLeft       = "retries_left"
	FieldAttempt           = "attempt"
	FieldTask              = "task"
	FieldSide              = "side"
	FieldPercentage        = "percentage"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldMode     = "mode"
)
