// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the cell.
const (
	// Session attributes
	SessionPhaseKey = "session.phase"
	SessionEventKey = "session.event"
	SessionTaskKey  = "session.task"

	// Motion attributes
	MotionComponentKey = "motion.component"
	MotionKindKey      = "motion.kind"
	MotionRetriesKey   = "motion.retries"
	MotionStrategyKey  = "motion.strategy"
	MotionObjectKey    = "motion.object"
	MotionReplanKey    = "motion.replan"

	// Gripper attributes
	GripperSideKey       = "gripper.side"
	GripperPercentageKey = "gripper.percentage"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes creates session transition span attributes.
func SessionAttributes(phase, event string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionPhaseKey, phase),
		attribute.String(SessionEventKey, event),
	}
}

// MotionAttributes creates motion-goal span attributes.
func MotionAttributes(component, kind string, retries int, replan bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MotionComponentKey, component),
		attribute.String(MotionKindKey, kind),
		attribute.Int(MotionRetriesKey, retries),
		attribute.Bool(MotionReplanKey, replan),
	}
}

// ObjectAttributes creates attributes for object-relative motions.
func ObjectAttributes(component, objectID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(MotionComponentKey, component)}
	if objectID != "" {
		attrs = append(attrs, attribute.String(MotionObjectKey, objectID))
	}
	return attrs
}

// GripperAttributes creates gripper action span attributes.
func GripperAttributes(side string, percentage int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(GripperSideKey, side),
		attribute.Int(GripperPercentageKey, percentage),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
