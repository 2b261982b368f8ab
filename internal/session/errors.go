// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session error taxonomy. Every *Error matches
// exactly one of them via errors.Is.
var (
	ErrConnection   = errors.New("controller connection failed")
	ErrPrecondition = errors.New("controller precondition not met")
	ErrMode         = errors.New("controller mode transition failed")
	ErrActuation    = errors.New("controller actuation not verified")
	ErrStart        = errors.New("controller program start failed")

	// ErrUndefinedState is wrapped when a task stays undefined after recovery.
	ErrUndefinedState = errors.New("task reported undefined execution state")
)

// Kind classifies a session failure.
type Kind string

const (
	KindConnection   Kind = "connection"
	KindPrecondition Kind = "precondition"
	KindMode         Kind = "mode"
	KindActuation    Kind = "actuation"
	KindStart        Kind = "start"
)

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindPrecondition:
		return ErrPrecondition
	case KindMode:
		return ErrMode
	case KindActuation:
		return ErrActuation
	default:
		return ErrStart
	}
}

// Error carries the failing driver operation and its cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session %s: %v", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("session %s: %v: %v", e.Op, e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}
