// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "github.com/ManuGH/armcell/internal/fsm"

// Phase is the driver's view of the controller handshake.
type Phase string

const (
	PhaseDisconnected     Phase = "disconnected"
	PhaseConnected        Phase = "connected"
	PhaseAutoModeVerified Phase = "auto_mode_verified"
	PhaseInitializing     Phase = "initializing"
	PhaseIdle             Phase = "idle"
	PhaseStreaming        Phase = "streaming"
	PhaseUndefined        Phase = "undefined"
)

// Event drives phase transitions.
type Event string

const (
	EventConnect         Event = "connect"
	EventVerifyAutoMode  Event = "verify_auto_mode"
	EventEnsureIdle      Event = "ensure_idle"
	EventStart           Event = "start"
	EventProgramReady    Event = "program_ready"
	EventRequestStream   Event = "request_stream"
	EventStreamConfirmed Event = "stream_confirmed"
	EventStreamFailed    Event = "stream_failed"
	EventAnomaly         Event = "anomaly"
	EventStopStream      Event = "stop_stream"
	EventConnectionLost  Event = "connection_lost"
)

// Mode is the controller execution mode exposed in snapshots.
type Mode string

const (
	ModeIdle         Mode = "idle"
	ModeInitializing Mode = "initializing"
	ModeStreaming    Mode = "streaming"
	ModeUndefined    Mode = "undefined"
)

func (p Phase) mode() Mode {
	switch p {
	case PhaseInitializing:
		return ModeInitializing
	case PhaseStreaming:
		return ModeStreaming
	case PhaseUndefined:
		return ModeUndefined
	default:
		return ModeIdle
	}
}

// transitions is the phase table. Streaming is only requested from Idle and
// Undefined is only entered from Initializing; start and stream requests both
// pass through Initializing while the controller tasks settle.
func transitions() []fsm.Transition[Phase, Event] {
	t := []fsm.Transition[Phase, Event]{
		{From: PhaseDisconnected, Event: EventConnect, To: PhaseConnected},
		{From: PhaseConnected, Event: EventVerifyAutoMode, To: PhaseAutoModeVerified},

		{From: PhaseIdle, Event: EventRequestStream, To: PhaseInitializing},
		{From: PhaseInitializing, Event: EventStreamConfirmed, To: PhaseStreaming},
		{From: PhaseInitializing, Event: EventStreamFailed, To: PhaseIdle},
		{From: PhaseInitializing, Event: EventAnomaly, To: PhaseUndefined},
		{From: PhaseInitializing, Event: EventProgramReady, To: PhaseIdle},
		{From: PhaseStreaming, Event: EventStopStream, To: PhaseIdle},
	}
	for _, from := range []Phase{PhaseAutoModeVerified, PhaseInitializing, PhaseIdle, PhaseStreaming, PhaseUndefined} {
		t = append(t, fsm.Transition[Phase, Event]{From: from, Event: EventEnsureIdle, To: PhaseIdle})
	}
	for _, from := range []Phase{PhaseAutoModeVerified, PhaseIdle, PhaseInitializing, PhaseUndefined} {
		t = append(t, fsm.Transition[Phase, Event]{From: from, Event: EventStart, To: PhaseInitializing})
	}
	return t
}
