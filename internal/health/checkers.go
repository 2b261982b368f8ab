// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"time"
)

// ReadinessSource is satisfied by the session driver.
type ReadinessSource interface {
	IsReady() bool
	Streaming() bool
}

// SessionChecker reports the controller session. Not ready is unhealthy;
// ready but not streaming is degraded.
type SessionChecker struct {
	src ReadinessSource
}

// NewSessionChecker creates a checker for the controller session.
func NewSessionChecker(src ReadinessSource) *SessionChecker {
	return &SessionChecker{src: src}
}

func (c *SessionChecker) Name() string { return "controller_session" }

func (c *SessionChecker) Check(context.Context) CheckResult {
	switch {
	case !c.src.IsReady():
		return CheckResult{Status: StatusUnhealthy, Message: "controller not configured"}
	case !c.src.Streaming():
		return CheckResult{Status: StatusDegraded, Message: "controller ready, streaming mode off"}
	default:
		return CheckResult{Status: StatusHealthy, Message: "streaming"}
	}
}

// FlagChecker turns a boolean probe into a check result. A false probe
// yields failStatus.
type FlagChecker struct {
	name       string
	probe      func() bool
	failStatus Status
	okMsg      string
	failMsg    string
}

// NewFlagChecker creates a checker named name.
func NewFlagChecker(name string, probe func() bool, failStatus Status, okMsg, failMsg string) *FlagChecker {
	return &FlagChecker{name: name, probe: probe, failStatus: failStatus, okMsg: okMsg, failMsg: failMsg}
}

func (c *FlagChecker) Name() string { return c.name }

func (c *FlagChecker) Check(context.Context) CheckResult {
	if c.probe() {
		return CheckResult{Status: StatusHealthy, Message: c.okMsg}
	}
	return CheckResult{Status: c.failStatus, Message: c.failMsg}
}

// PingChecker runs an error-returning probe with a timeout, e.g. a redis ping.
type PingChecker struct {
	name       string
	ping       func(ctx context.Context) error
	timeout    time.Duration
	failStatus Status
}

// NewPingChecker creates a checker named name. timeout defaults to 2s.
func NewPingChecker(name string, ping func(ctx context.Context) error, timeout time.Duration, failStatus Status) *PingChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PingChecker{name: name, ping: ping, timeout: timeout, failStatus: failStatus}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: c.failStatus, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}
