// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

type fakeSession struct{ ready, streaming bool }

func (f fakeSession) IsReady() bool   { return f.ready }
func (f fakeSession) Streaming() bool { return f.streaming }

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1.0.0")
	assert.True(t, m.Ready(context.Background()).Ready)

	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(NewSessionChecker(fakeSession{}))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Ready)
	assert.Equal(t, "controller not configured", body.Checks["controller_session"].Message)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionChecker(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusUnhealthy, NewSessionChecker(fakeSession{}).Check(ctx).Status)
	assert.Equal(t, StatusDegraded, NewSessionChecker(fakeSession{ready: true}).Check(ctx).Status)
	assert.Equal(t, StatusHealthy, NewSessionChecker(fakeSession{ready: true, streaming: true}).Check(ctx).Status)
}

func TestFlagChecker(t *testing.T) {
	var flag atomic.Bool
	c := NewFlagChecker("must_stop", func() bool { return !flag.Load() }, StatusDegraded, "clear", "raised")
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
	flag.Store(true)
	r := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, "raised", r.Message)
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("redis", func(context.Context) error { return nil }, 0, StatusDegraded)
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	slow := NewPingChecker("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond, StatusDegraded)
	r := slow.Check(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Contains(t, r.Error, "deadline")

	bad := NewPingChecker("redis", func(context.Context) error { return errors.New("refused") }, 0, StatusUnhealthy)
	assert.Equal(t, StatusUnhealthy, bad.Check(context.Background()).Status)
}

func TestPerformStartupChecks(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, PerformStartupChecks(ctx, StartupConfig{Mode: "virtual", ListenAddrs: map[string]string{"api": "127.0.0.1:0"}}))

	require.Error(t, PerformStartupChecks(ctx, StartupConfig{Mode: "hardware"}))
	require.NoError(t, PerformStartupChecks(ctx, StartupConfig{Mode: "hardware", HaveBackends: true}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	err = PerformStartupChecks(ctx, StartupConfig{Mode: "virtual", ListenAddrs: map[string]string{"api": ln.Addr().String()}})
	require.Error(t, err)
}
