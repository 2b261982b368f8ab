// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/gripper"
	"github.com/ManuGH/armcell/internal/motion"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/registry"
	"github.com/ManuGH/armcell/internal/scene"
	"github.com/ManuGH/armcell/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// keep-alive connections of the feedback stream client wind down asynchronously
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeSession struct {
	ready     atomic.Bool
	streaming atomic.Bool
	failStart error
	motorsOff atomic.Int32
}

func (f *fakeSession) IsReady() bool   { return f.ready.Load() }
func (f *fakeSession) Streaming() bool { return f.streaming.Load() }

func (f *fakeSession) Snapshot() session.ControllerSession {
	return session.ControllerSession{Ready: f.ready.Load()}
}

func (f *fakeSession) EnterStreamingMode(context.Context) error {
	if f.failStart != nil {
		return f.failStart
	}
	f.streaming.Store(true)
	return nil
}

func (f *fakeSession) StopStreaming(context.Context) error {
	f.streaming.Store(false)
	return nil
}

func (f *fakeSession) RequestMotorsOff(context.Context) error {
	f.motorsOff.Add(1)
	return nil
}

type testCell struct {
	handler http.Handler
	session *fakeSession
	engine  *motion.Engine
	scene   *scene.Scene
	planner *planning.Sim
}

func newTestCell(t *testing.T, cfg Config) *testCell {
	t.Helper()
	reg, err := registry.New([]registry.Component{
		{ID: "left_arm", Home: planning.JointState{0, -2.2, 2.3, 0.5, 0, 0.7, 0}, GripperSide: controller.SideLeft},
		{ID: "right_arm", Home: planning.JointState{0, -2.2, -2.3, 0.5, 0, 0.7, 0}, GripperSide: controller.SideRight},
		{ID: "both_arms", Members: []string{"left_arm", "right_arm"}},
	})
	require.NoError(t, err)

	start := planning.Pose{Position: planning.Vec3{X: 0.4, Z: 0.3}, Orientation: planning.Identity}
	planner := planning.NewSim(map[string]planning.SimComponent{
		"left_arm":  {State: make(planning.JointState, 7), Pose: start},
		"right_arm": {State: make(planning.JointState, 7), Pose: start},
	})
	planner.MotionDuration = 5 * time.Millisecond

	ctrl := controller.NewSim(controller.SimConfig{AutoMode: true, ProgramRunning: true})
	sc := scene.New(reg)
	sess := &fakeSession{}
	sess.ready.Store(true)
	sess.streaming.Store(true)

	mcfg := motion.DefaultConfig()
	mcfg.StopSettle, mcfg.AttemptDelay, mcfg.StrategyDelay, mcfg.ReachRecheckDelay, mcfg.GripSettle = 0, 0, 0, 0, 0
	mcfg.ReplanPollInterval = 2 * time.Millisecond
	mcfg.GripPollInterval = time.Millisecond
	engine, err := motion.NewEngine(motion.Deps{
		Gate:     sess,
		Registry: reg,
		Planner:  planner,
		Signals:  planner,
		Scene:    sc,
		Gripper:  ctrl,
	}, mcfg, motion.WithRand(rand.New(rand.NewPCG(3, 4))))
	require.NoError(t, err)

	left := gripper.NewServer(controller.SideLeft, ctrl, gripper.Config{FeedbackInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = left.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv, err := New(cfg, Deps{
		Session:    sess,
		Motion:     engine,
		Components: reg,
		Grippers:   map[controller.Side]GripperServer{controller.SideLeft: left},
		Scene:      sc,
	})
	require.NoError(t, err)
	return &testCell{handler: srv.Handler(), session: sess, engine: engine, scene: sc, planner: planner}
}

func (c *testCell) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{})
	require.Error(t, err)
}

func TestServiceCalls(t *testing.T) {
	c := newTestCell(t, Config{})

	rec := c.do(t, http.MethodPost, "/api/v1/egm/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[successResponse](t, rec).Success)
	assert.False(t, c.session.Streaming())

	c.session.failStart = errors.New("controller refused")
	rec = c.do(t, http.MethodPost, "/api/v1/egm/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[successResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "controller refused", resp.Error)

	rec = c.do(t, http.MethodPost, "/api/v1/motors/stop", "")
	assert.True(t, decode[successResponse](t, rec).Success)
	assert.Equal(t, int32(1), c.session.motorsOff.Load())

	rec = c.do(t, http.MethodGet, "/api/v1/ready", "")
	assert.Equal(t, map[string]bool{"ready": true}, decode[map[string]bool](t, rec))
}

func TestComponents(t *testing.T) {
	c := newTestCell(t, Config{})

	rec := c.do(t, http.MethodGet, "/api/v1/components", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]componentView](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "left", list[0].Gripper)

	rec = c.do(t, http.MethodGet, "/api/v1/components/tail", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_component", decode[errorResponse](t, rec).Code)
}

func TestMoveToGoal(t *testing.T) {
	c := newTestCell(t, Config{})
	goal := `{"kind":"pose","pose":{"position":{"x":0.5,"y":0.1,"z":0.25},"orientation":{"w":1}},"retryBudget":1}`

	rec := c.do(t, http.MethodPost, "/api/v1/components/left_arm/goal", goal)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "reached", decode[motionResponse](t, rec).Outcome)

	rec = c.do(t, http.MethodPost, "/api/v1/components/tail/goal", goal)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(t, http.MethodPost, "/api/v1/components/left_arm/goal", `{"kind":"pose","retryBudget":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_goal", decode[errorResponse](t, rec).Code)

	rec = c.do(t, http.MethodPost, "/api/v1/components/left_arm/goal", `{"kind":"pose","warp":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c.session.streaming.Store(false)
	rec = c.do(t, http.MethodPost, "/api/v1/components/left_arm/goal", goal)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_ready", decode[errorResponse](t, rec).Code)
}

func TestLinearMove_ExhaustedLadder(t *testing.T) {
	c := newTestCell(t, Config{})
	c.planner.FailLinear("left_arm", 100)

	rec := c.do(t, http.MethodPost, "/api/v1/components/left_arm/linear",
		`{"pose":{"position":{"x":0.5,"y":0.1,"z":0.25},"orientation":{"w":1}},"retries":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "retry_budget_exhausted", decode[errorResponse](t, rec).Code)

	rec = c.do(t, http.MethodGet, "/api/v1/motion/must-stop", "")
	assert.Equal(t, map[string]bool{"mustStop": true}, decode[map[string]bool](t, rec))

	rec = c.do(t, http.MethodDelete, "/api/v1/motion/must-stop", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, c.engine.MustStop())
}

func TestHomeAndObjects(t *testing.T) {
	c := newTestCell(t, Config{})

	rec := c.do(t, http.MethodPost, "/api/v1/components/right_arm/home", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(t, http.MethodPost, "/api/v1/components/left_arm/object", `{"objectId":"cup","hover":0.2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "object_not_found", decode[errorResponse](t, rec).Code)

	rec = c.do(t, http.MethodPut, "/api/v1/scene/objects/cup",
		`{"pose":{"position":{"x":0.5,"y":0.1},"orientation":{"w":1}},"dimensions":{"x":0.08,"y":0.08,"z":0.1}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(t, http.MethodGet, "/api/v1/scene/objects/cup/grasp", "")
	require.Equal(t, http.StatusOK, rec.Code)
	poses := decode[motion.GraspPoses](t, rec)
	assert.InDelta(t, 0.2, poses.Hover.Position.Z-poses.Grip.Position.Z, 1e-9)

	rec = c.do(t, http.MethodPost, "/api/v1/components/left_arm/pick", `{"objectId":"cup"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(t, http.MethodPost, "/api/v1/components/both_arms/pick", `{"objectId":"cup"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_gripper", decode[errorResponse](t, rec).Code)

	rec = c.do(t, http.MethodPost, "/api/v1/components/left_arm/pick", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScene(t *testing.T) {
	c := newTestCell(t, Config{})

	rec := c.do(t, http.MethodPut, "/api/v1/scene/objects/box",
		`{"pose":{"position":{"x":0.3},"orientation":{"w":1}},"dimensions":{"x":0.1,"y":0.1,"z":0.1}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(t, http.MethodPost, "/api/v1/scene/objects/box/shift", `{"sideShift":0.05}`)
	require.Equal(t, http.StatusOK, rec.Code)
	pos := decode[map[string]planning.Vec3](t, rec)["position"]
	assert.InDelta(t, 0.05, abs(pos.Y), 1e-12)

	rec = c.do(t, http.MethodGet, "/api/v1/scene/objects", "")
	assert.Len(t, decode[[]scene.Object](t, rec), 1)

	rec = c.do(t, http.MethodDelete, "/api/v1/scene/objects/box", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(t, http.MethodDelete, "/api/v1/scene/objects/box", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestGripperGoals(t *testing.T) {
	c := newTestCell(t, Config{})

	rec := c.do(t, http.MethodPost, "/api/v1/grippers/left/goals", `{"gripPercentageClosed":50}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_percentage", decode[errorResponse](t, rec).Code)

	rec = c.do(t, http.MethodPost, "/api/v1/grippers/right/goals", `{"gripPercentageClosed":100}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(t, http.MethodPost, "/api/v1/grippers/left/goals", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(t, http.MethodPost, "/api/v1/grippers/left/goals", `{"gripPercentageClosed":100}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	info := decode[gripper.TaskInfo](t, rec)

	require.Eventually(t, func() bool {
		rec := c.do(t, http.MethodGet, "/api/v1/grippers/left/goals/"+info.ID, "")
		return decode[gripper.TaskInfo](t, rec).Status == gripper.StatusSucceeded
	}, 5*time.Second, 5*time.Millisecond)

	rec = c.do(t, http.MethodDelete, "/api/v1/grippers/left/goals/"+info.ID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(t, http.MethodGet, "/api/v1/grippers/left/goals/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGripperFeedbackStream(t *testing.T) {
	c := newTestCell(t, Config{})
	ts := httptest.NewServer(c.handler)
	defer ts.Close()

	rec := c.do(t, http.MethodPost, "/api/v1/grippers/left/goals", `{"gripPercentageClosed":0}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	info := decode[gripper.TaskInfo](t, rec)

	resp, err := ts.Client().Get(ts.URL + "/api/v1/grippers/left/goals/" + info.ID + "/feedback")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var last string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "event: ") {
			last = strings.TrimPrefix(line, "event: ")
		}
	}
	assert.Equal(t, "result", last)
}

func TestRateLimit(t *testing.T) {
	c := newTestCell(t, Config{RateLimit: 2})
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, c.do(t, http.MethodGet, "/api/v1/ready", "").Code)
	}
	rec := c.do(t, http.MethodGet, "/api/v1/ready", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// probes are not limited
	assert.Equal(t, http.StatusOK, c.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	c := newTestCell(t, Config{})
	rec := c.do(t, http.MethodGet, "/api/v1/session", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
