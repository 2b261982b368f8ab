// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/ManuGH/armcell/internal/config"
	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastCellConfig() config.AppConfig {
	cfg := config.Defaults()
	cfg.Metrics.Enabled = false
	cfg.API.RateLimit = 0
	s := &cfg.Session
	s.ConnectRetryInterval = time.Millisecond
	s.StopSettle = time.Millisecond
	s.QuirkDelay = time.Millisecond
	s.StartSettle = time.Millisecond
	s.IdlePollInterval = time.Millisecond
	s.IdleTimeout = time.Second
	s.StreamConfirmTimeout = 100 * time.Millisecond
	s.RecoveryDelay = time.Millisecond
	s.CalibrationSettle = time.Millisecond
	s.ReadyPollInterval = 5 * time.Millisecond
	s.ActivateRetryDelay = time.Millisecond
	cfg.Gripper.FeedbackInterval = time.Millisecond
	cfg.SceneEvents.FeedbackInterval = 5 * time.Millisecond
	return cfg
}

func TestBuild_Virtual(t *testing.T) {
	c, err := Build(context.Background(), fastCellConfig(), Backends{})
	require.NoError(t, err)

	assert.Len(t, c.Grippers, 2)
	assert.Equal(t, []string{"left_arm", "right_arm", "both_arms"}, c.Registry.IDs())
	assert.Nil(t, c.Subscriber)
	assert.False(t, c.Session.Streaming())
}

func TestBuild_HardwareRequiresBackends(t *testing.T) {
	cfg := fastCellConfig()
	cfg.Mode = config.ModeHardware
	_, err := Build(context.Background(), cfg, Backends{})
	require.ErrorIs(t, err, ErrMissingBackends)
}

func TestApp_ActivatesAndTerminates(t *testing.T) {
	cfg := fastCellConfig()
	sim := controller.NewSim(controller.SimConfig{AutoMode: true, ProgramRunning: true})
	c, err := Build(context.Background(), cfg, Backends{Controller: sim})
	require.NoError(t, err)

	addr := reserveListenAddr(t)
	mgr, err := NewManager(ServerConfig{ListenAddr: addr, ShutdownTimeout: 2 * time.Second}, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: c.API.Handler(),
	})
	require.NoError(t, err)
	app := NewApp(log.WithComponent("test"), mgr, nil, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, c.Coordinator.Active, 5*time.Second, 5*time.Millisecond)
	assert.True(t, c.Session.Streaming())

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/api/v1/ready")
	require.NoError(t, err)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.True(t, body["ready"])

	resp, err = client.Get("http://" + addr + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	assert.False(t, c.Coordinator.Active())
	assert.False(t, c.Session.Streaming())
	assert.Contains(t, sim.Calls(), "motors_off")
}

func TestApp_ActivationFailureStopsDaemon(t *testing.T) {
	cfg := fastCellConfig()
	// manual mode fails auto-mode verification
	sim := controller.NewSim(controller.SimConfig{AutoMode: false})
	c, err := Build(context.Background(), cfg, Backends{Controller: sim})
	require.NoError(t, err)

	mgr, err := NewManager(ServerConfig{ListenAddr: "127.0.0.1:0", ShutdownTimeout: time.Second}, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: c.API.Handler(),
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- NewApp(log.WithComponent("test"), mgr, nil, c).Run(context.Background()) }()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session bootstrap")
	case <-time.After(5 * time.Second):
		t.Fatal("activation failure did not stop the app")
	}
}

func TestApp_MissingManager(t *testing.T) {
	err := NewApp(log.WithComponent("test"), nil, nil, nil).Run(context.Background())
	require.ErrorIs(t, err, ErrMissingManager)
}
