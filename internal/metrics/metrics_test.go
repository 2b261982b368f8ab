// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeVecValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).Write(m))
	return m.GetGauge().GetValue()
}

func getCounterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).Write(m))
	return m.GetCounter().GetValue()
}

func TestSetSessionPhase_OneHot(t *testing.T) {
	SetSessionPhase("streaming")
	for _, p := range SessionPhases {
		want := 0.0
		if p == "streaming" {
			want = 1.0
		}
		assert.Equal(t, want, getGaugeVecValue(t, sessionPhase, p), p)
	}

	SetSessionPhase("idle")
	assert.Equal(t, 0.0, getGaugeVecValue(t, sessionPhase, "streaming"))
	assert.Equal(t, 1.0, getGaugeVecValue(t, sessionPhase, "idle"))
}

func TestRecordLadderAttempt(t *testing.T) {
	before := getCounterVecValue(t, ladderAttemptsTotal, "left_arm", "equivalent_state", "failed")
	RecordLadderAttempt("left_arm", "equivalent_state", false)
	RecordLadderAttempt("left_arm", "equivalent_state", false)
	assert.Equal(t, before+2, getCounterVecValue(t, ladderAttemptsTotal, "left_arm", "equivalent_state", "failed"))
}

func TestSetInMotion(t *testing.T) {
	SetInMotion("right_arm", true)
	assert.Equal(t, 1.0, getGaugeVecValue(t, componentInMotion, "right_arm"))
	SetInMotion("right_arm", false)
	assert.Equal(t, 0.0, getGaugeVecValue(t, componentInMotion, "right_arm"))
}

func TestObserveControllerCall(t *testing.T) {
	before := getCounterVecValue(t, controllerCallsTotal, "stop_program", ResultError)
	ObserveControllerCall("stop_program", ResultError, 0)
	ObserveControllerCall("stop_program", ResultOK, 5*time.Millisecond)
	assert.Equal(t, before+1, getCounterVecValue(t, controllerCallsTotal, "stop_program", ResultError))
}

func TestPromhttpExposure(t *testing.T) {
	RecordGripperGoal("left", "succeeded")
	SetReady(true)

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "armcell_gripper_goals_total"))
	assert.True(t, strings.Contains(text, "armcell_ready 1"))
}
