// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ManuGH/armcell/internal/motion"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"mode", &session.Error{Kind: session.KindMode, Op: "enter_streaming"}, http.StatusConflict, "mode_transition"},
		{"start", &session.Error{Kind: session.KindStart, Op: "start"}, http.StatusConflict, "start_failed"},
		{"actuation", &session.Error{Kind: session.KindActuation, Op: "motors_off", Err: errors.New("motors still on")},
			http.StatusUnprocessableEntity, "actuation_not_verified"},
		{"precondition", &session.Error{Kind: session.KindPrecondition, Op: "verify_auto_mode"}, http.StatusPreconditionFailed, "precondition"},
		{"connection", &session.Error{Kind: session.KindConnection, Op: "connect"}, http.StatusBadGateway, "connection"},
		{"budget before motion", fmt.Errorf("%w: %w", motion.ErrMotion, motion.ErrRetryBudgetExhausted),
			http.StatusUnprocessableEntity, "retry_budget_exhausted"},
		{"wrapped busy", fmt.Errorf("pick cup: %w", motion.ErrComponentBusy), http.StatusConflict, "component_busy"},
		{"planner timeout", fmt.Errorf("motion: dispatch left_arm: linear_move_to_pose after 2m0s: %w", planning.ErrCallTimeout),
			http.StatusGatewayTimeout, "planner_timeout"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
