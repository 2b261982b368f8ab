// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ManuGH/armcell/internal/gripper"
	"github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/motion"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/registry"
	"github.com/ManuGH/armcell/internal/session"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// errorCodes maps sentinels to an HTTP status and a stable code, first match wins.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{registry.ErrUnknownComponent, http.StatusNotFound, "unknown_component"},
	{motion.ErrObjectNotFound, http.StatusNotFound, "object_not_found"},
	{gripper.ErrTaskNotFound, http.StatusNotFound, "task_not_found"},
	{motion.ErrInvalidGoal, http.StatusBadRequest, "invalid_goal"},
	{motion.ErrNoGripper, http.StatusBadRequest, "no_gripper"},
	{gripper.ErrUnsupportedPercentage, http.StatusBadRequest, "unsupported_percentage"},
	{motion.ErrNotReady, http.StatusConflict, "not_ready"},
	{motion.ErrComponentBusy, http.StatusConflict, "component_busy"},
	{motion.ErrCancelled, http.StatusConflict, "cancelled"},
	{gripper.ErrTaskFinished, http.StatusConflict, "task_finished"},
	{gripper.ErrNotRunning, http.StatusConflict, "program_not_running"},
	{gripper.ErrQueueFull, http.StatusServiceUnavailable, "queue_full"},
	{gripper.ErrServerStopped, http.StatusServiceUnavailable, "server_stopped"},
	{motion.ErrRetryBudgetExhausted, http.StatusUnprocessableEntity, "retry_budget_exhausted"},
	{motion.ErrGripNotVerified, http.StatusUnprocessableEntity, "grip_not_verified"},
	{motion.ErrMotion, http.StatusUnprocessableEntity, "motion_failed"},
	{session.ErrPrecondition, http.StatusPreconditionFailed, "precondition"},
	{session.ErrMode, http.StatusConflict, "mode_transition"},
	{session.ErrStart, http.StatusConflict, "start_failed"},
	{session.ErrActuation, http.StatusUnprocessableEntity, "actuation_not_verified"},
	{session.ErrConnection, http.StatusBadGateway, "connection"},
	{planning.ErrCallTimeout, http.StatusGatewayTimeout, "planner_timeout"},
}

func classify(err error) (int, string) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.request_failed").
			Msg("request failed")
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeBadRequest reports a malformed request body or parameter.
func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     msg,
		Code:      "bad_request",
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// decodeJSON strictly decodes the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
