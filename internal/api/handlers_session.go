// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/armcell/internal/log"
)

// successResponse answers the boolean service calls.
type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// serviceCall runs one of the boolean session operations. The result is
// always 200 with the outcome in the body, matching the service contract.
func (s *Server) serviceCall(w http.ResponseWriter, r *http.Request, name string, fn func(context.Context) error) {
	resp := successResponse{Success: true}
	if err := fn(r.Context()); err != nil {
		resp = successResponse{Error: err.Error()}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "api.service_call_failed").
			Str("call", name).
			Msg("service call failed")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartEgm(w http.ResponseWriter, r *http.Request) {
	s.serviceCall(w, r, "start_egm", s.deps.Session.EnterStreamingMode)
}

func (s *Server) handleStopEgm(w http.ResponseWriter, r *http.Request) {
	s.serviceCall(w, r, "stop_egm", s.deps.Session.StopStreaming)
}

func (s *Server) handleStopMotors(w http.ResponseWriter, r *http.Request) {
	s.serviceCall(w, r, "stop_motors", s.deps.Session.RequestMotorsOff)
}

func (s *Server) handleIsReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ready": s.deps.Session.IsReady()})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Session.Snapshot())
}
