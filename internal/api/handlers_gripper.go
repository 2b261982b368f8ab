// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/go-chi/chi/v5"
)

type gripperGoalRequest struct {
	Percentage *int `json:"gripPercentageClosed"`
}

func (s *Server) gripper(w http.ResponseWriter, r *http.Request) (GripperServer, bool) {
	side := controller.Side(chi.URLParam(r, "side"))
	g, ok := s.deps.Grippers[side]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no gripper on side %q", side), Code: "unknown_gripper"})
		return nil, false
	}
	return g, true
}

func (s *Server) handleSubmitGripperGoal(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gripper(w, r)
	if !ok {
		return
	}
	var req gripperGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if req.Percentage == nil {
		writeBadRequest(w, r, "gripPercentageClosed is required")
		return
	}
	info, err := g.Submit(*req.Percentage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+info.ID)
	writeJSON(w, http.StatusAccepted, info)
}

func (s *Server) handleGetGripperGoal(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gripper(w, r)
	if !ok {
		return
	}
	info, err := g.Get(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCancelGripperGoal(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gripper(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "taskID")
	if err := g.Cancel(id); err != nil {
		writeError(w, r, err)
		return
	}
	info, err := g.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, info)
}

// handleGripperFeedback streams progress as server-sent events and ends with
// a "result" event carrying the final task state.
func (s *Server) handleGripperFeedback(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gripper(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "taskID")
	ch, err := g.Subscribe(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v any) {
		data, _ := json.Marshal(v)
		_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case fb, open := <-ch:
			if !open {
				if info, err := g.Get(id); err == nil {
					send("result", info)
				}
				return
			}
			send("feedback", fb)
		}
	}
}
