// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"

	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/scene"
	"github.com/go-chi/chi/v5"
)

type objectBody struct {
	Pose       planning.Pose `json:"pose"`
	Dimensions planning.Vec3 `json:"dimensions"`
}

func (s *Server) sceneOrUnavailable(w http.ResponseWriter) bool {
	if s.deps.Scene == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "scene not configured", Code: "scene_unavailable"})
		return false
	}
	return true
}

func (s *Server) handleListObjects(w http.ResponseWriter, _ *http.Request) {
	if !s.sceneOrUnavailable(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Scene.Objects())
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	if !s.sceneOrUnavailable(w) {
		return
	}
	id := chi.URLParam(r, "objectID")
	obj, ok := s.deps.Scene.Find(id)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s", scene.ErrObjectNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// handlePutObject inserts or replaces an object.
func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	if !s.sceneOrUnavailable(w) {
		return
	}
	var body objectBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	obj := scene.Object{ID: chi.URLParam(r, "objectID"), Pose: body.Pose, Dimensions: body.Dimensions}
	if err := s.deps.Scene.Add(obj); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	if !s.sceneOrUnavailable(w) {
		return
	}
	if err := s.deps.Scene.Remove(chi.URLParam(r, "objectID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShiftObject(w http.ResponseWriter, r *http.Request) {
	if !s.sceneOrUnavailable(w) {
		return
	}
	var req struct {
		SideShift float64 `json:"sideShift"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	pos, err := s.deps.Scene.ShiftObject(chi.URLParam(r, "objectID"), req.SideShift)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]planning.Vec3{"position": pos})
}

func (s *Server) handleGraspPoses(w http.ResponseWriter, r *http.Request) {
	poses, err := s.deps.Motion.GraspPoses(chi.URLParam(r, "objectID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poses)
}
