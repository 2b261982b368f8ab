// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/armcell/internal/motion"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/go-chi/chi/v5"
)

type componentView struct {
	ID           string              `json:"id"`
	EndEffector  string              `json:"endEffector,omitempty"`
	Home         planning.JointState `json:"home,omitempty"`
	Members      []string            `json:"members,omitempty"`
	Gripper      string              `json:"gripper,omitempty"`
	InMotion     bool                `json:"inMotion"`
	ShouldReplan bool                `json:"shouldReplan"`
}

type goalRequest struct {
	motion.Goal
	Replan bool `json:"replan"`
}

type linearRequest struct {
	Pose              planning.Pose `json:"pose"`
	Retries           int           `json:"retries"`
	CollisionChecking bool          `json:"collisionChecking"`
	PathFraction      float64       `json:"pathFraction"`
	SpeedScale        float64       `json:"speedScale"`
	AccelScale        float64       `json:"accelScale"`
}

type objectRequest struct {
	ObjectID string   `json:"objectId"`
	Hover    *float64 `json:"hover,omitempty"`
	Retries  int      `json:"retries"`
	Replan   bool     `json:"replan"`
	// Linear moves along a Cartesian path instead of a free-space plan.
	Linear            bool    `json:"linear"`
	CollisionChecking bool    `json:"collisionChecking"`
	PathFraction      float64 `json:"pathFraction"`
}

type gripRequest struct {
	Closed   bool `json:"closed"`
	Blocking bool `json:"blocking"`
}

type motionResponse struct {
	Component string                `json:"component"`
	Outcome   string                `json:"outcome"`
	Attempts  []motion.RetryAttempt `json:"attempts,omitempty"`
}

func reached(id string, attempts []motion.RetryAttempt) motionResponse {
	return motionResponse{Component: id, Outcome: "reached", Attempts: attempts}
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	ids := s.deps.Components.IDs()
	out := make([]componentView, 0, len(ids))
	for _, id := range ids {
		v, err := s.component(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	v, err := s.component(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) component(id string) (componentView, error) {
	st, err := s.deps.Components.Status(id)
	if err != nil {
		return componentView{}, err
	}
	return componentView{
		ID:           st.Component.ID,
		EndEffector:  st.Component.EndEffector,
		Home:         st.Component.Home,
		Members:      st.Component.Members,
		Gripper:      string(st.Component.GripperSide),
		InMotion:     st.InMotion,
		ShouldReplan: st.ShouldReplan,
	}, nil
}

func (s *Server) handleMoveToGoal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	var err error
	if req.Replan {
		err = s.deps.Motion.MoveToGoalReplanning(r.Context(), id, req.Goal, nil)
	} else {
		err = s.deps.Motion.MoveToGoal(r.Context(), id, req.Goal)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reached(id, nil))
}

func (s *Server) handleLinearMove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req linearRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	out, err := s.deps.Motion.LinearMove(r.Context(), id, req.Pose, motion.LinearOptions{
		Retries:           req.Retries,
		CollisionChecking: req.CollisionChecking,
		PathFraction:      req.PathFraction,
		SpeedScale:        req.SpeedScale,
		AccelScale:        req.AccelScale,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reached(id, out.Attempts))
}

func (s *Server) handleMoveHome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Replan bool `json:"replan"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if err := s.deps.Motion.MoveHome(r.Context(), id, req.Replan); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reached(id, nil))
}

func (s *Server) handleMoveToObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req objectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if req.ObjectID == "" {
		writeBadRequest(w, r, "objectId is required")
		return
	}
	hover := 0.0
	if req.Hover != nil {
		hover = *req.Hover
	}

	if req.Linear {
		out, err := s.deps.Motion.LinearMoveToObject(r.Context(), id, req.ObjectID, hover, motion.LinearOptions{
			Retries:           req.Retries,
			CollisionChecking: req.CollisionChecking,
			PathFraction:      req.PathFraction,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reached(id, out.Attempts))
		return
	}
	if err := s.deps.Motion.MoveToObject(r.Context(), id, req.ObjectID, hover, req.Retries, req.Replan); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reached(id, nil))
}

func (s *Server) objectOp(w http.ResponseWriter, r *http.Request, op func(id, objectID string) error) {
	id := chi.URLParam(r, "id")
	var req struct {
		ObjectID string `json:"objectId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if req.ObjectID == "" {
		writeBadRequest(w, r, "objectId is required")
		return
	}
	if err := op(id, req.ObjectID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reached(id, nil))
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	s.objectOp(w, r, func(id, objectID string) error {
		return s.deps.Motion.PickObject(r.Context(), id, objectID)
	})
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	s.objectOp(w, r, func(id, objectID string) error {
		return s.deps.Motion.PlaceObject(r.Context(), id, objectID)
	})
}

func (s *Server) handleGrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req gripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	var err error
	if req.Closed {
		err = s.deps.Motion.GripIn(r.Context(), id, req.Blocking)
	} else {
		err = s.deps.Motion.GripOut(r.Context(), id, req.Blocking)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Motion.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopMotion(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Motion.StopMotion(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAllowMotion(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Motion.AllowMotion(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMustStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"mustStop": s.deps.Motion.MustStop()})
}

func (s *Server) handleResetMustStop(w http.ResponseWriter, _ *http.Request) {
	s.deps.Motion.ResetMustStop()
	w.WriteHeader(http.StatusNoContent)
}
