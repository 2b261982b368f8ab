// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scene keeps the known object poses of the work table. Every change
// raises the replan signal of all planning components.
package scene

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/rs/zerolog"
)

// ErrObjectNotFound is returned for unknown object ids.
var ErrObjectNotFound = errors.New("scene: object not found")

// Object is a table object with its pose and bounding-box extent.
type Object struct {
	ID         string        `json:"id" yaml:"id"`
	Pose       planning.Pose `json:"pose" yaml:"pose"`
	Dimensions planning.Vec3 `json:"dimensions" yaml:"dimensions"`
}

// ChangeKind names a scene mutation.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeMoved   ChangeKind = "moved"
	ChangeRemoved ChangeKind = "removed"
)

// Change describes one applied mutation.
type Change struct {
	Kind     ChangeKind
	ObjectID string
}

// Replanner receives the replan signal on scene changes.
type Replanner interface {
	MarkAllShouldReplan()
}

// Scene is safe for concurrent use.
type Scene struct {
	replanner Replanner
	logger    zerolog.Logger

	mu        sync.RWMutex
	objects   map[string]Object
	listeners []func(Change)
	rng       *rand.Rand
}

// Option configures a Scene.
type Option func(*Scene)

// WithRand sets the random source used by ShiftObject.
func WithRand(r *rand.Rand) Option {
	return func(s *Scene) { s.rng = r }
}

// New builds an empty scene. replanner may be nil.
func New(replanner Replanner, opts ...Option) *Scene {
	s := &Scene{
		replanner: replanner,
		logger:    xglog.WithComponent("scene"),
		objects:   make(map[string]Object),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), // #nosec G404 -- demo jitter only
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnChange registers fn to run after each mutation.
func (s *Scene) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Scene) notify(c Change) {
	if s.replanner != nil {
		s.replanner.MarkAllShouldReplan()
	}
	s.mu.RLock()
	ls := append([]func(Change){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range ls {
		fn(c)
	}
	s.logger.Info().
		Str(xglog.FieldEvent, "scene.changed").
		Str(xglog.FieldObjectID, c.ObjectID).
		Str("change", string(c.Kind)).
		Msg("scene changed, replan requested")
}

// Find returns the object with id.
func (s *Scene) Find(id string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	return o, ok
}

// Objects returns all objects sorted by id.
func (s *Scene) Objects() []Object {
	s.mu.RLock()
	out := make([]Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add inserts or replaces an object.
func (s *Scene) Add(o Object) error {
	if o.ID == "" {
		return errors.New("scene: object id is empty")
	}
	if o.Dimensions.X < 0 || o.Dimensions.Y < 0 || o.Dimensions.Z < 0 {
		return fmt.Errorf("scene: object %q has negative dimensions", o.ID)
	}
	o.Pose.Orientation = o.Pose.Orientation.Normalize()

	s.mu.Lock()
	_, existed := s.objects[o.ID]
	s.objects[o.ID] = o
	s.mu.Unlock()

	kind := ChangeAdded
	if existed {
		kind = ChangeMoved
	}
	s.notify(Change{Kind: kind, ObjectID: o.ID})
	return nil
}

// Move sets a new pose for an existing object.
func (s *Scene) Move(id string, pose planning.Pose) error {
	s.mu.Lock()
	o, ok := s.objects[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrObjectNotFound, id)
	}
	o.Pose = pose
	o.Pose.Orientation = pose.Orientation.Normalize()
	s.objects[id] = o
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMoved, ObjectID: id})
	return nil
}

// Remove deletes an object.
func (s *Scene) Remove(id string) error {
	s.mu.Lock()
	if _, ok := s.objects[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrObjectNotFound, id)
	}
	delete(s.objects, id)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRemoved, ObjectID: id})
	return nil
}

// ShiftObject moves an object sideways along Y by ±sideShift, picking the
// sign at random, and returns the new position.
func (s *Scene) ShiftObject(id string, sideShift float64) (planning.Vec3, error) {
	s.mu.Lock()
	o, ok := s.objects[id]
	if !ok {
		s.mu.Unlock()
		return planning.Vec3{}, fmt.Errorf("%w: %q", ErrObjectNotFound, id)
	}
	shift := sideShift
	if s.rng.IntN(2) == 0 {
		shift = -sideShift
	}
	o.Pose.Position.Y += shift
	s.objects[id] = o
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMoved, ObjectID: id})
	return o.Pose.Position, nil
}
