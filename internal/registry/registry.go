// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package registry is the single source of truth for planning components:
// their static configuration and the inMotion / shouldReplan coordination flags.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/armcell/internal/controller"
	"github.com/ManuGH/armcell/internal/planning"
)

// ErrUnknownComponent is matched by every UnknownComponentError.
var ErrUnknownComponent = errors.New("unknown planning component")

// UnknownComponentError reports a lookup of an unregistered component id.
type UnknownComponentError struct {
	ID string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown planning component %q", e.ID)
}

func (e *UnknownComponentError) Is(target error) bool {
	return target == ErrUnknownComponent
}

// Component is the static configuration of one motion group.
type Component struct {
	ID          string
	EndEffector string
	Home        planning.JointState
	// Members lists the single-arm components a combined component drives.
	Members []string
	// GripperSide is the gripper mounted on this component's end effector, if any.
	GripperSide controller.Side
}

// Status is a point-in-time view of a component.
type Status struct {
	Component    Component
	InMotion     bool
	ShouldReplan bool
}

type entry struct {
	cfg          Component
	inMotion     bool
	shouldReplan bool
}

// Registry is safe for concurrent use. A single mutex guards all flags so
// setting and consuming shouldReplan never interleave.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

// New builds a registry. Component ids must be unique and non-empty and
// members must reference registered components.
func New(components []Component) (*Registry, error) {
	r := &Registry{entries: make(map[string]*entry, len(components))}
	for _, c := range components {
		if c.ID == "" {
			return nil, errors.New("registry: component id is empty")
		}
		if _, dup := r.entries[c.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate component id %q", c.ID)
		}
		c.Home = c.Home.Clone()
		c.Members = append([]string(nil), c.Members...)
		r.entries[c.ID] = &entry{cfg: c}
		r.order = append(r.order, c.ID)
	}
	for _, c := range components {
		for _, m := range c.Members {
			if _, ok := r.entries[m]; !ok {
				return nil, fmt.Errorf("registry: component %q lists unknown member %q", c.ID, m)
			}
		}
	}
	return r, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, &UnknownComponentError{ID: id}
	}
	return e, nil
}

// Get returns the static configuration of id.
func (r *Registry) Get(id string) (Component, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return Component{}, err
	}
	c := e.cfg
	c.Home = c.Home.Clone()
	c.Members = append([]string(nil), c.Members...)
	return c, nil
}

// IDs returns all component ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Status returns the flags and configuration of id.
func (r *Registry) Status(id string) (Status, error) {
	r.mu.Lock()
	e, err := r.lookup(id)
	if err != nil {
		r.mu.Unlock()
		return Status{}, err
	}
	st := Status{InMotion: e.inMotion, ShouldReplan: e.shouldReplan}
	r.mu.Unlock()

	st.Component, _ = r.Get(id)
	return st, nil
}

// SetShouldReplan raises or lowers the replan signal of id.
func (r *Registry) SetShouldReplan(id string, v bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.shouldReplan = v
	return nil
}

// MarkAllShouldReplan raises the replan signal on every component.
func (r *Registry) MarkAllShouldReplan() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.shouldReplan = true
	}
}

// ConsumeShouldReplan returns the replan signal of id and clears it in the
// same critical section.
func (r *Registry) ConsumeShouldReplan(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	v := e.shouldReplan
	e.shouldReplan = false
	return v, nil
}

// ShouldReplan peeks at the replan signal without consuming it.
func (r *Registry) ShouldReplan(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	return e.shouldReplan, nil
}

// SetInMotion sets the in-motion flag of id.
func (r *Registry) SetInMotion(id string, v bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.inMotion = v
	return nil
}

// InMotion reports whether id has a goal in flight.
func (r *Registry) InMotion(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	return e.inMotion, nil
}

// TryBeginMotion sets inMotion for id if it was clear. It returns false when
// another goal is already in flight.
func (r *Registry) TryBeginMotion(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	if e.inMotion {
		return false, nil
	}
	e.inMotion = true
	return true, nil
}

// Expand returns the member ids of a combined component, or id itself.
func (r *Registry) Expand(id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if len(e.cfg.Members) == 0 {
		return []string{id}, nil
	}
	return append([]string(nil), e.cfg.Members...), nil
}
