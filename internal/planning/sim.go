// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package planning

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SimComponent seeds one component of a Sim.
type SimComponent struct {
	State JointState
	Pose  Pose
}

// Sim is an in-memory planning service for virtual mode and tests.
// Motions succeed instantly unless failures are scripted; asynchronous
// goals complete after MotionDuration.
type Sim struct {
	// MotionDuration is how long an asynchronous goal takes to complete.
	MotionDuration time.Duration
	// PosTolerance and AngTolerance are used by the reached checks.
	PosTolerance float64
	AngTolerance float64
	// IK solves inverse kinematics; nil uses a solver that offsets the seed.
	IK func(component string, pose Pose, seed JointState) (JointState, bool)

	mu         sync.Mutex
	components map[string]*simComponent
	stopped    map[string]bool
	now        func() time.Time
}

type simComponent struct {
	state       JointState
	pose        Pose
	failLinear  int
	failPose    int
	pendingPose *Pose
	pendingJnt  JointState
	doneAt      time.Time
	calls       []string
}

// NewSim builds a Sim for the given components.
func NewSim(components map[string]SimComponent) *Sim {
	s := &Sim{
		MotionDuration: 200 * time.Millisecond,
		PosTolerance:   0.01,
		AngTolerance:   0.05,
		components:     make(map[string]*simComponent, len(components)),
		stopped:        make(map[string]bool),
		now:            time.Now,
	}
	for id, c := range components {
		s.components[id] = &simComponent{state: c.State.Clone(), pose: c.Pose}
	}
	return s
}

// FailLinear makes the next n Cartesian moves of component fail.
func (s *Sim) FailLinear(component string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.components[component]; ok {
		c.failLinear = n
	}
}

// FailPose makes the next n free-space pose moves of component fail.
func (s *Sim) FailPose(component string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.components[component]; ok {
		c.failPose = n
	}
}

// Calls returns the operations recorded for component.
func (s *Sim) Calls(component string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.components[component]
	if !ok {
		return nil
	}
	return append([]string(nil), c.calls...)
}

func (s *Sim) get(component, op string) (*simComponent, error) {
	c, ok := s.components[component]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, component)
	}
	c.calls = append(c.calls, op)
	return c, nil
}

// settle applies a finished asynchronous goal. Caller holds s.mu.
func (s *Sim) settle(c *simComponent) {
	if c.doneAt.IsZero() || s.now().Before(c.doneAt) {
		return
	}
	if c.pendingPose != nil {
		c.pose = *c.pendingPose
	}
	if c.pendingJnt != nil {
		c.state = c.pendingJnt
	}
	c.pendingPose, c.pendingJnt, c.doneAt = nil, nil, time.Time{}
}

func (s *Sim) MoveToPose(_ context.Context, component string, pose Pose, opts Options) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(component, "move_to_pose")
	if err != nil {
		return false, err
	}
	if s.stopped[component] {
		return false, nil
	}
	if c.failPose > 0 {
		c.failPose--
		return false, nil
	}
	if opts.Async {
		c.pendingPose = &pose
		c.doneAt = s.now().Add(s.MotionDuration)
		return true, nil
	}
	c.pose = pose
	return true, nil
}

func (s *Sim) MoveToState(_ context.Context, component string, state JointState, opts Options) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(component, "move_to_state")
	if err != nil {
		return false, err
	}
	if s.stopped[component] {
		return false, nil
	}
	if opts.Async {
		c.pendingJnt = state.Clone()
		c.doneAt = s.now().Add(s.MotionDuration)
		return true, nil
	}
	c.state = state.Clone()
	return true, nil
}

func (s *Sim) LinearMoveToPose(_ context.Context, component string, pose Pose, _ Options) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(component, "linear_move_to_pose")
	if err != nil {
		return false, err
	}
	if s.stopped[component] {
		return false, nil
	}
	if c.failLinear > 0 {
		c.failLinear--
		return false, nil
	}
	c.pose = pose
	return true, nil
}

func (s *Sim) PoseReached(_ context.Context, component string, pose Pose) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(component, "pose_reached")
	if err != nil {
		return false, err
	}
	s.settle(c)
	return c.pose.Within(pose, s.PosTolerance, s.AngTolerance), nil
}

func (s *Sim) StateReached(_ context.Context, component string, state JointState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(component, "state_reached")
	if err != nil {
		return false, err
	}
	s.settle(c)
	return c.state.Within(state, s.AngTolerance), nil
}

func (s *Sim) CurrentState(_ context.Context, component string) (JointState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(component, "current_state")
	if err != nil {
		return nil, err
	}
	s.settle(c)
	return c.state.Clone(), nil
}

func (s *Sim) CurrentPose(_ context.Context, component string) (Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(component, "current_pose")
	if err != nil {
		return Pose{}, err
	}
	s.settle(c)
	return c.pose, nil
}

func (s *Sim) InverseKinematics(_ context.Context, component string, pose Pose, seed JointState) (JointState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(component, "inverse_kinematics"); err != nil {
		return nil, false, err
	}
	if s.IK != nil {
		sol, ok := s.IK(component, pose, seed)
		return sol, ok, nil
	}
	sol := seed.Clone()
	for i := range sol {
		sol[i] += 0.1
	}
	return sol, true, nil
}

// StopMotion aborts any pending asynchronous goal and rejects new goals
// until AllowMotion is called.
func (s *Sim) StopMotion(_ context.Context, component string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(component, "stop")
	if err != nil {
		return err
	}
	c.pendingPose, c.pendingJnt, c.doneAt = nil, nil, time.Time{}
	s.stopped[component] = true
	return nil
}

func (s *Sim) AllowMotion(_ context.Context, component string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(component, "allow"); err != nil {
		return err
	}
	delete(s.stopped, component)
	return nil
}

var (
	_ Service  = (*Sim)(nil)
	_ Signaler = (*Sim)(nil)
)
