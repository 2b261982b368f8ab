// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSimMotorsOff is returned by the simulator when starting without motors.
	ErrSimMotorsOff = errors.New("sim: motors are off")
	// ErrSimProgramRunning is returned when an operation needs a stopped program.
	ErrSimProgramRunning = errors.New("sim: program is running")
	// ErrSimProgramStopped is returned when an operation needs a running program.
	ErrSimProgramStopped = errors.New("sim: program is not running")
)

// SimConfig scripts the behaviour of a Sim.
type SimConfig struct {
	// Tasks lists the motion task names; defaults to T_ROB_L and T_ROB_R.
	Tasks []string
	// AutoMode is the operating mode switch position.
	AutoMode bool
	// ProgramRunning starts the simulator with the program already executing.
	ProgramRunning bool
	// ConnectAfter is the number of IsConnected polls answered false first.
	ConnectAfter int
	// InitPolls is the number of TaskState polls a task stays initializing after start.
	InitPolls int
	// UndefinedStreamStarts is the number of stream starts that leave tasks undefined.
	UndefinedStreamStarts int
	// StopIgnored makes StopProgram a no-op.
	StopIgnored bool
	// MotorsOffIgnored makes SetMotorsOff a no-op.
	MotorsOffIgnored bool
	// StreamStartIgnored leaves tasks idle after a stream start signal.
	StreamStartIgnored bool
}

// Sim is an in-memory Controller used in virtual mode and tests.
type Sim struct {
	mu          sync.Mutex
	cfg         SimConfig
	connectPoll int
	running     bool
	motorsOn    bool
	tasks       map[string]TaskState
	initLeft    map[string]int
	undefLeft   int
	closed      map[Side]bool
	holdForce   map[Side]int
	calibrated  bool
	calls       []string
}

// NewSim builds a simulator from cfg.
func NewSim(cfg SimConfig) *Sim {
	if len(cfg.Tasks) == 0 {
		cfg.Tasks = []string{"T_ROB_L", "T_ROB_R"}
	}
	s := &Sim{
		cfg:       cfg,
		running:   cfg.ProgramRunning,
		motorsOn:  cfg.ProgramRunning,
		tasks:     make(map[string]TaskState, len(cfg.Tasks)),
		initLeft:  make(map[string]int, len(cfg.Tasks)),
		undefLeft: cfg.UndefinedStreamStarts,
		closed:    map[Side]bool{},
		holdForce: map[Side]int{},
	}
	for _, t := range cfg.Tasks {
		s.tasks[t] = TaskIdle
	}
	return s
}

func (s *Sim) record(op string) {
	s.calls = append(s.calls, op)
}

// Calls returns every command recorded so far.
func (s *Sim) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// SetAutoMode flips the operating mode switch.
func (s *Sim) SetAutoMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.AutoMode = on
}

// SetTaskState forces a task into st.
func (s *Sim) SetTaskState(task string, st TaskState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task] = st
}

// HoldForce returns the last hold force set for side.
func (s *Sim) HoldForce(side Side) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdForce[side]
}

// Calibrated reports whether the grippers were calibrated.
func (s *Sim) Calibrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrated
}

func (s *Sim) IsConnected(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectPoll++
	return s.connectPoll > s.cfg.ConnectAfter, nil
}

func (s *Sim) IsAutoMode(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.AutoMode, nil
}

func (s *Sim) IsProgramRunning(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, nil
}

func (s *Sim) TaskState(_ context.Context, task string) (TaskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[task]
	if !ok {
		return TaskIdle, fmt.Errorf("sim: unknown task %q", task)
	}
	if st == TaskInitializing {
		if s.initLeft[task] <= 0 {
			s.tasks[task] = TaskIdle
			return TaskIdle, nil
		}
		s.initLeft[task]--
	}
	return st, nil
}

func (s *Sim) SendSignal(_ context.Context, sig Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("signal:" + string(sig))
	switch sig {
	case SignalStreamStart:
		if !s.running {
			return ErrSimProgramStopped
		}
		next := TaskRunning
		if s.undefLeft > 0 {
			s.undefLeft--
			next = TaskUndefined
		} else if s.cfg.StreamStartIgnored {
			next = TaskIdle
		}
		for t := range s.tasks {
			s.tasks[t] = next
		}
	case SignalStreamStop:
		for t, st := range s.tasks {
			if st == TaskRunning {
				s.tasks[t] = TaskIdle
			}
		}
	default:
		return fmt.Errorf("sim: unknown signal %q", sig)
	}
	return nil
}

func (s *Sim) StartProgram(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("start_program")
	if !s.motorsOn {
		return ErrSimMotorsOff
	}
	s.running = true
	for t := range s.tasks {
		s.tasks[t] = TaskInitializing
		s.initLeft[t] = s.cfg.InitPolls
	}
	return nil
}

func (s *Sim) StopProgram(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("stop_program")
	if s.cfg.StopIgnored {
		return nil
	}
	s.running = false
	for t := range s.tasks {
		s.tasks[t] = TaskIdle
	}
	return nil
}

func (s *Sim) ResetProgramPointer(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("reset_program_pointer")
	if s.running {
		return ErrSimProgramRunning
	}
	return nil
}

func (s *Sim) SetMotorsOn(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("motors_on")
	s.motorsOn = true
	return nil
}

func (s *Sim) SetMotorsOff(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("motors_off")
	if !s.cfg.MotorsOffIgnored {
		s.motorsOn = false
	}
	return nil
}

func (s *Sim) IsMotorOn(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motorsOn, nil
}

func (s *Sim) GripIn(_ context.Context, side Side) error {
	return s.grip(side, true)
}

func (s *Sim) GripOut(_ context.Context, side Side) error {
	return s.grip(side, false)
}

func (s *Sim) grip(side Side, closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if closed {
		s.record("grip_in:" + string(side))
	} else {
		s.record("grip_out:" + string(side))
	}
	if !side.Valid() {
		return fmt.Errorf("sim: unknown gripper %q", side)
	}
	if !s.running {
		return ErrSimProgramStopped
	}
	s.closed[side] = closed
	return nil
}

func (s *Sim) Calibrate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("calibrate")
	if !s.running {
		return ErrSimProgramStopped
	}
	s.calibrated = true
	return nil
}

func (s *Sim) SetHoldForce(_ context.Context, side Side, force int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(fmt.Sprintf("hold_force:%s:%d", side, force))
	s.holdForce[side] = force
	return nil
}

func (s *Sim) IsClosed(_ context.Context, side Side) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed[side], nil
}

func (s *Sim) IsOpen(_ context.Context, side Side) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed[side], nil
}

var _ Controller = (*Sim)(nil)
