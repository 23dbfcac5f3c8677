package control

import (
	"fmt"
	"math"
	"sync"
)

// Axes holds raw stick percentages as reported by the two sticks.
type Axes struct {
	LeftX, LeftY   float64 // yaw, thrust
	RightX, RightY float64 // roll, pitch
}

type Trim struct {
	Roll        float64 // [-50,50]
	Pitch       float64 // [-50,50]
	Sensitivity float64 // percent, [1,200]
}

func DefaultTrim() Trim {
	return Trim{Sensitivity: 110}
}

func (t Trim) Validate() error {
	if math.Abs(t.Roll) > 50 || math.IsNaN(t.Roll) {
		return fmt.Errorf("roll trim %.1f out of [-50,50]", t.Roll)
	}
	if math.Abs(t.Pitch) > 50 || math.IsNaN(t.Pitch) {
		return fmt.Errorf("pitch trim %.1f out of [-50,50]", t.Pitch)
	}
	if t.Sensitivity < 1 || t.Sensitivity > 200 || math.IsNaN(t.Sensitivity) {
		return fmt.Errorf("sensitivity %.1f out of [1,200]", t.Sensitivity)
	}
	return nil
}

type SafetyState int

const (
	Disarmed SafetyState = iota
	Armed
)

func (s SafetyState) String() string {
	switch s {
	case Disarmed:
		return "DISARMED"
	case Armed:
		return "ARMED"
	default:
		return fmt.Sprintf("SafetyState(%d)", int(s))
	}
}

// Snapshot is everything a loop tick needs, read under one lock.
type Snapshot struct {
	Axes      Axes
	Trim      Trim
	Safety    SafetyState
	Connected bool
}

// Reader is the loop's view of the state. View holds the read lock while f runs, so
// no transition lands between reading a snapshot and acting on it.
type Reader interface {
	View(f func(snap Snapshot))
}

// StickSink is the only way stick input gets into the state.
type StickSink interface {
	SetLeft(x, y float64)
	SetRight(x, y float64)
}

// State is the shared flight state. Sticks write axes through StickSink, Safety owns
// the armed and connected flags, configuration writes the trim.
type State struct {
	mx        sync.RWMutex
	axes      Axes
	trim      Trim
	safety    SafetyState
	connected bool
}

func NewState(trim Trim) *State {
	return &State{trim: trim}
}

func (s *State) Snapshot() Snapshot {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return Snapshot{
		Axes:      s.axes,
		Trim:      s.trim,
		Safety:    s.safety,
		Connected: s.connected,
	}
}

// View runs f with the read lock held. f must not block or call back into State.
func (s *State) View(f func(snap Snapshot)) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	f(Snapshot{
		Axes:      s.axes,
		Trim:      s.trim,
		Safety:    s.safety,
		Connected: s.connected,
	})
}

// SetLeft is dropped unless armed: a move emitted after a disarm must not bring the
// axes back.
func (s *State) SetLeft(x, y float64) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.safety != Armed {
		return
	}

	s.axes.LeftX, s.axes.LeftY = x, y
}

func (s *State) SetRight(x, y float64) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.safety != Armed {
		return
	}

	s.axes.RightX, s.axes.RightY = x, y
}

func (s *State) SetTrim(t Trim) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	s.trim = t

	return nil
}

func (s *State) Safety() SafetyState {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.safety
}

// update runs f with the write lock held; used by Safety only.
func (s *State) update(f func(st *State)) {
	s.mx.Lock()
	defer s.mx.Unlock()

	f(s)
}
