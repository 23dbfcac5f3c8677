package joystick

import (
	"sync"
	"time"
)

const boundaryInterval = time.Millisecond * 100

type MoveFunc func(x, y float64)

// Stick turns drag gestures into stick percentages. The thrust/yaw stick holds its
// position on release; the roll/pitch stick springs back to the center.
type Stick struct {
	mx         sync.Mutex
	geo        Geometry
	label      string
	autoCenter bool
	disabled   bool
	active     bool
	x, y       float64
	onMove     MoveFunc
	onBoundary func()
	lastEdge   time.Time
	now        func() time.Time
}

type Option func(s *Stick)

func WithAutoCenter(v bool) Option {
	return func(s *Stick) {
		s.autoCenter = v
	}
}

func WithMoveFunc(f MoveFunc) Option {
	return func(s *Stick) {
		s.onMove = f
	}
}

// WithBoundaryFunc is called when a drag hits the edge, at most every 100ms.
func WithBoundaryFunc(f func()) Option {
	return func(s *Stick) {
		s.onBoundary = f
	}
}

func WithLabel(l string) Option {
	return func(s *Stick) {
		s.label = l
	}
}

func New(geo Geometry, opts ...Option) *Stick {
	s := &Stick{
		geo:        geo,
		autoCenter: true,
		now:        time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

func (s *Stick) Label() string {
	return s.label
}

func (s *Stick) Geometry() Geometry {
	return s.geo
}

func (s *Stick) Press() {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.disabled {
		return
	}

	s.active = true
}

// Drag takes the pointer delta from the press origin. It reports false when the stick
// is disabled and nothing was emitted.
func (s *Stick) Drag(dx, dy float64) (x, y float64, ok bool) {
	s.mx.Lock()

	if s.disabled {
		s.mx.Unlock()
		return 0, 0, false
	}

	s.active = true
	_, _, clamped := s.geo.Constrain(dx, dy)
	s.x, s.y = s.geo.Normalize(dx, dy)
	x, y = s.x, s.y

	edge := false
	if clamped && s.onBoundary != nil {
		if now := s.now(); now.Sub(s.lastEdge) > boundaryInterval {
			s.lastEdge = now
			edge = true
		}
	}

	onMove, onBoundary := s.onMove, s.onBoundary
	s.mx.Unlock()

	if edge {
		onBoundary()
	}

	if onMove != nil {
		onMove(x, y)
	}

	return x, y, true
}

func (s *Stick) Release() {
	s.mx.Lock()

	if s.disabled {
		s.mx.Unlock()
		return
	}

	s.active = false
	center := s.autoCenter
	if center {
		s.x, s.y = 0, 0
	}

	onMove := s.onMove
	s.mx.Unlock()

	if center && onMove != nil {
		onMove(0, 0)
	}
}

// Reset puts the knob back to the center without emitting, for a forced disarm.
func (s *Stick) Reset() {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.x, s.y = 0, 0
	s.active = false
}

func (s *Stick) SetDisabled(v bool) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.disabled = v
	if v {
		s.active = false
	}
}

func (s *Stick) Disabled() bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.disabled
}

func (s *Stick) Active() bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.active
}

func (s *Stick) Position() (x, y float64) {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.x, s.y
}
