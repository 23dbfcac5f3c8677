package control

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flyq/pkg/crtp"
)

var (
	ErrNotConnected = errors.New("vehicle not connected")
	ErrCooldown     = errors.New("emergency stop cooldown")
	ErrArmed        = errors.New("vehicle is armed")
)

type Reason int

const (
	ReasonArm Reason = iota + 1
	ReasonDisarm
	ReasonEmergency
	ReasonLinkLost
)

func (r Reason) String() string {
	switch r {
	case ReasonArm:
		return "arm"
	case ReasonDisarm:
		return "disarm"
	case ReasonEmergency:
		return "emergency stop"
	case ReasonLinkLost:
		return "link lost"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

type Transition struct {
	From, To SafetyState
	Reason   Reason
	Err      error
}

// Platform is where Safety queues arm and calibrate packets. Reset replaces a pending
// commander.
type Platform interface {
	Urgent(pkt []byte)
	Reset(pkt []byte)
}

// Safety is the arm/disarm state machine and the only writer of the armed and
// connected flags. Every way out of Armed is synchronous: by the time a call returns
// the state is Disarmed and the axes are zero.
type Safety struct {
	st       *State
	platform Platform
	logger   *slog.Logger
	cooldown time.Duration
	now      func() time.Time

	mx        sync.Mutex // serializes transitions and listener calls
	estopAt   time.Time
	listeners []func(Transition)
}

func NewSafety(st *State, platform Platform, cooldown time.Duration) *Safety {
	return &Safety{
		st:       st,
		platform: platform,
		logger:   slog.Default(),
		cooldown: cooldown,
		now:      time.Now,
	}
}

func (s *Safety) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Subscribe registers f for every real state change. f runs on the caller's goroutine
// and must not call back into Safety.
func (s *Safety) Subscribe(f func(Transition)) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.listeners = append(s.listeners, f)
}

func (s *Safety) State() SafetyState {
	return s.st.Safety()
}

func (s *Safety) Connected() bool {
	return s.st.Snapshot().Connected
}

// Arm expects the operator confirmation to have happened already.
func (s *Safety) Arm() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	var err error
	var changed bool

	s.st.update(func(st *State) {
		switch {
		case st.safety == Armed:
		case !st.connected:
			err = ErrNotConnected
		case !s.estopAt.IsZero() && s.now().Sub(s.estopAt) < s.cooldown:
			err = ErrCooldown
		default:
			st.safety = Armed
			changed = true
		}
	})

	if err != nil {
		s.logger.Warn("arm refused", "error", err)
		return err
	}

	if changed {
		pkt := crtp.EncodeArm(true)
		s.platform.Urgent(pkt[:])
		s.notify(Transition{From: Disarmed, To: Armed, Reason: ReasonArm})
	}

	return nil
}

func (s *Safety) Disarm() {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.disarm(Transition{Reason: ReasonDisarm}, true)
}

func (s *Safety) EmergencyStop() {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.estopAt = s.now()
	s.disarm(Transition{Reason: ReasonEmergency}, true)
}

// LinkLost is fed by the transport and by failed sends.
func (s *Safety) LinkLost(err error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	wasConnected := s.Connected()

	s.st.update(func(st *State) {
		st.connected = false
	})

	if wasConnected {
		s.logger.Warn("link lost", "error", err)
	}

	s.disarm(Transition{Reason: ReasonLinkLost, Err: err}, false)
}

// LinkUp marks the vehicle reachable after a successful connect. It never arms.
func (s *Safety) LinkUp() {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.st.update(func(st *State) {
		st.connected = true
	})
}

func (s *Safety) Calibrate() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	snap := s.st.Snapshot()

	if snap.Safety == Armed {
		return ErrArmed
	}

	if !snap.Connected {
		return ErrNotConnected
	}

	pkt := crtp.EncodeCalibrate()
	s.platform.Urgent(pkt[:])
	s.logger.Info("calibration requested")

	return nil
}

func (s *Safety) disarm(t Transition, sendPacket bool) {
	var from SafetyState

	zero := crtp.EncodeCommander(crtp.Setpoint{})

	s.st.update(func(st *State) {
		from = st.safety
		st.safety = Disarmed
		st.axes = Axes{}
		s.platform.Reset(zero[:])
	})

	if sendPacket {
		pkt := crtp.EncodeArm(false)
		s.platform.Urgent(pkt[:])
	}

	if from == Armed {
		t.From, t.To = Armed, Disarmed
		s.logger.Info("disarmed", "reason", t.Reason.String())
		s.notify(t)
	}
}

func (s *Safety) notify(t Transition) {
	for _, f := range s.listeners {
		f(t)
	}
}
