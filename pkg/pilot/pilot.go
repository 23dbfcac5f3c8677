package pilot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"flyq/pkg/config"
	"flyq/pkg/control"
	"flyq/pkg/joystick"
	"flyq/pkg/transport"
)

// Status is what a UI shows.
type Status struct {
	Safety    control.SafetyState
	Connected bool
	Axes      control.Axes
	Output    control.Output
	Trim      control.Trim
	Sent      uint64
	Failed    uint64
	Dropped   uint64
}

// Pilot is one flying session: two sticks, the safety gate, the control loop and a
// transport. Sticks only move while armed.
type Pilot struct {
	cfg    config.Config
	logger *slog.Logger

	tr       transport.Transport
	state    *control.State
	safety   *control.Safety
	dispatch *control.Dispatcher
	loop     *control.Loop
	left     *joystick.Stick
	right    *joystick.Stick

	geo        joystick.Geometry
	onBoundary func(label string)

	mx     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(p *Pilot)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pilot) {
		p.logger = logger
	}
}

// WithGeometry sizes both sticks; the default is a 1280x720 viewport.
func WithGeometry(g joystick.Geometry) Option {
	return func(p *Pilot) {
		p.geo = g
	}
}

// WithBoundaryFunc is told which stick hit the edge of its travel.
func WithBoundaryFunc(f func(label string)) Option {
	return func(p *Pilot) {
		p.onBoundary = f
	}
}

func New(cfg config.Config, tr transport.Transport, opts ...Option) (*Pilot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pilot{
		cfg:    cfg,
		logger: slog.Default(),
		tr:     tr,
		state:  control.NewState(cfg.Trim()),
		geo:    joystick.GeometryForViewport(1280, 720),
	}

	for _, o := range opts {
		o(p)
	}

	p.left = p.newStick(labelLeft, false, p.state.SetLeft)
	p.right = p.newStick(labelRight, true, p.state.SetRight)

	p.dispatch = control.NewDispatcher(tr, func(err error) {
		p.safety.LinkLost(err)
	})
	p.dispatch.SetLogger(p.logger)
	p.dispatch.SetSendTimeout(cfg.Drone.SendTimeout)

	p.safety = control.NewSafety(p.state, p.dispatch, cfg.Control.EstopCooldown)
	p.safety.SetLogger(p.logger)
	p.safety.Subscribe(p.onTransition)

	p.loop = control.NewLoop(p.state, p.dispatch,
		control.WithRate(cfg.Control.Rate),
		control.WithLimits(cfg.Limits()),
		control.WithLogger(p.logger),
	)

	tr.SetLogger(p.logger)
	tr.NotifyLost(p.safety.LinkLost)

	p.left.SetDisabled(true)
	p.right.SetDisabled(true)

	return p, nil
}

const (
	labelLeft  = "THRUST / YAW"
	labelRight = "ROLL / PITCH"
)

// the thrust/yaw stick holds its position, the roll/pitch stick springs back
func (p *Pilot) newStick(label string, autoCenter bool, move joystick.MoveFunc) *joystick.Stick {
	opts := []joystick.Option{
		joystick.WithLabel(label),
		joystick.WithAutoCenter(autoCenter),
		joystick.WithMoveFunc(move),
	}

	if f := p.onBoundary; f != nil {
		opts = append(opts, joystick.WithBoundaryFunc(func() { f(label) }))
	}

	return joystick.New(p.geo, opts...)
}

func (p *Pilot) Left() *joystick.Stick {
	return p.left
}

func (p *Pilot) Right() *joystick.Stick {
	return p.right
}

func (p *Pilot) Safety() *control.Safety {
	return p.safety
}

// Connect opens the link, then starts the dispatcher and the control loop. While
// disarmed the loop streams zero commands.
func (p *Pilot) Connect(ctx context.Context) error {
	host, port := p.cfg.Drone.Host, p.cfg.Drone.Port

	if err := p.tr.Connect(ctx, host, port); err != nil {
		p.safety.LinkLost(err)
		return fmt.Errorf("connect %s:%d: %w", host, port, err)
	}

	p.safety.LinkUp()

	p.mx.Lock()
	defer p.mx.Unlock()

	if p.cancel == nil {
		p.ctx, p.cancel = context.WithCancel(context.Background())
		p.done = make(chan struct{})

		go func(ctx context.Context, done chan struct{}) {
			defer close(done)
			p.dispatch.Run(ctx)
		}(p.ctx, p.done)
	}

	p.loop.Start(p.ctx)

	p.logger.Info("connected", "host", host, "port", port)

	return nil
}

func (p *Pilot) Arm() error {
	return p.safety.Arm()
}

func (p *Pilot) Disarm() {
	p.safety.Disarm()
}

func (p *Pilot) EmergencyStop() {
	p.safety.EmergencyStop()
}

func (p *Pilot) Calibrate() error {
	return p.safety.Calibrate()
}

func (p *Pilot) SetTrim(t control.Trim) error {
	return p.state.SetTrim(t)
}

func (p *Pilot) Status() Status {
	snap := p.state.Snapshot()
	sent, dropped, failed := p.dispatch.Stats()

	return Status{
		Safety:    snap.Safety,
		Connected: snap.Connected,
		Axes:      snap.Axes,
		Output:    p.loop.Last(),
		Trim:      snap.Trim,
		Sent:      sent,
		Failed:    failed,
		Dropped:   dropped,
	}
}

// Close disarms, stops the loop with a final zero packet and releases the transport.
// It is safe to call more than once.
func (p *Pilot) Close() error {
	p.safety.Disarm()

	p.mx.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mx.Unlock()

	// one sender at a time: the dispatcher stops before the final zero packet
	if cancel != nil {
		cancel()
		<-done
	}

	p.loop.Stop()

	if cancel != nil {
		p.dispatch.Flush(context.Background())
	}

	return p.tr.Close()
}

func (p *Pilot) onTransition(t control.Transition) {
	armed := t.To == control.Armed

	if !armed {
		p.left.Reset()
		p.right.Reset()
	}

	p.left.SetDisabled(!armed)
	p.right.SetDisabled(!armed)

	p.logger.Info("safety", "state", t.To.String(), "reason", t.Reason.String())
}
