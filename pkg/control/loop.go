package control

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"flyq/pkg/crtp"
)

const DefaultRate = 50 // Hz

// Output is the command actually flown, in percent, after sensitivity and trim.
type Output struct {
	Thrust float64
	Yaw    float64
	Roll   float64
	Pitch  float64
}

// Mailbox is where the loop drops each tick's packet.
type Mailbox interface {
	Offer(pkt []byte)
	SendNow(ctx context.Context, pkt []byte) error
}

type Limits struct {
	MaxAngle   float64
	MaxYawRate float64
}

func DefaultLimits() Limits {
	return Limits{MaxAngle: crtp.MaxAngle, MaxYawRate: crtp.MaxYawRate}
}

// Mix applies the arm gate, sensitivity and trim to one snapshot.
func Mix(snap Snapshot) Output {
	if snap.Safety != Armed {
		return Output{}
	}

	k := snap.Trim.Sensitivity / 100
	a := snap.Axes

	return Output{
		Roll:   crtp.ClampPercent(a.RightX*k + snap.Trim.Roll),
		Pitch:  crtp.ClampPercent(a.RightY*k + snap.Trim.Pitch),
		Yaw:    crtp.ClampPercent(a.LeftX * k),
		Thrust: math.Max(0, crtp.ClampPercent(a.LeftY)),
	}
}

func (l Limits) Setpoint(o Output) crtp.Setpoint {
	return crtp.NewCommanderBuilder().
		WithLimits(l.MaxAngle, l.MaxYawRate).
		Roll(o.Roll).
		Pitch(o.Pitch).
		Yaw(o.Yaw).
		Thrust(o.Thrust).
		Setpoint()
}

// Loop samples the state at a fixed rate and hands one commander packet per tick to
// the mailbox. Ticks never overlap: they all run on the loop goroutine.
type Loop struct {
	state  Reader
	out    Mailbox
	limits Limits
	period time.Duration
	logger *slog.Logger

	mx     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   Output
	ticks  uint64
}

type LoopOption func(l *Loop)

func WithRate(hz float64) LoopOption {
	return func(l *Loop) {
		if hz > 0 {
			l.period = time.Duration(float64(time.Second) / hz)
		}
	}
}

func WithLimits(lim Limits) LoopOption {
	return func(l *Loop) {
		l.limits = lim
	}
}

func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

func NewLoop(state Reader, out Mailbox, opts ...LoopOption) *Loop {
	l := &Loop{
		state:  state,
		out:    out,
		limits: DefaultLimits(),
		period: time.Second / DefaultRate,
		logger: slog.Default(),
	}

	for _, o := range opts {
		o(l)
	}

	return l
}

func (l *Loop) Period() time.Duration {
	return l.period
}

func (l *Loop) Running() bool {
	l.mx.Lock()
	defer l.mx.Unlock()

	return l.cancel != nil
}

// Start is a no-op when the loop is already running.
func (l *Loop) Start(ctx context.Context) {
	l.mx.Lock()
	defer l.mx.Unlock()

	if l.cancel != nil {
		return
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go l.run(ctx, l.done)

	l.logger.Info("control loop started", "period", l.period)
}

// Stop cancels the ticker, waits for the last tick and sends one zero commander.
// It is a no-op when the loop is not running.
func (l *Loop) Stop() {
	l.mx.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mx.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	zero := crtp.EncodeCommander(crtp.Setpoint{})
	if err := l.out.SendNow(context.Background(), zero[:]); err != nil {
		l.logger.Warn("final zero packet", "error", err)
	}

	l.mx.Lock()
	l.last = Output{}
	l.mx.Unlock()

	l.logger.Info("control loop stopped")
}

// Last is the output of the most recent tick.
func (l *Loop) Last() Output {
	l.mx.Lock()
	defer l.mx.Unlock()

	return l.last
}

func (l *Loop) Ticks() uint64 {
	l.mx.Lock()
	defer l.mx.Unlock()

	return l.ticks
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	periodical(ctx, l.period, l.tick)
}

func periodical(ctx context.Context, t time.Duration, f func()) {
	ticker := time.NewTicker(t)
	defer ticker.Stop()

	for ctx.Err() == nil {
		select {
		case <-ticker.C:
			f()
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loop) tick() {
	var out Output

	// Offer under the view: a disarm either sees this packet in the mailbox and
	// replaces it, or happens before the snapshot.
	l.state.View(func(snap Snapshot) {
		out = Mix(snap)
		pkt := crtp.EncodeCommander(l.limits.Setpoint(out))
		l.out.Offer(pkt[:])
	})

	l.mx.Lock()
	l.last = out
	l.ticks++
	l.mx.Unlock()
}
