package control

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"flyq/pkg/crtp"
)

const (
	defaultSendTimeout = time.Second
	urgentQueueLen     = 16
)

// Sender is the part of a transport the dispatcher needs.
type Sender interface {
	Send(ctx context.Context, pkt []byte) error
}

// Dispatcher is the single goroutine that talks to the transport. Commander packets
// go through a one-slot mailbox where a newer packet replaces an unsent one; platform
// packets (arm, calibrate) are queued and always go first.
type Dispatcher struct {
	tr          Sender
	logger      *slog.Logger
	sendTimeout time.Duration
	latest      chan []byte
	urgent      chan []byte
	onFail      func(err error)

	sent       atomic.Uint64
	superseded atomic.Uint64
	failed     atomic.Uint64
}

func NewDispatcher(tr Sender, onFail func(err error)) *Dispatcher {
	return &Dispatcher{
		tr:          tr,
		logger:      slog.Default(),
		sendTimeout: defaultSendTimeout,
		latest:      make(chan []byte, 1),
		urgent:      make(chan []byte, urgentQueueLen),
		onFail:      onFail,
	}
}

func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

func (d *Dispatcher) SetSendTimeout(t time.Duration) {
	if t > 0 {
		d.sendTimeout = t
	}
}

// Offer never blocks. Only the loop goroutine calls it.
func (d *Dispatcher) Offer(pkt []byte) {
	select {
	case d.latest <- pkt:
		return
	default:
	}

	select {
	case <-d.latest:
		d.superseded.Add(1)
	default:
	}

	select {
	case d.latest <- pkt:
	default:
		d.superseded.Add(1)
	}
}

// Reset replaces whatever commander is waiting with pkt. Safety calls it on disarm so
// no stale setpoint follows the disarm packet.
func (d *Dispatcher) Reset(pkt []byte) {
	for {
		select {
		case <-d.latest:
		default:
		}

		select {
		case d.latest <- pkt:
			return
		default:
		}
	}
}

// Urgent queues a platform packet and never blocks. A full queue evicts its oldest
// packet, the newest one always gets in.
func (d *Dispatcher) Urgent(pkt []byte) {
	for {
		select {
		case d.urgent <- pkt:
			return
		default:
		}

		select {
		case old := <-d.urgent:
			d.logger.Warn("urgent queue full, oldest packet dropped", "packet", crtp.Hex(old))
		default:
		}
	}
}

// SendNow bypasses the mailbox, for the final zero packet after the loop stopped.
func (d *Dispatcher) SendNow(ctx context.Context, pkt []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	return d.send(ctx, pkt)
}

func (d *Dispatcher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case pkt := <-d.urgent:
			d.sendTimed(ctx, pkt)
			continue
		default:
		}

		select {
		case pkt := <-d.urgent:
			d.sendTimed(ctx, pkt)
		case pkt := <-d.latest:
			d.sendTimed(ctx, pkt)
		case <-ctx.Done():
			return
		}
	}
}

// Flush sends whatever platform packets are still queued, used on shutdown.
func (d *Dispatcher) Flush(ctx context.Context) {
	for {
		select {
		case pkt := <-d.urgent:
			d.sendTimed(ctx, pkt)
		default:
			return
		}
	}
}

func (d *Dispatcher) Stats() (sent, superseded, failed uint64) {
	return d.sent.Load(), d.superseded.Load(), d.failed.Load()
}

func (d *Dispatcher) sendTimed(ctx context.Context, pkt []byte) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	_ = d.send(ctx, pkt)
}

func (d *Dispatcher) send(ctx context.Context, pkt []byte) error {
	if err := d.tr.Send(ctx, pkt); err != nil {
		d.failed.Add(1)
		d.logger.Debug("send failed", "error", err)
		if d.onFail != nil {
			d.onFail(err)
		}
		return err
	}

	d.sent.Add(1)

	return nil
}
