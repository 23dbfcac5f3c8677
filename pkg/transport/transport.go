package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

const (
	DefaultHost = "192.168.4.1"
	DefaultPort = 2390
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrLinkTimeout  = errors.New("no data from vehicle")
)

// Transport delivers encoded packets to the vehicle. It owns framing, sockets and any
// retry policy; a nil error means the packet left this host.
type Transport interface {
	Connect(ctx context.Context, host string, port int) error
	Send(ctx context.Context, pkt []byte) error
	Close() error
	// NotifyLost registers a callback fired when the transport decides the link is gone.
	NotifyLost(f func(err error))
	SetLogger(logger *slog.Logger)
}

type lostNotifier struct {
	f atomic.Pointer[func(err error)]
}

func (n *lostNotifier) NotifyLost(f func(err error)) {
	n.f.Store(&f)
}

func (n *lostNotifier) lost(err error) {
	if f := n.f.Load(); f != nil && *f != nil {
		(*f)(err)
	}
}
