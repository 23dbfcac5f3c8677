package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const defaultWriteTimeout = time.Second

// UDP talks to the vehicle directly, one datagram per packet.
type UDP struct {
	lostNotifier

	conn         atomic.Pointer[net.UDPConn]
	logger       *slog.Logger
	checksum     bool
	linkTimeout  time.Duration
	writeTimeout time.Duration

	mx         sync.Mutex
	lastData   time.Time
	closeTimer *time.Timer
	timedOut   bool
	received   atomic.Uint64
	sent       atomic.Uint64
}

type UDPOption func(u *UDP)

// WithChecksum appends the one-byte additive checksum ESP-drone firmware expects.
func WithChecksum(v bool) UDPOption {
	return func(u *UDP) {
		u.checksum = v
	}
}

// WithLinkTimeout reports the link lost when nothing arrives for d. Zero disables it.
func WithLinkTimeout(d time.Duration) UDPOption {
	return func(u *UDP) {
		u.linkTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) UDPOption {
	return func(u *UDP) {
		u.writeTimeout = d
	}
}

func NewUDP(opts ...UDPOption) *UDP {
	u := &UDP{
		logger:       slog.Default(),
		writeTimeout: defaultWriteTimeout,
	}

	for _, o := range opts {
		o(u)
	}

	return u
}

func (u *UDP) SetLogger(logger *slog.Logger) {
	u.logger = logger
}

func (u *UDP) Connect(ctx context.Context, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var d net.Dialer
	c, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	conn := c.(*net.UDPConn)

	if old := u.conn.Swap(conn); old != nil {
		_ = old.Close()
	}

	u.mx.Lock()
	u.timedOut = false
	u.mx.Unlock()

	go u.reader(conn)
	u.setActivity(false)

	u.logger.Info("udp link up", "addr", addr, "checksum", u.checksum)

	return nil
}

func (u *UDP) Send(ctx context.Context, pkt []byte) error {
	conn := u.conn.Load()
	if conn == nil {
		return ErrNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(u.writeTimeout)
	}

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	if _, err := conn.Write(u.frame(pkt)); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrNotConnected
		}
		u.lost(err)
		return fmt.Errorf("udp write: %w", err)
	}

	u.sent.Add(1)

	return nil
}

func (u *UDP) Close() error {
	u.mx.Lock()
	if u.closeTimer != nil {
		u.closeTimer.Stop()
		u.closeTimer = nil
	}
	u.mx.Unlock()

	if conn := u.conn.Swap(nil); conn != nil {
		return conn.Close()
	}

	return nil
}

func (u *UDP) Stats() (sent, received uint64) {
	return u.sent.Load(), u.received.Load()
}

func (u *UDP) frame(pkt []byte) []byte {
	if !u.checksum {
		return pkt
	}

	res := make([]byte, len(pkt)+1)
	copy(res, pkt)
	res[len(pkt)] = Checksum(pkt)

	return res
}

// Checksum is the low byte of the sum of all packet bytes.
func Checksum(pkt []byte) byte {
	var sum byte
	for _, c := range pkt {
		sum += c
	}
	return sum
}

func (u *UDP) reader(conn *net.UDPConn) {
	buf := make([]byte, 1024)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || u.conn.Load() != conn {
				return
			}
			u.logger.Debug("udp read", "error", err)
			continue
		}

		if n > 0 {
			u.received.Add(1)
			u.setActivity(true)
		}
	}
}

func (u *UDP) setActivity(withMsg bool) {
	if u.linkTimeout <= 0 {
		return
	}

	u.mx.Lock()
	defer u.mx.Unlock()

	if withMsg {
		u.lastData = time.Now()
		u.timedOut = false
	} else if u.lastData.IsZero() {
		u.lastData = time.Now()
	}

	if u.closeTimer == nil {
		u.closeTimer = time.AfterFunc(u.linkTimeout, u.closeIdle)
	} else {
		u.closeTimer.Reset(u.linkTimeout)
	}
}

func (u *UDP) closeIdle() {
	u.mx.Lock()
	idle := time.Since(u.lastData)
	fire := idle >= u.linkTimeout && !u.timedOut && u.conn.Load() != nil
	if fire {
		u.timedOut = true
	}
	u.mx.Unlock()

	if fire {
		u.logger.Warn("no data from vehicle", "idle", idle)
		u.lost(ErrLinkTimeout)
	}
}
