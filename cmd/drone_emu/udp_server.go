package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"flyq/pkg/crtp"
	"flyq/pkg/transport"
)

func (app *App) ResetConn() error {
	addr, err := net.ResolveUDPAddr("udp", app.listen)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}

	if old := app.conn.Swap(conn); old != nil {
		_ = old.Close()
	}

	app.logger.Info("listening", "addr", conn.LocalAddr().String(), "checksum", app.checksum)

	return nil
}

func (app *App) ListenUDP(ctx context.Context) error {
	buf := make([]byte, 1024)

	for {
		conn := app.conn.Load()
		if conn == nil {
			return ctx.Err()
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			app.logger.Error("read", "error", err)
			return err
		}

		now := time.Now()

		if old := app.addr.Swap(addr); old == nil || old.String() != addr.String() {
			app.logger.Info("new client", "addr", addr.String())
		}

		msg := append([]byte(nil), buf[:n]...)

		p, err := app.handle(msg, now)
		if err != nil {
			app.logger.Warn("bad packet", "error", err, "data", crtp.Hex(msg))
			continue
		}

		if app.rec != nil {
			if err := app.rec.Record(now, addr.String(), p, msg); err != nil {
				app.logger.Error("record", "error", err)
			}
		}
	}
}

// handle applies one datagram to the vehicle state.
func (app *App) handle(msg []byte, now time.Time) (crtp.Packet, error) {
	if app.checksum {
		var err error
		if msg, err = stripChecksum(msg); err != nil {
			app.WriteData(func(d *Data) { d.bad++ })
			return crtp.Packet{}, err
		}
	}

	p, err := crtp.Decode(msg)
	if err != nil {
		app.WriteData(func(d *Data) { d.bad++ })
		return p, err
	}

	app.WriteData(func(d *Data) {
		d.lastSeen = now
		d.packets[p.Kind]++

		switch p.Kind {
		case crtp.KindCommander:
			if !d.armed {
				if !p.Setpoint.IsZero() {
					app.logger.Debug("setpoint ignored while disarmed", "sp", p.Setpoint.String())
				}
				return
			}
			d.sp = p.Setpoint
			d.lastCmd = now
			app.logger.Debug("setpoint", "sp", p.Setpoint.String())

		case crtp.KindArm:
			if p.Arm == d.armed {
				return
			}
			d.armed = p.Arm
			d.sp = crtp.Setpoint{}
			d.lastCmd = now
			if d.armed {
				app.logger.Info("armed")
			} else {
				app.logger.Info("disarmed")
			}

		case crtp.KindCalibrate:
			if d.armed {
				app.logger.Warn("calibration refused while armed")
				return
			}
			d.calibrated++
			app.logger.Info("sensors calibrated", "count", d.calibrated)
		}
	})

	return p, nil
}

// checkFailsafe disarms an armed vehicle that has not heard a setpoint in time.
func (app *App) checkFailsafe(now time.Time) bool {
	var fired bool

	app.WriteData(func(d *Data) {
		if !d.armed || app.failsafe <= 0 || now.Sub(d.lastCmd) <= app.failsafe {
			return
		}

		d.armed = false
		d.sp = crtp.Setpoint{}
		d.failsafes++
		fired = true
	})

	if fired {
		app.logger.Warn("failsafe: no setpoint, disarmed", "timeout", app.failsafe)
	}

	return fired
}

func (app *App) Sender(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-app.ch:
			conn := app.conn.Load()
			addr := app.addr.Load()
			if conn == nil || addr == nil {
				continue
			}

			if _, err := conn.WriteToUDP(msg, addr); err != nil {
				app.logger.Debug("write", "error", err)
			}
		}
	}
}

func (app *App) Cron(ctx context.Context) {
	var n uint64

	ticker := time.NewTicker(cronInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n++
			app.checkFailsafe(now)

			if app.addr.Load() == nil {
				continue
			}

			var lastSeen time.Time
			app.ReadData(func(d *Data) { lastSeen = d.lastSeen })

			if now.Sub(lastSeen) > clientTimeout {
				app.logger.Info("remove client")
				app.addr.Store(nil)
				continue
			}

			select {
			case app.ch <- app.makeNull():
			default:
			}

			if n%25 == 0 {
				app.ReadData(func(d *Data) {
					app.logger.Info("state", "armed", d.armed, "sp", d.sp.String(), "packets", d.packets)
				})
			}
		}
	}
}

func stripChecksum(msg []byte) ([]byte, error) {
	if len(msg) < 2 {
		return nil, fmt.Errorf("packet too short for checksum: %d bytes", len(msg))
	}

	body, sum := msg[:len(msg)-1], msg[len(msg)-1]

	if want := transport.Checksum(body); want != sum {
		return nil, fmt.Errorf("invalid checksum: %.2x %.2x", want, sum)
	}

	return body, nil
}
