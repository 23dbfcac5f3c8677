package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyq/pkg/crtp"
	"flyq/pkg/transport"
)

func newTestApp(checksum bool) *App {
	return NewApp("127.0.0.1:0", checksum, time.Millisecond*500)
}

func (app *App) armed() bool {
	var res bool
	app.ReadData(func(d *Data) { res = d.armed })
	return res
}

func (app *App) setpoint() crtp.Setpoint {
	var res crtp.Setpoint
	app.ReadData(func(d *Data) { res = d.sp })
	return res
}

func TestHandleArmAndSetpoint(t *testing.T) {
	app := newTestApp(false)
	now := time.Now()

	sp := crtp.Setpoint{Roll: 5, Pitch: -3, Yaw: 20, Thrust: 30000}
	cmd := crtp.EncodeCommander(sp)

	// ignored while disarmed
	_, err := app.handle(cmd[:], now)
	require.NoError(t, err)
	assert.True(t, app.setpoint().IsZero())

	arm := crtp.EncodeArm(true)
	p, err := app.handle(arm[:], now)
	require.NoError(t, err)
	assert.Equal(t, crtp.KindArm, p.Kind)
	assert.True(t, app.armed())

	_, err = app.handle(cmd[:], now)
	require.NoError(t, err)
	assert.Equal(t, sp, app.setpoint())

	disarm := crtp.EncodeArm(false)
	_, err = app.handle(disarm[:], now)
	require.NoError(t, err)
	assert.False(t, app.armed())
	assert.True(t, app.setpoint().IsZero())
}

func TestHandleBadPackets(t *testing.T) {
	app := newTestApp(false)

	_, err := app.handle([]byte{0x30, 0x00}, time.Now())
	assert.Error(t, err)

	_, err = app.handle([]byte{0x55, 0x01}, time.Now())
	assert.Error(t, err)

	app.ReadData(func(d *Data) {
		assert.Equal(t, uint64(2), d.bad)
	})
}

func TestHandleChecksum(t *testing.T) {
	app := newTestApp(true)

	arm := crtp.EncodeArm(true)
	framed := append(arm[:], transport.Checksum(arm[:]))

	_, err := app.handle(framed, time.Now())
	require.NoError(t, err)
	assert.True(t, app.armed())

	framed[len(framed)-1]++
	_, err = app.handle(framed, time.Now())
	assert.ErrorContains(t, err, "invalid checksum")

	_, err = app.handle([]byte{0xff}, time.Now())
	assert.Error(t, err)

	assert.Equal(t, []byte{0xff, 0xff}, app.makeNull())
	assert.Equal(t, []byte{0xff}, newTestApp(false).makeNull())
}

func TestCalibrateOnlyWhenDisarmed(t *testing.T) {
	app := newTestApp(false)
	now := time.Now()

	cal := crtp.EncodeCalibrate()
	_, err := app.handle(cal[:], now)
	require.NoError(t, err)

	arm := crtp.EncodeArm(true)
	_, err = app.handle(arm[:], now)
	require.NoError(t, err)

	_, err = app.handle(cal[:], now)
	require.NoError(t, err)

	app.ReadData(func(d *Data) {
		assert.Equal(t, 1, d.calibrated)
		assert.Equal(t, uint64(2), d.packets[crtp.KindCalibrate])
	})
}

func TestFailsafe(t *testing.T) {
	app := newTestApp(false)
	now := time.Now()

	assert.False(t, app.checkFailsafe(now.Add(time.Hour)))

	arm := crtp.EncodeArm(true)
	_, err := app.handle(arm[:], now)
	require.NoError(t, err)

	cmd := crtp.EncodeCommander(crtp.Setpoint{Thrust: 1000})
	_, err = app.handle(cmd[:], now.Add(time.Millisecond*400))
	require.NoError(t, err)

	assert.False(t, app.checkFailsafe(now.Add(time.Millisecond*800)))
	assert.True(t, app.armed())

	assert.True(t, app.checkFailsafe(now.Add(time.Millisecond*901)))
	assert.False(t, app.armed())
	assert.True(t, app.setpoint().IsZero())

	assert.False(t, app.checkFailsafe(now.Add(time.Second*2)))

	app.ReadData(func(d *Data) {
		assert.Equal(t, 1, d.failsafes)
	})
}
