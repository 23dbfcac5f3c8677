package main

import (
	"math"
	"strings"
	"sync"
	"time"

	"flyq/pkg/joystick"
)

const (
	stepsPerTravel = 10
	releaseAfter   = time.Millisecond * 350
)

// keyStick drives a stick from key presses. A terminal never reports key release, so
// an auto-centering stick is released when its keys go quiet.
type keyStick struct {
	mx     sync.Mutex
	stick  *joystick.Stick
	dx, dy float64
	timer  *time.Timer
	quiet  time.Duration
}

func newKeyStick(s *joystick.Stick, quiet time.Duration) *keyStick {
	return &keyStick{stick: s, quiet: quiet}
}

func (k *keyStick) step() float64 {
	return k.stick.Geometry().MaxTravel() / stepsPerTravel
}

// nudge moves the knob by whole steps; positive sy is up.
func (k *keyStick) nudge(sx, sy int) {
	k.mx.Lock()
	defer k.mx.Unlock()

	if k.stick.Disabled() {
		return
	}

	if !k.stick.Active() {
		// a forced disarm recenters the stick behind our back
		if x, y := k.stick.Position(); x == 0 && y == 0 {
			k.dx, k.dy = 0, 0
		}
		k.stick.Press()
	}

	st := k.step()
	x, y, _ := k.stick.Geometry().Constrain(k.dx+float64(sx)*st, k.dy-float64(sy)*st)
	k.dx, k.dy = x, y

	k.stick.Drag(k.dx, k.dy)

	if k.quiet > 0 {
		if k.timer == nil {
			k.timer = time.AfterFunc(k.quiet, k.release)
		} else {
			k.timer.Reset(k.quiet)
		}
	}
}

func (k *keyStick) release() {
	k.mx.Lock()
	defer k.mx.Unlock()

	k.stick.Release()
	k.dx, k.dy = 0, 0
}

// center brings the knob home, also for sticks that hold their position.
func (k *keyStick) center() {
	k.mx.Lock()
	defer k.mx.Unlock()

	if k.timer != nil {
		k.timer.Stop()
	}

	k.dx, k.dy = 0, 0

	if k.stick.Disabled() {
		return
	}

	k.stick.Press()
	k.stick.Drag(0, 0)
	k.stick.Release()
}

// drawStick renders a size x size box with the knob at stick position (x, y).
func drawStick(x, y float64, size int) []string {
	if size < 3 {
		size = 3
	}

	half := float64(size-1) / 2
	col := int(math.Round(half + x/100*half))
	row := int(math.Round(half - y/100*half))
	mid := size / 2

	lines := make([]string, size)
	for r := 0; r < size; r++ {
		var b strings.Builder
		for c := 0; c < size; c++ {
			switch {
			case r == row && c == col:
				b.WriteRune('O')
			case r == mid && c == mid:
				b.WriteRune('+')
			case r == mid || c == mid:
				b.WriteRune('.')
			default:
				b.WriteRune(' ')
			}
		}
		lines[r] = b.String()
	}

	return lines
}
