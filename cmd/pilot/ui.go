package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jroimartin/gocui"

	"flyq/pkg/control"
	"flyq/pkg/pilot"
)

const trimStep = 1.0

type KeyBind struct {
	viewname string
	key      interface{}
	mod      gocui.Modifier
	handler  func(*gocui.Gui, *gocui.View) error
}

func (app *App) bindings() error {
	bindings := []KeyBind{
		{"", gocui.KeyCtrlC, gocui.ModNone, app.quit},
		{"", 'q', gocui.ModNone, app.quit},

		{"", 'w', gocui.ModNone, app.moveLeft(0, 1)},
		{"", 's', gocui.ModNone, app.moveLeft(0, -1)},
		{"", 'a', gocui.ModNone, app.moveLeft(-1, 0)},
		{"", 'd', gocui.ModNone, app.moveLeft(1, 0)},
		{"", gocui.KeyArrowUp, gocui.ModNone, app.moveRight(0, 1)},
		{"", gocui.KeyArrowDown, gocui.ModNone, app.moveRight(0, -1)},
		{"", gocui.KeyArrowLeft, gocui.ModNone, app.moveRight(-1, 0)},
		{"", gocui.KeyArrowRight, gocui.ModNone, app.moveRight(1, 0)},
		{"", 'c', gocui.ModNone, app.center},

		{"", 'r', gocui.ModNone, app.requestArm},
		{"", 'y', gocui.ModNone, app.confirmArm},
		{"", 'f', gocui.ModNone, app.disarm},
		{"", gocui.KeySpace, gocui.ModNone, app.estop},
		{"", 'k', gocui.ModNone, app.calibrate},
		{"", 'n', gocui.ModNone, app.reconnect},

		{"", '[', gocui.ModNone, app.trim(-trimStep, 0)},
		{"", ']', gocui.ModNone, app.trim(trimStep, 0)},
		{"", '-', gocui.ModNone, app.trim(0, -trimStep)},
		{"", '=', gocui.ModNone, app.trim(0, trimStep)},
	}

	for _, b := range bindings {
		if err := app.g.SetKeybinding(b.viewname, b.key, b.mod, b.handler); err != nil {
			return err
		}
	}

	return nil
}

type pane struct {
	name           string
	title          string
	x0, y0, x1, y1 int
}

func (app *App) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	views := []pane{
		{"status", "status", 0, 0, maxX/2 - 1, maxY / 2},
		{"sticks", "sticks", 0, maxY/2 + 1, maxX/2 - 1, maxY - 1},
		{"log", "log", maxX / 2, 0, maxX - 1, maxY - 1},
	}

	if app.cfg.Debug {
		views[2].y1 = maxY*2/3 - 1
		views = append(views, pane{"debug", "packets", maxX / 2, maxY * 2 / 3, maxX - 1, maxY - 1})
	}

	for _, vv := range views {
		if v, err := g.SetView(vv.name, vv.x0, vv.y0, vv.x1, vv.y1); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Frame = true
			v.Title = vv.title
		}
	}

	return nil
}

func (app *App) redraw() {
	st := app.pilot.Status()

	app.g.Update(func(gui *gocui.Gui) error {
		if v, err := gui.View("status"); err == nil {
			v.Clear()
			fmt.Fprintf(v, "%s  %s\n", formatSafety(st), formatLink(st.Connected))
			fmt.Fprintf(v, "%s\n\n", app.info.getString("status"))
			fmt.Fprintf(v, "thrust: %6.1f%%  yaw: %s\n", st.Output.Thrust, formatAxis(st.Output.Yaw))
			fmt.Fprintf(v, "roll:  %s  pitch: %s\n", formatAxis(st.Output.Roll), formatAxis(st.Output.Pitch))
			fmt.Fprintf(v, "trim roll %+.0f pitch %+.0f  sens %.0f%%\n\n", st.Trim.Roll, st.Trim.Pitch, st.Trim.Sensitivity)
			fmt.Fprintf(v, "sent: %d dropped: %d failed: %d\n", st.Sent, st.Dropped, st.Failed)

			if app.armPending() {
				fmt.Fprintln(v, WithColors("press y to ARM", Bold, FgYellow))
			}
		}

		if v, err := gui.View("sticks"); err == nil {
			v.Clear()
			app.drawSticks(v, st)
		}

		if v, err := gui.View("log"); err == nil {
			v.Clear()
			_, size := v.Size()
			for _, l := range app.lines.GetLines(size) {
				fmt.Fprintln(v, l)
			}
		}

		if v, err := gui.View("debug"); err == nil {
			v.Clear()
			for _, k := range []string{"commander", "arm", "calibrate"} {
				fmt.Fprintf(v, "%-10s %s\n", k, app.info.getString("pkt_"+k))
			}
		}

		return nil
	})
}

func (app *App) drawSticks(v *gocui.View, st pilot.Status) {
	_, h := v.Size()

	size := h - 3
	if size > 15 {
		size = 15
	}

	left := drawStick(st.Axes.LeftX, st.Axes.LeftY, size)
	right := drawStick(st.Axes.RightX, st.Axes.RightY, size)

	label := func(name string) string {
		if app.info.getString("edge") == name && time.Since(app.info.getTime("edge_at")) < time.Millisecond*300 {
			return WithColors(fmt.Sprintf("%-*s", size+4, name), FgRed)
		}
		return fmt.Sprintf("%-*s", size+4, name)
	}

	fmt.Fprintf(v, "%s%s\n", label(app.pilot.Left().Label()), label(app.pilot.Right().Label()))

	for i := range left {
		fmt.Fprintf(v, "%s    %s\n", left[i], right[i])
	}

	fmt.Fprintf(v, "%+4.0f %+4.0f  %+4.0f %+4.0f\n",
		st.Axes.LeftX, st.Axes.LeftY, st.Axes.RightX, st.Axes.RightY)
}

func formatSafety(st pilot.Status) string {
	if st.Safety == control.Armed {
		return WithColors(st.Safety.String(), Bold, FgRed)
	}
	return WithColors(st.Safety.String(), FgGreen)
}

func formatLink(ok bool) string {
	if ok {
		return WithColors("LINK", FgGreen)
	}
	return WithColors("NO LINK", Bold, FgYellow)
}

func formatAxis(v float64) string {
	s := fmt.Sprintf("%6.1f", v)
	if v > -5 && v < 5 {
		return WithColors(s, FgGreen)
	}

	if v > -50 && v < 50 {
		return WithColors(s, FgYellow)
	}

	return WithColors(s, Bold, FgRed)
}

func (app *App) quit(g *gocui.Gui, v *gocui.View) error {
	if err := app.pilot.Close(); err != nil {
		app.logger.Warn("close", "error", err)
	}

	if app.cancel != nil {
		app.cancel()
	}

	return gocui.ErrQuit
}

func (app *App) moveLeft(sx, sy int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		app.left.nudge(sx, sy)
		return nil
	}
}

func (app *App) moveRight(sx, sy int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		app.right.nudge(sx, sy)
		return nil
	}
}

func (app *App) center(g *gocui.Gui, v *gocui.View) error {
	app.left.center()
	app.right.center()
	return nil
}

func (app *App) armPending() bool {
	at := app.info.getTime("arm_pending")
	return !at.IsZero() && time.Since(at) < armConfirmWindow
}

func (app *App) requestArm(g *gocui.Gui, v *gocui.View) error {
	if app.pilot.Status().Safety == control.Armed {
		return nil
	}

	app.info.put("arm_pending", time.Now())
	app.logger.Info("arm requested, press y to confirm")

	return nil
}

func (app *App) confirmArm(g *gocui.Gui, v *gocui.View) error {
	if !app.armPending() {
		return nil
	}

	app.info.remove("arm_pending")

	if err := app.pilot.Arm(); err != nil {
		switch {
		case errors.Is(err, control.ErrCooldown):
			app.info.put("status", "emergency stop cooldown")
		case errors.Is(err, control.ErrNotConnected):
			app.info.put("status", "not connected, n to connect")
		default:
			app.info.put("status", err.Error())
		}
		return nil
	}

	app.info.put("status", "armed")

	return nil
}

func (app *App) disarm(g *gocui.Gui, v *gocui.View) error {
	app.info.remove("arm_pending")
	app.pilot.Disarm()
	app.info.put("status", "disarmed")
	return nil
}

func (app *App) estop(g *gocui.Gui, v *gocui.View) error {
	app.info.remove("arm_pending")
	app.pilot.EmergencyStop()
	app.info.put("status", WithColors("EMERGENCY STOP", Bold, FgRed))
	return nil
}

func (app *App) calibrate(g *gocui.Gui, v *gocui.View) error {
	if err := app.pilot.Calibrate(); err != nil {
		app.info.put("status", "calibrate: "+err.Error())
		return nil
	}

	app.info.put("status", "calibrating, keep level")

	return nil
}

func (app *App) reconnect(g *gocui.Gui, v *gocui.View) error {
	if app.pilot.Status().Connected {
		return nil
	}

	go app.connect()

	return nil
}

func (app *App) trim(roll, pitch float64) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		t := app.pilot.Status().Trim
		t.Roll += roll
		t.Pitch += pitch

		if err := app.pilot.SetTrim(t); err != nil {
			app.logger.Warn("trim", "error", err)
		}

		return nil
	}
}
