package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jroimartin/gocui"

	"flyq/pkg/config"
	"flyq/pkg/joystick"
	"flyq/pkg/pilot"
	"flyq/pkg/transport"
)

const (
	armConfirmWindow = time.Second * 3
	connectTimeout   = time.Second * 5
	redrawInterval   = time.Millisecond * 100
)

type App struct {
	g *gocui.Gui

	ctx    context.Context
	cancel context.CancelFunc

	cfg    config.Config
	info   *Info
	lines  *Logger
	logger *slog.Logger
	pilot  *pilot.Pilot
	left   *keyStick
	right  *keyStick
}

func NewApp(cfg config.Config, logw io.Writer) (*App, error) {
	app := &App{
		cfg:   cfg,
		info:  new(Info),
		lines: NewLogger(200),
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = app.lines
	if logw != nil {
		w = io.MultiWriter(app.lines, logw)
	}

	app.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

	tr := &tap{Transport: newTransport(cfg), info: app.info}

	p, err := pilot.New(cfg, tr,
		pilot.WithLogger(app.logger),
		pilot.WithGeometry(joystick.Geometry{Radius: 20, StickRadius: 7}),
		pilot.WithBoundaryFunc(app.edge),
	)
	if err != nil {
		return nil, err
	}

	app.pilot = p
	app.left = newKeyStick(p.Left(), 0)
	app.right = newKeyStick(p.Right(), releaseAfter)

	return app, nil
}

func newTransport(cfg config.Config) transport.Transport {
	if cfg.Drone.Transport == config.TransportBridge {
		return transport.NewBridge(cfg.Drone.BridgeURL)
	}

	return transport.NewUDP(
		transport.WithChecksum(cfg.Drone.Checksum),
		transport.WithLinkTimeout(cfg.Drone.LinkTimeout),
	)
}

func (app *App) connect() {
	ctx, cancel := context.WithTimeout(app.ctx, connectTimeout)
	defer cancel()

	app.info.put("status", "connecting")

	if err := app.pilot.Connect(ctx); err != nil {
		app.logger.Error("connect failed", "error", err)
		app.info.put("status", "connect failed, n to retry")
		return
	}

	app.info.put("status", "link up")
}

func (app *App) edge(label string) {
	app.info.put("edge", label)
	app.info.put("edge_at", time.Now())
	app.logger.Debug("stick at edge", "stick", label)
}

func (app *App) Run() {
	var err error

	app.g, err = gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Panicln(err)
	}
	defer app.g.Close()

	app.g.SetManagerFunc(app.layout)

	if err := app.bindings(); err != nil {
		log.Panicln(err)
	}

	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.lines.SetCallback(app.redraw)

	go app.connect()
	go periodical(app.ctx, redrawInterval, app.redraw)

	if err := app.g.MainLoop(); err != nil && err != gocui.ErrQuit {
		log.Panicln(err)
	}
}

func periodical(ctx context.Context, t time.Duration, f func()) {
	ticker := time.NewTicker(t)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f()
		}
	}
}

func main() {
	cfgPath := flag.String("config", "flyq.yaml", "config file")
	host := flag.String("host", "", "vehicle address, overrides config")
	port := flag.Int("port", 0, "vehicle udp port, overrides config")
	tr := flag.String("transport", "", "udp or bridge, overrides config")
	bridgeURL := flag.String("bridge", "", "bridge url, overrides config")
	debug := flag.Bool("debug", false, "show packets and debug logs")
	logFile := flag.Bool("logfile", false, "also write the log to a file")
	writeConfig := flag.Bool("write-config", false, "write the effective config and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *host != "" {
		cfg.Drone.Host = *host
	}
	if *port != 0 {
		cfg.Drone.Port = *port
	}
	if *tr != "" {
		cfg.Drone.Transport = *tr
	}
	if *bridgeURL != "" {
		cfg.Drone.BridgeURL = *bridgeURL
	}
	if *debug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *writeConfig {
		if err := cfg.Save(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	var logw io.Writer
	if *logFile {
		f, err := os.Create(time.Now().Format("flyq_20060102_150405.log"))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()

		logw = f
	}

	app, err := NewApp(cfg, logw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app.Run()
}
