package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"flyq/pkg/crtp"
)

const (
	cronInterval  = time.Millisecond * 200
	clientTimeout = time.Second * 3
)

type App struct {
	logger   *slog.Logger
	listen   string
	checksum bool
	failsafe time.Duration
	addr     atomic.Pointer[net.UDPAddr]
	conn     atomic.Pointer[net.UDPConn]
	ch       chan []byte
	rec      *Recorder
	data     *Data
	mx       sync.RWMutex
}

// Data is the emulated vehicle.
type Data struct {
	armed      bool
	sp         crtp.Setpoint
	lastCmd    time.Time
	lastSeen   time.Time
	calibrated int
	failsafes  int
	bad        uint64
	packets    map[crtp.Kind]uint64
}

func NewApp(listen string, checksum bool, failsafe time.Duration) *App {
	return &App{
		logger:   slog.Default(),
		listen:   listen,
		checksum: checksum,
		failsafe: failsafe,
		ch:       make(chan []byte, 10),
		data: &Data{
			packets: make(map[crtp.Kind]uint64),
		},
	}
}

func (app *App) WriteData(f func(d *Data)) {
	app.mx.Lock()
	defer app.mx.Unlock()
	f(app.data)
}

func (app *App) ReadData(f func(d *Data)) {
	app.mx.RLock()
	defer app.mx.RUnlock()
	f(app.data)
}

func (app *App) Run(ctx context.Context) error {
	if err := app.ResetConn(); err != nil {
		return err
	}

	go app.Sender(ctx)
	go app.Cron(ctx)

	go func() {
		<-ctx.Done()
		if conn := app.conn.Swap(nil); conn != nil {
			_ = conn.Close()
		}
	}()

	return app.ListenUDP(ctx)
}

func main() {
	listen := flag.String("listen", ":2390", "udp address to listen on")
	checksum := flag.Bool("checksum", false, "expect a trailing additive checksum byte")
	failsafe := flag.Duration("failsafe", time.Millisecond*500, "disarm when no setpoint arrives for this long")
	dbPath := flag.String("db", "", "record packets to this sqlite file")
	debug := flag.Bool("debug", false, "log every packet")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	app := NewApp(*listen, *checksum, *failsafe)

	if *dbPath != "" {
		rec, err := OpenRecorder(*dbPath)
		if err != nil {
			logger.Error("open recorder", "error", err)
			os.Exit(1)
		}
		defer rec.Close()

		app.rec = rec
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		logger.Error("emulator stopped", "error", err)
	}

	app.ReadData(func(d *Data) {
		logger.Info("bye", "packets", d.packets, "bad", d.bad, "failsafes", d.failsafes)
	})

	if app.rec != nil {
		if counts, err := app.rec.Counts(); err == nil {
			logger.Info("recorded", "db", *dbPath, "counts", counts)
		}
	}
}
