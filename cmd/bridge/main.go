package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"flyq/pkg/bridge"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8001"
	}

	listen := flag.String("listen", net.JoinHostPort("0.0.0.0", port), "http address to listen on")
	debug := flag.Bool("debug", false, "log every request")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv := bridge.New(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = srv.Shutdown()
	}()

	if err := srv.Listen(*listen); err != nil {
		logger.Error("bridge stopped", "error", err)
		os.Exit(1)
	}
}
