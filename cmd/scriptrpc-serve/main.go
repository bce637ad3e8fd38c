// Command scriptrpc-serve runs the acceptor (C9) and dispatcher (C7) over
// the built-in in-memory event bus (C8) and a deterministic fallback
// engine. Argument parsing is intentionally minimal; a full CLI front end
// is an external concern.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/scriptrpc/scriptrpc/config"
	"github.com/scriptrpc/scriptrpc/eventbus"
	slog "github.com/scriptrpc/scriptrpc/log"
	"github.com/scriptrpc/scriptrpc/scriptengine"
	"github.com/scriptrpc/scriptrpc/transport/server"
	"github.com/scriptrpc/scriptrpc/transport/server/httpdebug"
)

func main() {
	configPath := flag.String("config", "", "path to scriptrpc.toml (optional)")
	debugAddr := flag.String("debug-addr", "", "optional debug HTTP listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := slog.New(os.Stderr, level, cfg.Log.Console)

	bus := eventbus.New(cfg.Server.MaxEventsKept)
	engine := scriptengine.NewDefault()
	dispatcher := server.NewDispatcher(engine, bus, logger)
	acceptor := server.NewAcceptor(cfg.Server.ListenAddr, cfg.Server.WorkerPool, dispatcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugAddr != "" {
		debugServer := httpdebug.New(*debugAddr, bus, 16)
		go func() {
			if err := debugServer.ListenAndServe(ctx); err != nil {
				logger.Errorf("debug server: %v", err)
			}
		}()
	}

	logger.Logger().Info().Str("addr", cfg.Server.ListenAddr).Msg("scriptrpc server starting")
	if err := acceptor.ListenAndServe(ctx); err != nil {
		logger.Errorf("acceptor: %v", err)
		os.Exit(1)
	}
}
