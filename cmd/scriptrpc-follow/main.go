// Command scriptrpc-follow drives a client session against a running
// scriptrpc server: sends ready, then polls events in the background and
// logs each one. It is a thin wiring harness, not a general-purpose
// script host front end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/scriptrpc/scriptrpc"
	"github.com/scriptrpc/scriptrpc/config"
	slog "github.com/scriptrpc/scriptrpc/log"
	"github.com/scriptrpc/scriptrpc/preload"
	"github.com/scriptrpc/scriptrpc/session"
	"github.com/scriptrpc/scriptrpc/transport/client"
)

type loggingEventSink struct {
	logger *slog.Sink
}

func (s loggingEventSink) HandleEvent(e scriptrpc.Event) {
	s.logger.Logger().Info().Uint64("seq", e.Seq).Str("type", e.Type).Msg("event received")
}

type loggingCommandSink struct {
	logger *slog.Sink
}

func (s loggingCommandSink) HandleCommands(label string, commands []json.RawMessage) {
	s.logger.Logger().Info().Str("label", label).Int("count", len(commands)).Msg("commands received")
}

// staticResolver resolves every entry key to itself, for the harness's own
// entry script content rather than a file on disk.
type staticResolver struct{}

func (staticResolver) Resolve(_ context.Context, entryKey string) (string, error) {
	return entryKey, nil
}

func main() {
	configPath := flag.String("config", "", "path to scriptrpc.toml (optional)")
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

	rpcClient := client.New(cfg.Client.ServerAddr)
	builder := preload.New(staticResolver{}, nil)

	sess := session.New(rpcClient, cfg.Client.EntryKey, builder)
	sess.Logger = logger
	sess.VerifyFingerprints = cfg.Client.VerifyFingerprints
	sess.EventSink = loggingEventSink{logger: logger}
	sess.CommandSink = loggingCommandSink{logger: logger}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Ready(ctx, nil); err != nil {
		logger.Errorf("ready: %v", err)
		os.Exit(1)
	}

	follower := session.NewFollower(sess)
	follower.StartFollow(cfg.Client.FollowIntervalMs)
	defer follower.StopFollow()

	<-ctx.Done()
}
