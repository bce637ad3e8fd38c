// Package log wires the process-wide structured logger used by the server
// acceptor, the client session and the cmd entrypoints. It gives every
// component somewhere to report FingerprintMismatch and FollowTransient
// diagnostics through scriptrpc.LogSink.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Sink adapts a zerolog.Logger to scriptrpc.LogSink's single Errorf method.
type Sink struct {
	logger zerolog.Logger
}

// New builds a Sink writing to w (os.Stderr if nil) with the given level.
// Pass console=true for human-readable output (CLI entrypoints); false for
// line-delimited JSON (server processes piped into a log collector).
func New(w io.Writer, level zerolog.Level, console bool) *Sink {
	if w == nil {
		w = os.Stderr
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(w).With().Timestamp().Str("service", "scriptrpc").Logger()
	return &Sink{logger: logger}
}

// Errorf implements scriptrpc.LogSink.
func (s *Sink) Errorf(format string, args ...interface{}) {
	s.logger.Error().Msgf(format, args...)
}

// Logger exposes the underlying zerolog.Logger for components that want
// structured fields instead of a formatted string (the cmd entrypoints'
// startup and event/command messages, for instance).
func (s *Sink) Logger() zerolog.Logger {
	return s.logger
}
