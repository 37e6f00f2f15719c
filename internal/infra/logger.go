package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging contract shared by every package in the service.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development gets a console writer and
// debug level; everything else emits JSON at info level.
func NewLogger(appEnv string) Logger {
	return newLogger(os.Stdout, appEnv)
}

func newLogger(w io.Writer, appEnv string) Logger {
	level := zerolog.InfoLevel
	out := w
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "studio").
		Logger()
}

// DiscardLogger returns a logger that drops every event. Constructors use it
// when callers pass no logger.
func DiscardLogger() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// Component derives a child logger tagged with the component name.
func Component(base *Logger, name string) *Logger {
	if base == nil {
		return DiscardLogger()
	}
	l := base.With().Str("component", name).Logger()
	return &l
}
