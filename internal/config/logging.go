package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "eventops"

// NewLogger builds the process logger and installs it as log.Logger.
// Format "console" writes human readable lines; anything else writes JSON.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	logger := newLogger(cfg, os.Stdout)
	log.Logger = logger
	return logger
}

func newLogger(cfg LoggingConfig, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	level := parseLevel(cfg.Level)
	if isConsole(cfg.Format) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp().Str("service", serviceName)
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// NewSlogLogger builds the *slog.Logger handed to River, honoring the same
// level and format as NewLogger.
func NewSlogLogger(cfg LoggingConfig) *slog.Logger {
	return newSlogLogger(cfg, os.Stdout)
}

func newSlogLogger(cfg LoggingConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(parseLevel(cfg.Level))}
	var handler slog.Handler
	if isConsole(cfg.Format) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler).With("service", serviceName, "component", "jobs")
}

func parseLevel(value string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func slogLevel(level zerolog.Level) slog.Level {
	switch {
	case level <= zerolog.DebugLevel:
		return slog.LevelDebug
	case level == zerolog.InfoLevel:
		return slog.LevelInfo
	case level == zerolog.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func isConsole(format string) bool {
	return strings.EqualFold(strings.TrimSpace(format), "console")
}
