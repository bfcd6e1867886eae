// Package logger constructs the process-wide structured logger.  The hub is
// chatty at debug level (one line per command) and quiet at info level, so
// the minimum level is a startup flag rather than a compile-time choice.
package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// New returns a *slog.Logger writing human-readable, optionally colorised
// lines to stderr.  Colour is enabled only when stderr is a terminal so
// redirected logs stay clean.
func New(level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		TimeFormat: time.TimeOnly,
		Level:      level,
	}))
}

// ParseLevel maps a -log-level flag value to a slog.Level.  Unrecognised
// values fall back to info, which is the safe default for production.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
