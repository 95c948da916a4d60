// Package logging builds the zerolog logger that is handed to every client.
// There is no package-level logger; callers construct one at start-up and
// pass it down.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel overrides the configured log level when set
const EnvLogLevel = "GOELASTIX_LOG_LEVEL"

// New returns a logger writing to w at the given level.
// With console set, output is human-readable instead of JSON lines.
func New(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", "goelastix").Logger()
}

// ParseLevel maps a level name to a zerolog level.
// The second return value is false for names it does not recognise.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
