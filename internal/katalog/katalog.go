// Package katalog wraps zerolog with katadb-specific conventions: one
// process-wide logger carrying a "service" field, and per-component child
// loggers handed to the core so each package logs through an injected
// zerolog.Logger rather than a package global.
package katalog

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the process-wide logger.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console-writer formatting for interactive use
}

// Init builds the base logger for the process. main wires --log-level and
// --log-pretty into this before constructing the dispatcher.
func Init(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var output zerolog.ConsoleWriter
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Str("service", "katadb").Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Str("service", "katadb").Logger()
}

// For returns a child logger tagged with the named component, the way the
// core's btree/pager/wal/dispatcher layers each get their own tag.
func For(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
