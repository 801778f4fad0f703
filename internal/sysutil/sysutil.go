// Package sysutil holds process-level helpers shared by the entrypoint:
// global logger configuration and small environment plumbing.
package sysutil

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global zerolog output and level. With pretty
// enabled, logs go through the human-readable console writer; otherwise JSON
// on stderr.
func SetupLogger(level string, pretty bool) {
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
	SetLogLevel(level)
}

// SetLogLevel sets the global zerolog level from a string value. Supported
// values (case-insensitive): debug, info, warn, error, fatal, panic.
// Unrecognized values fall back to info.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
