// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log event.
const ServiceName = "estimate-engine"

// Init configures the global logger: human-readable console output in
// development, JSON with timestamp and caller otherwise. Unknown levels
// fall back to info.
func Init(env, level string) {
	InitWriter(os.Stdout, env, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}).With().
			Str("service", ServiceName).
			Logger()
		return
	}

	log.Logger = zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Str("service", ServiceName).
		Logger()
}
