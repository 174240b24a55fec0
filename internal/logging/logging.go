// Package logging configures the gateway's structured logger, grounded on
// OpenBuilders-giveaway-tool-backend's internal/common/logger
// (rs/zerolog, console writer, service-scoped base logger).
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the gateway's base logger. debug lowers the level to capture
// per-middleware trace detail; production deployments should leave it off.
func New(serviceName string, debug bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}
