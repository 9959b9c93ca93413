// Package testlog routes package tests through the shared test logging
// profile.
package testlog

import (
	"testing"

	"github.com/danmuck/wlctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start configures test logging and returns a logger tagged with the
// running test's name.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := log.With().Str("test", t.Name()).Logger()
	logger.Debug().Msg("testlog.start")
	return logger
}
