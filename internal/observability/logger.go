package observability

import (
	"os"

	"github.com/danmuck/wlctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the runtime console logger as the global logger.
// Every record carries app, and node when it is set.
func InitLogger(app, node string) zerolog.Logger {
	logger := ServiceLogger(logging.Resolve(logging.ProfileRuntime, os.Getenv), app, node)
	log.Logger = logger
	zerolog.SetGlobalLevel(logger.GetLevel())
	return logger
}

func ServiceLogger(cfg logging.Config, app, node string) zerolog.Logger {
	ctx := logging.New(cfg).With().Str("app", app)
	if node != "" {
		ctx = ctx.Str("node", node)
	}
	return ctx.Logger()
}
