package session

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvSocket     = "WAYLAND_SOCKET"
	EnvDisplay    = "WAYLAND_DISPLAY"
	EnvRuntimeDir = "XDG_RUNTIME_DIR"

	DefaultDisplayName = "wayland-0"
)

// Config is read once at startup and passed to Connect.
type Config struct {
	// DisplayName is a socket name under RuntimeDir or an absolute path.
	DisplayName string
	RuntimeDir  string
	// SocketFD is an already connected socket handed down by a parent
	// process; -1 when absent. It takes precedence over DisplayName.
	SocketFD int
	Logger   *zerolog.Logger
	Metrics  Metrics
}

func DefaultConfig() Config {
	return Config{
		DisplayName: DefaultDisplayName,
		SocketFD:    -1,
	}
}

// ConfigFromEnv builds a Config from lookup, normally os.LookupEnv.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := DefaultConfig()
	if v, ok := lookup(EnvDisplay); ok && strings.TrimSpace(v) != "" {
		cfg.DisplayName = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRuntimeDir); ok {
		cfg.RuntimeDir = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSocket); ok && strings.TrimSpace(v) != "" {
		fd, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || fd < 0 {
			return Config{}, &SetupError{Op: "parse " + EnvSocket, Err: ErrBadSocketFD}
		}
		cfg.SocketFD = fd
	}
	return cfg, nil
}

// SocketPath resolves the endpoint to dial. An absolute DisplayName is used
// as is; a relative one needs RuntimeDir.
func (c Config) SocketPath() (string, error) {
	name := c.DisplayName
	if name == "" {
		name = DefaultDisplayName
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	if c.RuntimeDir == "" {
		return "", &SetupError{Op: "resolve socket", Err: ErrNoRuntimeDir}
	}
	return filepath.Join(c.RuntimeDir, name), nil
}

func (c Config) logger() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return &log.Logger
}
