package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/wlctl/internal/protocol/session"
	"github.com/pelletier/go-toml/v2"
)

// ClientConfig is the file-level configuration shared by the tools. Unset
// fields fall back to the environment.
type ClientConfig struct {
	Name          string          `toml:"name"`
	Display       string          `toml:"display"`
	RuntimeDir    string          `toml:"runtime_dir"`
	ProtocolPaths []string        `toml:"protocol_paths"`
	MetricsAddr   string          `toml:"metrics_addr"`
	CorsOrigins   []string        `toml:"cors_origins"`
	Reconnect     ReconnectConfig `toml:"reconnect"`
}

// ReconnectConfig holds monitor retry policy. Durations are Go duration
// strings.
type ReconnectConfig struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
	MaxAttempts  int     `toml:"max_attempts"`
}

// Backoff is ReconnectConfig with durations parsed.
type Backoff struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	MaxAttempts  int
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Name:        "wlctl",
		MetricsAddr: "127.0.0.1:9464",
		Reconnect: ReconnectConfig{
			InitialDelay: "250ms",
			Multiplier:   2.0,
			MaxDelay:     "5s",
			Jitter:       true,
		},
	}
}

func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "wlctl"
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("client config missing name")
	}
	if strings.ContainsRune(cfg.Display, '/') && !strings.HasPrefix(cfg.Display, "/") {
		return fmt.Errorf("display must be a socket name or an absolute path: %q", cfg.Display)
	}
	for i, o := range cfg.CorsOrigins {
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("cors_origins[%d] must be an http(s) origin: %q", i, o)
		}
	}
	for i, p := range cfg.ProtocolPaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("protocol_paths[%d] is empty", i)
		}
	}
	if _, err := cfg.Reconnect.Parse(); err != nil {
		return fmt.Errorf("reconnect invalid: %w", err)
	}
	return nil
}

// Parse validates and converts the retry policy.
func (r ReconnectConfig) Parse() (Backoff, error) {
	out := Backoff{Multiplier: r.Multiplier, Jitter: r.Jitter, MaxAttempts: r.MaxAttempts}
	var err error
	if out.InitialDelay, err = parseDuration("initial_delay", r.InitialDelay); err != nil {
		return Backoff{}, err
	}
	if out.MaxDelay, err = parseDuration("max_delay", r.MaxDelay); err != nil {
		return Backoff{}, err
	}
	if out.Multiplier != 0 && out.Multiplier < 1 {
		return Backoff{}, fmt.Errorf("multiplier must be >= 1, got %v", out.Multiplier)
	}
	if out.MaxDelay > 0 && out.InitialDelay > out.MaxDelay {
		return Backoff{}, fmt.Errorf("initial_delay %s exceeds max_delay %s", out.InitialDelay, out.MaxDelay)
	}
	if out.MaxAttempts < 0 {
		return Backoff{}, fmt.Errorf("max_attempts must be >= 0")
	}
	return out, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

// SessionConfig merges the file over the environment read through lookup.
func (c ClientConfig) SessionConfig(lookup func(string) (string, bool)) (session.Config, error) {
	cfg, err := session.ConfigFromEnv(lookup)
	if err != nil {
		return session.Config{}, err
	}
	if d := strings.TrimSpace(c.Display); d != "" {
		cfg.DisplayName = d
	}
	if dir := strings.TrimSpace(c.RuntimeDir); dir != "" {
		cfg.RuntimeDir = dir
	}
	return cfg, nil
}
