package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/wlctl/internal/config"
	"github.com/danmuck/wlctl/internal/monitor"
)

type reconnectFile struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
	MaxAttempts  int     `toml:"max_attempts"`
}

type fileConfig struct {
	Name          string        `toml:"name"`
	Display       string        `toml:"display"`
	RuntimeDir    string        `toml:"runtime_dir"`
	ProtocolPaths []string      `toml:"protocol_paths"`
	MetricsAddr   string        `toml:"metrics_addr"`
	CorsOrigins   []string      `toml:"cors_origins"`
	SyncInterval  string        `toml:"sync_interval"`
	Reconnect     reconnectFile `toml:"reconnect"`
}

type serviceConfig struct {
	Client       config.ClientConfig
	Backoff      config.Backoff
	SyncInterval time.Duration
}

func defaultServiceConfig() serviceConfig {
	client := config.DefaultClientConfig()
	client.Name = "wlmon"
	b, _ := client.Reconnect.Parse()
	return serviceConfig{
		Client:       client,
		Backoff:      b,
		SyncInterval: monitor.DefaultSyncInterval,
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load wlmon config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Client.Name = name
		}
	}
	if meta.IsDefined("display") {
		cfg.Client.Display = strings.TrimSpace(raw.Display)
	}
	if meta.IsDefined("runtime_dir") {
		cfg.Client.RuntimeDir = strings.TrimSpace(raw.RuntimeDir)
	}
	if meta.IsDefined("protocol_paths") {
		cfg.Client.ProtocolPaths = normalizeList(raw.ProtocolPaths)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.Client.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.Client.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("sync_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SyncInterval))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse sync_interval: %w", err)
		}
		if d <= 0 {
			return serviceConfig{}, fmt.Errorf("sync_interval must be positive")
		}
		cfg.SyncInterval = d
	}

	r := &cfg.Client.Reconnect
	if meta.IsDefined("reconnect", "initial_delay") {
		r.InitialDelay = raw.Reconnect.InitialDelay
	}
	if meta.IsDefined("reconnect", "multiplier") {
		r.Multiplier = raw.Reconnect.Multiplier
	}
	if meta.IsDefined("reconnect", "max_delay") {
		r.MaxDelay = raw.Reconnect.MaxDelay
	}
	if meta.IsDefined("reconnect", "jitter") {
		r.Jitter = raw.Reconnect.Jitter
	}
	if meta.IsDefined("reconnect", "max_attempts") {
		r.MaxAttempts = raw.Reconnect.MaxAttempts
	}

	if err := config.ValidateClientConfig(cfg.Client); err != nil {
		return serviceConfig{}, err
	}
	if cfg.Backoff, err = cfg.Client.Reconnect.Parse(); err != nil {
		return serviceConfig{}, err
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
