package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:     " WARN ",
		EnvLogTimestamp: "true",
		EnvLogNoColor:   "1",
		EnvLogBypass:    "maybe",
	}
	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg, func(k string) string { return env[k] })

	if cfg.Level != zerolog.WarnLevel {
		t.Fatalf("level: got %v", cfg.Level)
	}
	if !cfg.Timestamp || !cfg.NoColor {
		t.Fatalf("bool overrides not applied: %+v", cfg)
	}
	if cfg.Bypass {
		t.Fatalf("unparsable bool should leave bypass unset")
	}
}

func TestParseLevelAliases(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":       zerolog.TraceLevel,
		"diagnostics": zerolog.TraceLevel,
		"debug":       zerolog.DebugLevel,
		"warning":     zerolog.WarnLevel,
		"error":       zerolog.ErrorLevel,
		"off":         zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q) = %v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("unknown level accepted")
	}
}

func TestNewHonorsBypassAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	if bytes.Contains(buf.Bytes(), []byte("hidden")) || !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("unexpected output: %q", buf.String())
	}

	buf.Reset()
	nop := New(Config{Level: zerolog.DebugLevel, Bypass: true, Out: &buf})
	nop.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("bypass wrote output: %q", buf.String())
	}
}
