package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/wlctl/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wlctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestTemplatesLoadAndValidate(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"client", "monitor"} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("%s write: %v", kind, err)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("%s expected exists error", kind)
		}
		if err := WriteTemplate(path, kind, true); err != nil {
			t.Fatalf("%s overwrite: %v", kind, err)
		}
		if _, err := LoadClientConfig(path); err != nil {
			t.Fatalf("%s load: %v", kind, err)
		}
	}
	if _, err := Template("tablet"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadMonitorTemplateValues(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, monitorTemplate)
	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "wlmon" || cfg.Display != "wayland-0" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://localhost:3000" {
		t.Fatalf("cors origins got=%v", cfg.CorsOrigins)
	}
	if len(cfg.ProtocolPaths) != 2 {
		t.Fatalf("protocol paths got=%v", cfg.ProtocolPaths)
	}
	b, err := cfg.Reconnect.Parse()
	if err != nil {
		t.Fatalf("parse reconnect: %v", err)
	}
	if b.InitialDelay != 250*time.Millisecond || b.MaxDelay != 5*time.Second || !b.Jitter || b.Multiplier != 2 {
		t.Fatalf("unexpected backoff: %+v", b)
	}
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadClientConfig(writeFile(t, `display = "/tmp/wl.sock"`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "wlctl" || cfg.MetricsAddr != "127.0.0.1:9464" || cfg.Reconnect.MaxDelay != "5s" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "relative path display", body: `display = "run/wl"`, want: "display"},
		{name: "empty protocol path", body: `protocol_paths = ["", "/x"]`, want: "protocol_paths[0]"},
		{name: "bad duration", body: "[reconnect]\ninitial_delay = \"soon\"", want: "initial_delay"},
		{name: "small multiplier", body: "[reconnect]\nmultiplier = 0.5", want: "multiplier"},
		{name: "initial above max", body: "[reconnect]\ninitial_delay = \"10s\"\nmax_delay = \"1s\"", want: "exceeds"},
		{name: "bad cors origin", body: `cors_origins = ["localhost:3000"]`, want: "cors_origins[0]"},
		{name: "parse error", body: `display = `, want: "config parse failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadClientConfig(writeFile(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
	if _, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestSessionConfigMergesOverEnvironment(t *testing.T) {
	testlog.Start(t)
	env := map[string]string{
		"XDG_RUNTIME_DIR": "/run/user/1000",
		"WAYLAND_DISPLAY": "wayland-1",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := DefaultClientConfig().SessionConfig(lookup)
	if err != nil {
		t.Fatalf("session config: %v", err)
	}
	if path, _ := cfg.SocketPath(); path != "/run/user/1000/wayland-1" {
		t.Fatalf("env path got=%s", path)
	}

	file := DefaultClientConfig()
	file.Display = "wayland-9"
	file.RuntimeDir = "/tmp/rt"
	cfg, err = file.SessionConfig(lookup)
	if err != nil {
		t.Fatalf("session config: %v", err)
	}
	if path, _ := cfg.SocketPath(); path != "/tmp/rt/wayland-9" {
		t.Fatalf("file path got=%s", path)
	}
	if cfg.SocketFD != -1 {
		t.Fatalf("socket fd got=%d", cfg.SocketFD)
	}
}
