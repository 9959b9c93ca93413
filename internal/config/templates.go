package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "monitor":
		return monitorTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `name = "wlctl"
# display = "wayland-0"
# runtime_dir = "/run/user/1000"
protocol_paths = []
`

const monitorTemplate = `name = "wlmon"
display = "wayland-0"
protocol_paths = ["/usr/share/wayland", "/usr/share/wayland-protocols"]
metrics_addr = "127.0.0.1:9464"
cors_origins = ["http://localhost:3000"]
sync_interval = "5s"

[reconnect]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true
max_attempts = 0
`
