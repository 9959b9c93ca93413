package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/danmuck/wlctl/internal/logging"
	"github.com/rs/zerolog"
)

func TestServiceLoggerTagsAppAndNode(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf}

	log := ServiceLogger(cfg, "wlmon", "seat0")
	log.Info().Msg("up")
	line := buf.String()
	if !strings.Contains(line, "app=wlmon") || !strings.Contains(line, "node=seat0") {
		t.Fatalf("missing tags: %q", line)
	}

	buf.Reset()
	log = ServiceLogger(cfg, "wlmon", "")
	log.Info().Msg("up")
	if strings.Contains(buf.String(), "node=") {
		t.Fatalf("empty node should be omitted: %q", buf.String())
	}

	buf.Reset()
	log = ServiceLogger(cfg, "wlmon", "seat0")
	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug written at info level: %q", buf.String())
	}
}
