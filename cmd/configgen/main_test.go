package main

import (
	"path/filepath"
	"testing"

	"github.com/danmuck/wlctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestWriteThenValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "wlmon.toml")

	require.NoError(t, run([]string{"--kind", "monitor", "-o", path}))
	require.ErrorContains(t, run([]string{"--kind", "monitor", "-o", path}), "already exists")
	require.NoError(t, run([]string{"--kind", "monitor", "-o", path, "--force"}))
	require.NoError(t, run([]string{"--kind", "monitor", "--validate", "-i", path}))
	require.ErrorContains(t, run([]string{"--kind", "tablet"}), "unknown kind")
	require.Error(t, run([]string{"--validate", "-i", filepath.Join(t.TempDir(), "missing.toml")}))
}
