package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	t.Setenv(EnvRemoteURL, "")
	t.Setenv(EnvRemoteKey, "")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.False(t, cfg.RemoteConfigured())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv(EnvRemoteURL, "")
	t.Setenv(EnvRemoteKey, "")
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := DefaultConfig()
	cfg.Remote.URL = "https://example.supabase.co"
	cfg.Remote.Key = "secret-key"
	cfg.Export.S3Bucket = "snapshots"
	cfg.Log.Level = "debug"
	require.NoError(t, SaveFile(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.True(t, got.RemoteConfigured())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[remote]
url = "https://file.example"
key = "file-key"

[sync]
task_timeout_sec = 5
`), 0o600))

	t.Setenv(EnvRemoteURL, "postgres://db.example/ops")
	t.Setenv(EnvRemoteKey, "")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.example/ops", cfg.Remote.URL)
	assert.Equal(t, "file-key", cfg.Remote.Key)
	assert.Equal(t, 5*time.Second, cfg.TaskTimeout())
	// untouched sections keep their defaults
	assert.Equal(t, "127.0.0.1:8787", cfg.Daemon.Addr)
}

func TestLoadFileRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[remote\nurl="), 0o600))
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestDurationsFallBackToDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout())
	assert.Equal(t, 30*time.Second, cfg.TaskTimeout())
	assert.Equal(t, time.Minute, cfg.DaemonInterval())
}

func TestDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/opsdash", Dir())
	assert.Equal(t, "/tmp/xdg/opsdash/config.toml", Path())
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, "***", MaskKey("abc"))
	assert.Equal(t, "******cdef", MaskKey("6789abcdef"))
}
