// Package config loads and saves the opsdash TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the remote section.
const (
	EnvRemoteURL = "OPSDASH_REMOTE_URL"
	EnvRemoteKey = "OPSDASH_REMOTE_KEY"
)

// Config holds all opsdash configuration.
type Config struct {
	Remote     RemoteConfig     `toml:"remote"`
	Local      LocalConfig      `toml:"local"`
	Sync       SyncConfig       `toml:"sync"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Export     ExportConfig     `toml:"export"`
	Log        LogConfig        `toml:"log"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// RemoteConfig points at the remote backing store. An http(s) URL selects
// the PostgREST backend, a postgres URL the direct database backend.
type RemoteConfig struct {
	URL            string `toml:"url,omitempty"`
	Key            string `toml:"key,omitempty"`
	ProbeTimeoutMS int    `toml:"probe_timeout_ms"`
}

// LocalConfig holds local cache settings.
type LocalConfig struct {
	Path string `toml:"path,omitempty"` // defaults to the XDG cache dir
}

// SyncConfig holds sync queue settings.
type SyncConfig struct {
	TaskTimeoutSec int `toml:"task_timeout_sec"`
}

// DaemonConfig holds background service settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	IntervalSec  int    `toml:"interval_sec"`
	EventsBuffer int    `toml:"events_buffer"`
}

// ExportConfig holds snapshot upload settings.
type ExportConfig struct {
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3PathStyle bool   `toml:"s3_path_style"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file,omitempty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{ProbeTimeoutMS: 2000},
		Sync:   SyncConfig{TaskTimeoutSec: 30},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			IntervalSec:  60,
			EventsBuffer: 200,
		},
		Log:        LogConfig{Level: "info"},
		Appearance: AppearanceConfig{Theme: "flexoki-dark"},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "opsdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "opsdash")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
// Environment overrides are applied either way.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // user-chosen config path
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvRemoteURL)); v != "" {
		cfg.Remote.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRemoteKey)); v != "" {
		cfg.Remote.Key = v
	}
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveFile(Path(), cfg)
}

// SaveFile is Save for an explicit path. The file is private because it may
// hold the remote access key.
func SaveFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // user-chosen config path
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// RemoteConfigured reports whether both the remote URL and key are set.
func (c Config) RemoteConfigured() bool {
	return strings.TrimSpace(c.Remote.URL) != "" && strings.TrimSpace(c.Remote.Key) != ""
}

// ProbeTimeout returns the reachability probe timeout.
func (c Config) ProbeTimeout() time.Duration {
	return millis(c.Remote.ProbeTimeoutMS, 2000)
}

// TaskTimeout returns the per-task sync timeout.
func (c Config) TaskTimeout() time.Duration {
	return seconds(c.Sync.TaskTimeoutSec, 30)
}

// DaemonInterval returns the daemon reconcile interval.
func (c Config) DaemonInterval() time.Duration {
	return seconds(c.Daemon.IntervalSec, 60)
}

func millis(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// MaskKey hides all but the last four characters of a secret.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
