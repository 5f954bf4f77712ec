// Package cmd implements the opsdash CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/theirongolddev/opsdash/internal/config"
	"github.com/theirongolddev/opsdash/internal/logging"
	"github.com/theirongolddev/opsdash/internal/metrics"
	"github.com/theirongolddev/opsdash/internal/remote"
	"github.com/theirongolddev/opsdash/internal/state"
	"github.com/theirongolddev/opsdash/internal/store"
	"github.com/theirongolddev/opsdash/internal/syncer"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
	flagCacheDB  string
	flagOffline  bool
	flagQuiet    bool
)

// flushTimeout bounds how long a command waits for queued writes on exit.
const flushTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:          "opsdash",
	Short:        "Offline-first business operations dashboard",
	Long:         "Track customers, projects, automations, expenses and budgets. Works offline against a local cache and syncs to a remote store when one is reachable.",
	RunE:         runSummary,
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.Path(), "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagCacheDB, "cache", "", "Local cache database path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Ignore the remote store for this run")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

// loadConfig reads the config file named by --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, nil
}

func cachePath(cfg config.Config) string {
	switch {
	case flagCacheDB != "":
		return flagCacheDB
	case cfg.Local.Path != "":
		return cfg.Local.Path
	}
	return store.CachePath()
}

// app is everything a command needs to read and mutate state.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Sync
	cache   *store.Cache
	remote  remote.Client
	st      *state.Container

	closeLog func() error
}

type openOptions struct {
	// logOut replaces stderr for terminal logging; the TUI discards it.
	logOut io.Writer
}

// openApp wires config, logging, the local cache, the remote client and a
// state container. The container is not loaded; call load.
func openApp(opts openOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logging.New(logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		Out:   opts.logOut,
	})
	if err != nil {
		return nil, err
	}

	cache, err := store.Open(cachePath(cfg))
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("opening local cache: %w", err)
	}

	var rc remote.Client = remote.Disabled{}
	switch {
	case flagOffline:
		log.Debug("remote store ignored for this run")
	case !cfg.RemoteConfigured():
		log.Warn("remote store not configured, running local-only", "config", flagConfig)
	default:
		rc, err = remote.New(remote.Config{
			URL:          cfg.Remote.URL,
			Key:          cfg.Remote.Key,
			ProbeTimeout: cfg.ProbeTimeout(),
		})
		if err != nil {
			_ = cache.Close()
			_ = closeLog()
			return nil, err
		}
	}

	m := metrics.New()
	o := syncer.New(cache, rc, log, m)
	st := state.New(o, state.Options{
		Logger:      log,
		TaskTimeout: cfg.TaskTimeout(),
	})

	return &app{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		cache:    cache,
		remote:   rc,
		st:       st,
		closeLog: closeLog,
	}, nil
}

// load reads every collection, reporting where they came from unless quiet.
func (a *app) load(ctx context.Context) (syncer.Source, error) {
	start := time.Now()
	src, err := a.st.Load(ctx)
	if err != nil {
		return src, err
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Loaded from %s in %s\n", src, time.Since(start).Round(time.Millisecond))
	}
	return src, nil
}

// Close waits for queued writes, then releases the container, the remote
// client, the cache and the log file.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	var errs []error
	if err := a.st.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing sync queue: %w", err))
	}
	a.st.Close()
	if c, ok := a.remote.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.cache.Close(), a.closeLog())
	return errors.Join(errs...)
}

// withApp opens and loads the app, runs fn, then closes it.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(openOptions{})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := a.load(ctx); err != nil {
		_ = a.Close()
		return err
	}
	runErr := fn(ctx, a)
	return errors.Join(runErr, a.Close())
}
