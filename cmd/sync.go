package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/config"
	"github.com/theirongolddev/opsdash/internal/remote"
	"github.com/theirongolddev/opsdash/internal/store"

	"github.com/spf13/cobra"
)

var flagEnsureSchema bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect and repair sync between the local cache and the remote store",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show remote reachability and the local cache backlog",
	RunE:  runSyncStatus,
}

var syncReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Push dirty records and replay pending deletes to the remote store",
	RunE:  runSyncReconcile,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached record, including unsynced changes",
	RunE:  runCacheClear,
}

func init() {
	syncReconcileCmd.Flags().BoolVar(&flagEnsureSchema, "ensure-schema", false, "Create missing remote tables first (postgres backend only)")

	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncReconcileCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runSyncStatus(_ *cobra.Command, _ []string) error {
	a, err := openApp(openOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	remoteState := "not configured (local-only)"
	switch {
	case flagOffline:
		remoteState = "ignored (--offline)"
	case a.cfg.RemoteConfigured():
		if remote.Available(ctx, a.remote) {
			remoteState = "reachable"
		} else {
			remoteState = "unreachable"
		}
	}

	stats, err := a.cache.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading cache stats: %w", err)
	}
	a.metrics.Backlog(stats.DirtyTotal(), stats.PendingDeletes)

	fmt.Println()
	fmt.Println(cli.RenderTitle("SYNC STATUS"))
	fmt.Println()
	fmt.Print(cli.RenderKV([][2]string{
		{"Remote URL", cli.OrDash(a.cfg.Remote.URL)},
		{"Remote key", cli.OrDash(config.MaskKey(a.cfg.Remote.Key))},
		{"Remote", remoteState},
		{"Cache", a.cache.Path()},
		{"Dirty records", cli.FormatNumber(int64(stats.DirtyTotal()))},
		{"Pending deletes", cli.FormatNumber(int64(stats.PendingDeletes))},
	}))

	rows := make([][]string, 0, len(stats.Tables))
	for _, t := range stats.Tables {
		rows = append(rows, []string{string(t.Kind), cli.FormatNumber(int64(t.Rows)), cli.FormatNumber(int64(t.Dirty))})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Local Cache",
		Headers: []string{"Table", "Rows", "Dirty"},
		Rows:    rows,
	}))

	if stats.DirtyTotal()+stats.PendingDeletes > 0 {
		fmt.Println("\n  Run `opsdash sync reconcile` once the remote store is reachable.")
	}
	return nil
}

// schemaEnsurer is implemented by backends that can create their tables.
type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

func runSyncReconcile(_ *cobra.Command, _ []string) error {
	a, err := openApp(openOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if flagEnsureSchema {
		se, ok := a.remote.(schemaEnsurer)
		if !ok {
			return errors.New("--ensure-schema needs a postgres:// remote")
		}
		if err := se.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("creating remote schema: %w", err)
		}
		fmt.Println("  Remote schema ready")
	}

	res, err := a.st.Reconcile(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Println("  Remote store unavailable, nothing replayed. Local changes are kept.")
		return nil
	}
	fmt.Printf("  Pushed %d records, replayed %d deletes\n", res.Pushed, res.Deleted)
	return nil
}

func runCacheClear(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cache, err := store.Open(cachePath(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	stats, err := cache.Stats(ctx)
	if err != nil {
		return err
	}
	if n := stats.DirtyTotal() + stats.PendingDeletes; n > 0 {
		fmt.Printf("  Discarding %d unsynced changes\n", n)
	}
	if err := cache.Clear(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Printf("  Cleared %s\n", cache.Path())
	return nil
}
