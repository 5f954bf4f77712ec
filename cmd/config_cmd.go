package cmd

import (
	"fmt"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", flagConfig)
	if fileExists(flagConfig) {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [Remote]")
	if cfg.RemoteConfigured() {
		fmt.Printf("    URL:           %s\n", cfg.Remote.URL)
		fmt.Printf("    Key:           %s\n", cli.OrDash(config.MaskKey(cfg.Remote.Key)))
	} else {
		fmt.Println("    URL:           not configured (local-only)")
	}
	fmt.Printf("    Probe timeout: %s\n", cfg.ProbeTimeout())
	fmt.Println()

	fmt.Println("  [Local]")
	fmt.Printf("    Cache: %s\n", cachePath(cfg))
	fmt.Println()

	fmt.Println("  [Sync]")
	fmt.Printf("    Task timeout: %s\n", cfg.TaskTimeout())
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:       %s\n", cli.OrDash(cfg.Daemon.Addr))
	fmt.Printf("    Interval:      %s\n", cfg.DaemonInterval())
	fmt.Printf("    Events buffer: %d\n", cfg.Daemon.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Export]")
	if cfg.Export.S3Bucket != "" {
		fmt.Printf("    S3 bucket:   %s\n", cfg.Export.S3Bucket)
		fmt.Printf("    S3 region:   %s\n", cli.OrDash(cfg.Export.S3Region))
		fmt.Printf("    S3 endpoint: %s\n", cli.OrDash(cfg.Export.S3Endpoint))
	} else {
		fmt.Println("    S3 bucket: not configured")
	}
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Printf("    Level: %s\n", cli.OrDash(cfg.Log.Level))
	fmt.Printf("    File:  %s\n", cli.OrDash(cfg.Log.File))
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `opsdash setup` to reconfigure.")
	return nil
}
