package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/opsdash/internal/config"
	"github.com/theirongolddev/opsdash/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	vals := tui.SetupValues{
		RemoteURL: cfg.Remote.URL,
		Theme:     cfg.Appearance.Theme,
	}
	if err := tui.NewSetupForm(&vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return err
	}

	cfg = tui.ApplySetup(cfg, vals)
	if err := config.SaveFile(flagConfig, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", flagConfig)
	if !cfg.RemoteConfigured() {
		fmt.Println("  No remote store set, opsdash will run local-only.")
	}
	fmt.Println("  Run `opsdash setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
