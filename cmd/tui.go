package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/theirongolddev/opsdash/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI dashboard",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	// Terminal logging would tear the alt screen; file and journal sinks still work.
	a, err := openApp(openOptions{logOut: io.Discard})
	if err != nil {
		return err
	}

	// Force TrueColor profile so all background styling produces ANSI codes
	lipgloss.SetColorProfile(termenv.TrueColor)

	app := tui.NewApp(a.st, a.cfg, flagConfig, !fileExists(flagConfig))
	p := tea.NewProgram(app, tea.WithAltScreen())

	_, runErr := p.Run()
	closeErr := a.Close()
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return closeErr
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
