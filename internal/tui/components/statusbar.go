package components

import (
	"strings"

	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is what the bottom bar reports about persistence.
type StatusInfo struct {
	Source  string // "remote" or "local"
	Syncing bool
	Notice  string // last action result or error
	IsError bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	left := base.Render(" [?]help  [r]econcile  [q]uit")

	var right []string
	if info.Notice != "" {
		color := t.TextMuted
		if info.IsError {
			color = t.Red
		}
		right = append(right, lipgloss.NewStyle().Foreground(color).Background(t.Surface).Render(info.Notice))
	}
	if info.Syncing {
		right = append(right, lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Render("syncing"))
	}
	if info.Source != "" {
		color := t.Orange
		label := "offline"
		if info.Source == "remote" {
			color = t.Green
			label = "remote"
		}
		right = append(right, lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true).Render("● "+label))
	}
	rightStr := strings.Join(right, base.Render("  ")) + base.Render(" ")

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(rightStr), 0)
	return left + base.Render(strings.Repeat(" ", padding)) + rightStr
}
