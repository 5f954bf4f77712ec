package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/tui/components"
	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderNotesTab(cw, h int) string {
	t := theme.Active
	inner := components.CardInnerWidth(cw)

	if len(a.coll.Notes) == 0 {
		return components.ContentCard("Notes", orDim(""), cw)
	}

	open := 0
	for _, n := range a.coll.Notes {
		if !n.Completed {
			open++
		}
	}

	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	doneStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Strikethrough(true)
	selStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceHover).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	// Border (2) + title (1) + hint (2)
	visible := max(h-5, 1)
	start := 0
	if a.notes.cursor >= visible {
		start = a.notes.cursor - visible + 1
	}
	end := min(start+visible, len(a.coll.Notes))

	contentW := max(inner-4-10-11-2, 10)
	rows := make([]string, 0, end-start+2)
	for i := start; i < end; i++ {
		n := a.coll.Notes[i]
		box := "[ ]"
		if n.Completed {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %-*s %-10s %-10s", box, contentW, truncStr(n.Content, contentW), n.Type, n.Date)
		style := rowStyle
		switch {
		case i == a.notes.cursor:
			style = selStyle
		case n.Completed:
			style = doneStyle
		case n.Type == model.NoteReminder:
			style = rowStyle.Foreground(t.Yellow)
		}
		rows = append(rows, style.Render(line))
	}
	rows = append(rows, "", dimStyle.Render("[space] complete/reopen  [d] delete"))

	return components.ContentCard(fmt.Sprintf("Notes (%d open of %d)", open, len(a.coll.Notes)), strings.Join(rows, "\n"), cw)
}
