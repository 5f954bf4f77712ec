package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/tui/components"
	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderOperationsTab(cw int) string {
	var b strings.Builder

	ak := a.agg.AutomationKPIs
	manual := 0
	for _, au := range a.coll.Automations {
		if au.ManualIntervention {
			manual++
		}
	}
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Automations", Value: cli.FormatNumber(int64(ak.TotalAutomations))},
		{Label: "Executions", Value: cli.FormatCompact(ak.TotalExecutions)},
		{Label: "Failed", Value: cli.FormatNumber(int64(ak.FailedCount)), Color: failColor(ak.FailedCount)},
		{Label: "Needs Attention", Value: cli.FormatNumber(int64(manual)), Note: "manual intervention"},
		{Label: "Projects", Value: cli.FormatNumber(int64(len(a.coll.Projects)))},
	}, cw))
	b.WriteString("\n")
	b.WriteString(a.renderAutomationsCard(cw))
	b.WriteString("\n")
	b.WriteString(a.renderProjectsCard(cw))
	return b.String()
}

func failColor(n int) lipgloss.Color {
	if n > 0 {
		return theme.Active.Red
	}
	return theme.Active.TextPrimary
}

func (a App) renderAutomationsCard(cw int) string {
	t := theme.Active
	if len(a.coll.Automations) == 0 {
		return components.ContentCard("Automations", orDim(""), cw)
	}
	inner := components.CardInnerWidth(cw)

	headerStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	fixed := 10 + 10 + 10 + 3 + 4
	nameW := max((inner-fixed)/2, 8)
	clientW := max(inner-fixed-nameW, 8)

	rows := []string{headerStyle.Render(fmt.Sprintf("%-*s %-*s %-10s %10s %10s %3s",
		nameW, "Automation", clientW, "Client", "Status", "Runtime", "Runs", ""))}
	for _, au := range a.coll.Automations {
		flag := ""
		if au.ManualIntervention {
			flag = "!"
		}
		rows = append(rows,
			rowStyle.Render(fmt.Sprintf("%-*s %-*s ", nameW, truncStr(au.AutomationName, nameW), clientW, truncStr(au.ClientName, clientW)))+
				lipgloss.NewStyle().Foreground(t.StatusColor(string(au.Status))).Background(t.Surface).Render(fmt.Sprintf("%-10s", au.Status))+
				rowStyle.Render(fmt.Sprintf(" %10s %10s ", cli.FormatMinutes(au.Runtime), cli.FormatNumber(au.ExecutionCount)))+
				lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface).Bold(true).Render(fmt.Sprintf("%3s", flag)))
	}
	return components.ContentCard(fmt.Sprintf("Automations (%d)", len(a.coll.Automations)), strings.Join(rows, "\n"), cw)
}

func (a App) renderProjectsCard(cw int) string {
	t := theme.Active
	if len(a.coll.Projects) == 0 {
		return components.ContentCard("Projects", orDim(""), cw)
	}
	inner := components.CardInnerWidth(cw)

	headerStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	fixed := 12 + 11 + 12 + 11 + 4
	nameW := max((inner-fixed)/2, 8)
	clientW := max(inner-fixed-nameW, 8)

	rows := []string{headerStyle.Render(fmt.Sprintf("%-*s %-*s %-12s %-11s %12s",
		nameW, "Project", clientW, "Client", "Status", "Type", "Revenue"))}
	for _, p := range a.coll.Projects {
		rows = append(rows,
			rowStyle.Render(fmt.Sprintf("%-*s %-*s ", nameW, truncStr(p.ProjectName, nameW), clientW, truncStr(p.ClientName, clientW)))+
				lipgloss.NewStyle().Foreground(t.StatusColor(string(p.Status))).Background(t.Surface).Render(fmt.Sprintf("%-12s", p.Status))+
				rowStyle.Render(fmt.Sprintf(" %-11s %12s", p.Type, cli.FormatMoney(p.Revenue))))
	}
	return components.ContentCard(fmt.Sprintf("Projects (%d)", len(a.coll.Projects)), strings.Join(rows, "\n"), cw)
}
