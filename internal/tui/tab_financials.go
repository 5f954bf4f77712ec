package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/pipeline"
	"github.com/theirongolddev/opsdash/internal/tui/components"
	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

type financialsState struct {
	period model.Period
}

func (a App) renderFinancialsTab(cw int) string {
	t := theme.Active
	now := a.now()
	fk := a.agg.FinancialKPIs

	var b strings.Builder

	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "MRR", Value: cli.FormatMoney(fk.MRR), Color: t.Green},
		{Label: "One-time Revenue", Value: cli.FormatMoney(fk.OneTimeRevenue)},
		{Label: "Total Expenses", Value: cli.FormatMoney(fk.TotalExpenses)},
		{Label: "Net Profit", Value: cli.FormatMoney(fk.NetProfit), Color: t.SignColor(fk.NetProfit)},
	}, cw))
	b.WriteString("\n")

	var cols []int
	if a.isCompactLayout() {
		cols = []int{cw}
	} else {
		cols = components.LayoutRow(cw, 2)
	}
	leftW, rightW := cols[0], cols[len(cols)-1]

	period := a.renderPeriodCard(leftW)
	health := a.renderHealthCard(rightW)
	budget := a.renderBudgetCard(leftW, pipeline.MonthKey(now))
	categories := a.renderCategoriesCard(rightW)
	reminders := a.renderRemindersCard(leftW)
	trend := a.renderProfitTrendCard(rightW)

	if len(cols) == 1 {
		b.WriteString(strings.Join([]string{period, health, budget, categories, reminders, trend}, "\n"))
		return b.String()
	}
	b.WriteString(components.CardRow([]string{period, health}))
	b.WriteString("\n")
	b.WriteString(components.CardRow([]string{budget, categories}))
	b.WriteString("\n")
	b.WriteString(components.CardRow([]string{reminders, trend}))
	return b.String()
}

func (a App) renderPeriodCard(outer int) string {
	t := theme.Active
	now := a.now()
	pt := pipeline.PeriodTotals(a.coll.PaymentHistory, a.fin.period, now)
	expenses := pipeline.PeriodExpenses(a.coll.Expenses, a.fin.period)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	row := func(label string, v float64, color lipgloss.Color) string {
		vs := valueStyle
		if color != "" {
			vs = vs.Foreground(color)
		}
		return labelStyle.Render(fmt.Sprintf("%-18s", label)) + vs.Render(fmt.Sprintf("%12s", cli.FormatMoney(v)))
	}

	net := pt.Total - expenses
	lines := []string{
		dimStyle.Render(fmt.Sprintf("%s to %s, %d payments", pt.Start, pt.End, pt.Payments)),
		row("Project", pt.Project, ""),
		row("Maintenance", pt.Maintenance, ""),
		row("New requirement", pt.NewRequirement, ""),
		row("Collected", pt.Total, t.Green),
		row("Expenses", expenses, t.Red),
		row("Net", net, t.SignColor(net)),
		"",
		dimStyle.Render("[p] cycle period"),
	}
	title := "Period: " + strings.ToUpper(string(a.fin.period[:1])) + string(a.fin.period[1:])
	return components.ContentCard(title, strings.Join(lines, "\n"), outer)
}

func (a App) renderHealthCard(outer int) string {
	t := theme.Active
	h := pipeline.FinancialHealth(a.coll.Customers)
	totals := pipeline.FinancialTotals(a.coll.Customers)
	inner := components.CardInnerWidth(outer)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)

	barW := max(inner-22, 10)
	lines := []string{
		labelStyle.Render(fmt.Sprintf("%-16s", "Collection rate")) + space.Render(" ") + components.ProgressBar(h.CollectionRate/100, barW),
		labelStyle.Render(fmt.Sprintf("%-16s", "Maintenance rate")) + space.Render(" ") + components.ProgressBar(h.MaintenanceRate/100, barW),
		labelStyle.Render(fmt.Sprintf("%-16s", "Avg revenue")) + space.Render(" ") + valueStyle.Render(cli.FormatMoney(h.AvgRevenuePerCustomer)),
		labelStyle.Render(fmt.Sprintf("%-16s", "Outstanding")) + space.Render(" ") + valueStyle.Foreground(t.Orange).Render(cli.FormatMoney(h.Outstanding)),
		"",
	}
	total := totals.Total()
	for _, s := range []struct {
		name string
		pt   model.PaymentTotals
	}{
		{"Project", totals.Project},
		{"Maintenance", totals.Maintenance},
		{"New requirement", totals.NewRequirement},
		{"Total", total},
	} {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-16s", s.name))+
			valueStyle.Render(fmt.Sprintf(" %10s of %10s", cli.FormatMoney(s.pt.Paid), cli.FormatMoney(s.pt.Estimated))))
	}
	return components.ContentCard("Financial Health", strings.Join(lines, "\n"), outer)
}

func (a App) renderBudgetCard(outer int, month string) string {
	lines := pipeline.BudgetVsActual(a.coll.Budgets, a.coll.Expenses, month)
	inner := components.CardInnerWidth(outer)
	title := "Budget: " + cli.FormatMonth(month)
	if len(lines) == 0 {
		return components.ContentCard(title, orDim(""), outer)
	}

	labelW := 12
	// label, spaces, percent and the "$a / $b" tail
	barW := max(inner-labelW-26, 8)
	rows := make([]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, components.BudgetBar(truncStr(l.Category, labelW), l.Actual, l.Target, labelW, barW))
	}
	return components.ContentCard(title, strings.Join(rows, "\n"), outer)
}

func (a App) renderCategoriesCard(outer int) string {
	t := theme.Active
	cats := pipeline.ExpensesByCategory(a.coll.Expenses)
	bars := make([]components.HBar, 0, len(cats))
	for _, c := range cats {
		bars = append(bars, components.HBar{Label: c.Category, Value: c.Amount, Text: cli.FormatMoney(c.Amount)})
	}
	return components.ContentCard("Expenses by Category", orDim(components.HBarList(bars, t.Magenta, components.CardInnerWidth(outer))), outer)
}

func (a App) renderRemindersCard(outer int) string {
	t := theme.Active
	reminders := pipeline.PaymentReminders(a.coll.Customers, a.now())
	inner := components.CardInnerWidth(outer)

	if len(reminders) == 0 {
		return components.ContentCard("Payment Reminders",
			lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface).Render("All maintenance payments are current"),
			outer)
	}

	nameW := max(inner-26, 8)
	rows := make([]string, 0, len(reminders))
	for _, r := range reminders {
		color := t.Yellow
		tag := "due"
		if r.Overdue {
			color, tag = t.Red, "overdue"
		}
		rows = append(rows, lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Render(fmt.Sprintf("%-*s", nameW, truncStr(r.CompanyName, nameW)))+
			lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render(fmt.Sprintf(" %10s ", cli.FormatMoney(r.Amount)))+
			lipgloss.NewStyle().Foreground(color).Background(t.Surface).Render(fmt.Sprintf("%-7s", tag)))
	}
	return components.ContentCard(fmt.Sprintf("Payment Reminders (%d)", len(reminders)), strings.Join(rows, "\n"), outer)
}

func (a App) renderProfitTrendCard(outer int) string {
	t := theme.Active
	trend := pipeline.ProfitTrend(a.agg.Charts.RevenueExpenses)
	if len(trend) == 0 {
		return components.ContentCard("Profit Trend", orDim(""), outer)
	}

	profits := make([]float64, len(trend))
	for i, p := range trend {
		profits[i] = p.Profit
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	lines := []string{components.Sparkline(profits, t.Accent), ""}
	for _, p := range trend {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-4s", p.Label))+
			lipgloss.NewStyle().Foreground(t.SignColor(p.Profit)).Background(t.Surface).Render(fmt.Sprintf("%12s", cli.FormatMoney(p.Profit))))
	}
	return components.ContentCard("Profit Trend", strings.Join(lines, "\n"), outer)
}
