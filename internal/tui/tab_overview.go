package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/tui/components"
	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	k := a.agg.KPIs
	fk := a.agg.FinancialKPIs

	var b strings.Builder

	b.WriteString(components.MetricCardRow([]components.Metric{
		{
			Label: "Active Customers",
			Value: cli.FormatNumber(int64(k.ActiveCustomers)),
			Note:  fmt.Sprintf("%d total, %d opted out", k.TotalCustomers, k.OptedOutCustomers),
		},
		{
			Label: "MRR",
			Value: cli.FormatMoney(fk.MRR),
			Note:  fmt.Sprintf("%d without maintenance", k.WithoutMaintenance),
			Color: t.Green,
		},
		{
			Label: "Monthly Expenses",
			Value: cli.FormatMoney(k.MonthlyExpenses),
		},
		{
			Label: "Net Profit",
			Value: cli.FormatMoney(k.NetProfit),
			Color: t.SignColor(k.NetProfit),
		},
	}, cw))
	b.WriteString("\n")

	// Revenue vs expenses for the trailing months
	points := a.agg.Charts.RevenueExpenses
	labels := make([]string, len(points))
	revenue := make([]float64, len(points))
	expenses := make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.Label
		revenue[i] = p.Revenue
		expenses[i] = p.Expenses
	}
	chartH := 8
	if a.height > 40 {
		chartH = 12
	}
	chart := components.GroupedBarChart([]components.Series{
		{Name: "Revenue", Values: revenue, Color: t.Green},
		{Name: "Expenses", Values: expenses, Color: t.Red},
	}, labels, components.CardInnerWidth(cw), chartH)
	if chart == "" {
		chart = lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render("No data")
	}
	b.WriteString(components.ContentCard("Revenue vs Expenses", chart, cw))
	b.WriteString("\n")

	// Service mix and customer status side by side, stacked when narrow
	var halves []int
	if a.isCompactLayout() {
		halves = []int{cw}
	} else {
		halves = components.LayoutRow(cw, 2)
	}

	mix := make([]components.HBar, 0, len(a.agg.Charts.ServiceDistribution))
	for _, s := range a.agg.Charts.ServiceDistribution {
		mix = append(mix, components.HBar{Label: s.Name, Value: s.Value, Text: cli.FormatPercent(s.Value)})
	}
	status := make([]components.HBar, 0, len(a.agg.Charts.CustomerStatus))
	for _, s := range a.agg.Charts.CustomerStatus {
		status = append(status, components.HBar{Label: s.Status, Value: float64(s.Count), Text: fmt.Sprintf("%d", s.Count)})
	}

	mixCard := components.ContentCard("Service Mix", orDim(components.HBarList(mix, t.Blue, components.CardInnerWidth(halves[0]))), halves[0])
	statusW := halves[len(halves)-1]
	statusCard := components.ContentCard("Customer Status", orDim(components.HBarList(status, t.Cyan, components.CardInnerWidth(statusW))), statusW)
	if len(halves) == 1 {
		b.WriteString(mixCard + "\n" + statusCard)
	} else {
		b.WriteString(components.CardRow([]string{mixCard, statusCard}))
	}
	b.WriteString("\n")

	ak := a.agg.AutomationKPIs
	failedColor := t.TextPrimary
	if ak.FailedCount > 0 {
		failedColor = t.Red
	}
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Automations", Value: cli.FormatNumber(int64(ak.TotalAutomations))},
		{Label: "Total Runtime", Value: cli.FormatMinutes(ak.TotalRuntime)},
		{Label: "Executions", Value: cli.FormatNumber(ak.TotalExecutions)},
		{Label: "Failed", Value: cli.FormatNumber(int64(ak.FailedCount)), Color: failedColor},
	}, cw))

	return b.String()
}

// orDim substitutes a dim placeholder for an empty card body.
func orDim(body string) string {
	if body != "" {
		return body
	}
	t := theme.Active
	return lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render("No data")
}
