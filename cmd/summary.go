package cmd

import (
	"context"
	"fmt"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/model"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Headline KPIs, revenue trend and customer mix",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, a *app) error {
		coll, agg := a.st.Snapshot()
		if len(coll.Customers) == 0 && len(coll.Expenses) == 0 {
			fmt.Println("\n  No data yet.")
			fmt.Println("  Run `opsdash seed` to load a demo dataset, or `opsdash tui` to start.")
			return nil
		}
		renderSummary(agg)
		return nil
	})
}

func renderSummary(agg model.Aggregates) {
	k := agg.KPIs
	fk := agg.FinancialKPIs
	ak := agg.AutomationKPIs

	fmt.Println()
	fmt.Println(cli.RenderTitle("OPSDASH SUMMARY"))
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Customers", cli.FormatNumber(int64(k.TotalCustomers))},
			{"Active", cli.FormatNumber(int64(k.ActiveCustomers))},
			{"Opted out", cli.FormatNumber(int64(k.OptedOutCustomers))},
			{"Without maintenance", cli.FormatNumber(int64(k.WithoutMaintenance))},
			cli.Separator,
			{"MRR", cli.Money(fk.MRR)},
			{"One-time revenue", cli.Money(fk.OneTimeRevenue)},
			{"Monthly expenses", cli.Money(k.MonthlyExpenses)},
			{"Total expenses", cli.Money(fk.TotalExpenses)},
			{"Net profit (month)", cli.Money(k.NetProfit)},
			{"Net profit (all time)", cli.Money(fk.NetProfit)},
			cli.Separator,
			{"Automations", cli.FormatNumber(int64(ak.TotalAutomations))},
			{"Executions", cli.FormatCompact(ak.TotalExecutions)},
			{"Runtime", cli.FormatMinutes(ak.TotalRuntime)},
			{"Failed", cli.FormatNumber(int64(ak.FailedCount))},
		},
	}))

	points := agg.Charts.RevenueExpenses
	if len(points) > 0 {
		rows := make([][]string, 0, len(points))
		revenue := make([]float64, len(points))
		for i, p := range points {
			revenue[i] = p.Revenue
			rows = append(rows, []string{p.Label, cli.FormatMoney(p.Revenue), cli.FormatMoney(p.Expenses), cli.Money(p.Revenue - p.Expenses)})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Revenue vs Expenses  " + cli.RenderSparkline(revenue),
			Headers: []string{"Month", "Revenue", "Expenses", "Net"},
			Rows:    rows,
		}))
	}

	if dist := agg.Charts.ServiceDistribution; len(dist) > 0 {
		fmt.Println()
		fmt.Println(cli.RenderTitle("Service Mix"))
		for _, s := range dist {
			fmt.Println(cli.RenderHorizontalBar(fmt.Sprintf("%-11s", s.Name), s.Value, 100, 30) + " " + cli.FormatPercent(s.Value))
		}
	}
}
