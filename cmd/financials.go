package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/pipeline"

	"github.com/spf13/cobra"
)

var flagPeriod string

var financialsCmd = &cobra.Command{
	Use:     "financials",
	Aliases: []string{"fin"},
	Short:   "Payment totals, period revenue, expenses and financial health",
	RunE:    runFinancials,
}

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Customers with maintenance payments due or overdue",
	RunE:  runReminders,
}

func init() {
	financialsCmd.Flags().StringVarP(&flagPeriod, "period", "p", "monthly", "Period window: monthly, quarterly, yearly")
	rootCmd.AddCommand(financialsCmd)
	rootCmd.AddCommand(remindersCmd)
}

func parsePeriod(s string) (model.Period, error) {
	switch p := model.Period(s); p {
	case model.PeriodMonthly, model.PeriodQuarterly, model.PeriodYearly:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q (want monthly, quarterly or yearly)", s)
}

func runFinancials(_ *cobra.Command, _ []string) error {
	period, err := parsePeriod(flagPeriod)
	if err != nil {
		return err
	}
	return withApp(func(_ context.Context, a *app) error {
		coll, agg := a.st.Snapshot()
		now := time.Now()

		totals := pipeline.FinancialTotals(coll.Customers)
		all := totals.Total()
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Payment Totals (active customers)",
			Headers: []string{"Stream", "Estimated", "Paid", "Remaining"},
			Rows: [][]string{
				totalsRow("Project", totals.Project),
				totalsRow("Maintenance", totals.Maintenance),
				totalsRow("New requirement", totals.NewRequirement),
				cli.Separator,
				totalsRow("TOTAL", all),
			},
		}))

		pt := pipeline.PeriodTotals(coll.PaymentHistory, period, now)
		expenses := pipeline.PeriodExpenses(coll.Expenses, period)
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   fmt.Sprintf("%s revenue  %s to %s", period, pt.Start, pt.End),
			Headers: []string{"", "Amount"},
			Rows: [][]string{
				{"Project", cli.FormatMoney(pt.Project)},
				{"Maintenance", cli.FormatMoney(pt.Maintenance)},
				{"New requirement", cli.FormatMoney(pt.NewRequirement)},
				{"Collected", cli.FormatMoney(pt.Total)},
				{"Payments", cli.FormatNumber(int64(pt.Payments))},
				cli.Separator,
				{"Expenses", cli.FormatMoney(expenses)},
				{"Net", cli.Money(pt.Total - expenses)},
			},
		}))

		h := pipeline.FinancialHealth(coll.Customers)
		fmt.Println()
		fmt.Println(cli.RenderTitle("Financial Health"))
		fmt.Print(cli.RenderKV([][2]string{
			{"Collection rate", cli.FormatPercent(h.CollectionRate)},
			{"Maintenance rate", cli.FormatPercent(h.MaintenanceRate)},
			{"Avg revenue/customer", cli.FormatMoney(h.AvgRevenuePerCustomer)},
			{"Outstanding", cli.FormatMoney(h.Outstanding)},
		}))

		if cats := pipeline.ExpensesByCategory(coll.Expenses); len(cats) > 0 {
			rows := make([][]string, 0, len(cats))
			for _, c := range cats {
				rows = append(rows, []string{c.Category, cli.FormatMoney(c.Amount)})
			}
			fmt.Println()
			fmt.Print(cli.RenderTable(cli.Table{
				Title:   "Expenses by Category",
				Headers: []string{"Category", "Amount"},
				Rows:    rows,
			}))
		}

		if trend := pipeline.ProfitTrend(agg.Charts.RevenueExpenses); len(trend) > 0 {
			rows := make([][]string, 0, len(trend))
			for _, p := range trend {
				rows = append(rows, []string{p.Label, cli.FormatMoney(p.Revenue), cli.FormatMoney(p.Expenses), cli.Money(p.Profit)})
			}
			fmt.Println()
			fmt.Print(cli.RenderTable(cli.Table{
				Title:   "Profit Trend",
				Headers: []string{"Month", "Revenue", "Expenses", "Profit"},
				Rows:    rows,
			}))
		}
		return nil
	})
}

func totalsRow(label string, t model.PaymentTotals) []string {
	return []string{label, cli.FormatMoney(t.Estimated), cli.FormatMoney(t.Paid), cli.FormatMoney(t.Remaining())}
}

func runReminders(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, a *app) error {
		reminders := pipeline.PaymentReminders(a.st.Collections().Customers, time.Now())
		if len(reminders) == 0 {
			fmt.Println("\n  All maintenance payments are current.")
			return nil
		}

		rows := make([][]string, 0, len(reminders))
		for _, r := range reminders {
			status := "due"
			switch {
			case r.Overdue:
				status = "overdue"
			case r.UnpaidMonth:
				status = "unpaid this month"
			}
			rows = append(rows, []string{r.CompanyName, cli.FormatMoney(r.Amount), cli.OrDash(r.DueDate), status})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    fmt.Sprintf("Payment Reminders (%d)", len(reminders)),
			Headers:  []string{"Customer", "Amount", "Due", "Status"},
			Rows:     rows,
			LeftCols: map[int]bool{3: true},
		}))
		return nil
	})
}
