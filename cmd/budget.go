package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/pipeline"

	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Budget targets against actual spend for a month",
	RunE:  runBudget,
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <category> <monthly-target>",
	Short: "Create or update a category budget",
	Args:  cobra.ExactArgs(2),
	RunE:  runBudgetSet,
}

func init() {
	budgetCmd.PersistentFlags().StringVar(&flagMonth, "month", "", "Month as YYYY-MM (default: current month)")
	budgetCmd.AddCommand(budgetSetCmd)
	rootCmd.AddCommand(budgetCmd)
}

func budgetMonth() string {
	if flagMonth != "" {
		return flagMonth
	}
	return pipeline.MonthKey(time.Now())
}

func runBudget(_ *cobra.Command, _ []string) error {
	month := budgetMonth()
	return withApp(func(_ context.Context, a *app) error {
		coll := a.st.Collections()
		lines := pipeline.BudgetVsActual(coll.Budgets, coll.Expenses, month)
		if len(lines) == 0 {
			fmt.Printf("\n  No budgets for %s. Add one with `opsdash budget set <category> <target>`.\n", cli.FormatMonth(month))
			return nil
		}

		rows := make([][]string, 0, len(lines)+2)
		var target, actual float64
		for _, l := range lines {
			target += l.Target
			actual += l.Actual
			rows = append(rows, []string{
				l.Category,
				cli.FormatMoney(l.Target),
				cli.FormatMoney(l.Actual),
				cli.Money(l.Variance),
				cli.RenderBudgetBar(l.Actual, l.Target, 20),
			})
		}
		rows = append(rows, cli.Separator, []string{"TOTAL", cli.FormatMoney(target), cli.FormatMoney(actual), cli.Money(target - actual), cli.RenderBudgetBar(actual, target, 20)})

		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    "Budget: " + cli.FormatMonth(month),
			Headers:  []string{"Category", "Target", "Actual", "Variance", "Used"},
			Rows:     rows,
			LeftCols: map[int]bool{4: true},
		}))
		return nil
	})
}

func runBudgetSet(_ *cobra.Command, args []string) error {
	target, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", args[1], err)
	}
	month := budgetMonth()
	return withApp(func(_ context.Context, a *app) error {
		b, err := a.st.SetBudget(args[0], month, target)
		if err != nil {
			return err
		}
		fmt.Printf("  Budget for %s in %s set to %s\n", b.Category, cli.FormatMonth(b.Month), cli.FormatMoney(b.MonthlyTarget))
		return nil
	})
}
