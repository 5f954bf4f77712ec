package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/pipeline"
	"github.com/theirongolddev/opsdash/internal/state"

	"github.com/spf13/cobra"
)

var (
	flagCustomerStatus string
	flagMonth          string
)

var customersCmd = &cobra.Command{
	Use:     "customers",
	Aliases: []string{"cust"},
	Short:   "List customers with revenue and payment progress",
	RunE:    runCustomers,
}

var customerPayCmd = &cobra.Command{
	Use:   "pay <customer> <project|maintenance|newRequirement> <estimatedCost|amountPaid> <amount>",
	Short: "Set one field of a customer's payment stream",
	Long:  "Set the estimated cost or amount paid of a payment stream. Raising the amount paid records a payment for the difference.",
	Args:  cobra.ExactArgs(4),
	RunE:  runCustomerPay,
}

var customerMaintenanceCmd = &cobra.Command{
	Use:   "maintenance <customer>",
	Short: "Toggle a month's maintenance payment (default: this month)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerMaintenance,
}

func init() {
	customersCmd.Flags().StringVar(&flagCustomerStatus, "status", "", "Filter by status (Active, Paused, Opted Out)")
	customerMaintenanceCmd.Flags().StringVar(&flagMonth, "month", "", "Month as YYYY-MM (default: current month)")

	customersCmd.AddCommand(customerPayCmd)
	customersCmd.AddCommand(customerMaintenanceCmd)
	rootCmd.AddCommand(customersCmd)
}

func runCustomers(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, a *app) error {
		month := pipeline.MonthKey(time.Now())
		customers := a.st.Collections().Customers

		rows := make([][]string, 0, len(customers))
		for _, c := range customers {
			if flagCustomerStatus != "" && !strings.EqualFold(string(c.Status), flagCustomerStatus) {
				continue
			}
			maint := "-"
			if c.Maintenance {
				maint = "unpaid"
				if c.PaidMonth(month) {
					maint = "paid"
				}
			}
			total := model.PaymentTotals{}
			for _, pt := range []model.PaymentType{model.PaymentProject, model.PaymentMaintenance, model.PaymentNewRequirement} {
				p := c.Payment(pt)
				total.Estimated += p.EstimatedCost
				total.Paid += p.AmountPaid
			}
			rows = append(rows, []string{
				c.CompanyName,
				shortID(c.ID),
				cli.Status(string(c.Status)),
				string(c.ServiceType),
				cli.FormatMoney(c.MonthlyRevenue),
				maint,
				cli.FormatMoney(total.Paid),
				cli.FormatMoney(total.Remaining()),
			})
		}

		if len(rows) == 0 {
			fmt.Println("\n  No customers found.")
			return nil
		}

		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    fmt.Sprintf("Customers (%d)", len(rows)),
			Headers:  []string{"Company", "ID", "Status", "Service", "MRR", cli.FormatMonth(month), "Paid", "Remaining"},
			Rows:     rows,
			LeftCols: map[int]bool{1: true, 2: true, 3: true, 5: true},
		}))
		return nil
	})
}

func runCustomerPay(_ *cobra.Command, args []string) error {
	pt, err := model.ParsePaymentType(args[1])
	if err != nil {
		return err
	}
	field, err := state.ParsePaymentField(args[2])
	if err != nil {
		return err
	}
	amount, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[3], err)
	}

	return withApp(func(_ context.Context, a *app) error {
		c, err := findCustomer(a.st.Collections().Customers, args[0])
		if err != nil {
			return err
		}
		if err := a.st.UpdateCustomerPayment(c.ID, pt, field, amount); err != nil {
			return err
		}
		fmt.Printf("  %s: %s %s set to %s\n", c.CompanyName, pt, field, cli.FormatMoney(amount))
		return nil
	})
}

func runCustomerMaintenance(_ *cobra.Command, args []string) error {
	month := flagMonth
	if month == "" {
		month = pipeline.MonthKey(time.Now())
	}
	return withApp(func(_ context.Context, a *app) error {
		c, err := findCustomer(a.st.Collections().Customers, args[0])
		if err != nil {
			return err
		}
		paid, err := a.st.ToggleMaintenancePaid(c.ID, month)
		if err != nil {
			return err
		}
		status := "unpaid"
		if paid {
			status = "paid"
		}
		fmt.Printf("  %s: maintenance for %s marked %s\n", c.CompanyName, cli.FormatMonth(month), status)
		return nil
	})
}

// findCustomer resolves a customer by id, id prefix or case-insensitive
// company name.
func findCustomer(customers []model.Customer, ref string) (model.Customer, error) {
	var matches []model.Customer
	for _, c := range customers {
		if c.ID == ref {
			return c, nil
		}
		if strings.EqualFold(c.CompanyName, ref) || (len(ref) >= 4 && strings.HasPrefix(c.ID, ref)) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return model.Customer{}, fmt.Errorf("%w: %s", state.ErrUnknownCustomer, ref)
	case 1:
		return matches[0], nil
	}
	return model.Customer{}, fmt.Errorf("%q matches %d customers, use the id", ref, len(matches))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
