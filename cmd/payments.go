package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/model"

	"github.com/spf13/cobra"
)

var (
	flagPaymentCustomer string
	flagPaymentType     string
	flagPaymentAmount   float64
	flagPaymentDate     string
	flagPaymentNotes    string
	flagPaymentLimit    int
)

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Show payment history, newest first",
	RunE:  runPayments,
}

var paymentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a payment",
	RunE:  runPaymentAdd,
}

func init() {
	paymentsCmd.Flags().StringVar(&flagPaymentCustomer, "customer", "", "Only payments of this customer (id or company name)")
	paymentsCmd.Flags().IntVarP(&flagPaymentLimit, "limit", "l", 25, "Max rows to show (0 = all)")

	paymentAddCmd.Flags().StringVar(&flagPaymentCustomer, "customer", "", "Customer id or company name")
	paymentAddCmd.Flags().StringVar(&flagPaymentType, "type", "project", "Payment type: project, maintenance, newRequirement")
	paymentAddCmd.Flags().Float64Var(&flagPaymentAmount, "amount", 0, "Amount paid")
	paymentAddCmd.Flags().StringVar(&flagPaymentDate, "date", "", "Payment date as YYYY-MM-DD (default: today)")
	paymentAddCmd.Flags().StringVar(&flagPaymentNotes, "notes", "", "Free-form notes")
	_ = paymentAddCmd.MarkFlagRequired("customer")
	_ = paymentAddCmd.MarkFlagRequired("amount")

	paymentsCmd.AddCommand(paymentAddCmd)
	rootCmd.AddCommand(paymentsCmd)
}

func runPayments(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, a *app) error {
		coll := a.st.Collections()

		customerID := ""
		if flagPaymentCustomer != "" {
			c, err := findCustomer(coll.Customers, flagPaymentCustomer)
			if err != nil {
				return err
			}
			customerID = c.ID
		}

		var rows [][]string
		var total float64
		for _, p := range coll.PaymentHistory {
			if customerID != "" && p.CustomerID != customerID {
				continue
			}
			total += p.Amount
			if flagPaymentLimit > 0 && len(rows) >= flagPaymentLimit {
				continue
			}
			rows = append(rows, []string{p.Date, p.CustomerName, string(p.PaymentType), cli.FormatMoney(p.Amount), cli.OrDash(p.Notes)})
		}

		if len(rows) == 0 {
			fmt.Println("\n  No payments recorded.")
			return nil
		}

		rows = append(rows, cli.Separator, []string{"TOTAL", "", "", cli.FormatMoney(total), ""})
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    "Payment History",
			Headers:  []string{"Date", "Customer", "Type", "Amount", "Notes"},
			Rows:     rows,
			LeftCols: map[int]bool{1: true, 2: true, 4: true},
		}))
		return nil
	})
}

func runPaymentAdd(_ *cobra.Command, _ []string) error {
	pt, err := model.ParsePaymentType(flagPaymentType)
	if err != nil {
		return err
	}
	if flagPaymentDate != "" {
		if _, err := time.Parse(time.DateOnly, flagPaymentDate); err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", flagPaymentDate)
		}
	}

	return withApp(func(_ context.Context, a *app) error {
		c, err := findCustomer(a.st.Collections().Customers, flagPaymentCustomer)
		if err != nil {
			return err
		}
		rec, err := a.st.AddPaymentRecord(model.PaymentHistory{
			CustomerID:   c.ID,
			CustomerName: c.CompanyName,
			PaymentType:  pt,
			Amount:       flagPaymentAmount,
			Date:         flagPaymentDate,
			Notes:        flagPaymentNotes,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Recorded %s %s payment from %s on %s\n", cli.FormatMoney(rec.Amount), rec.PaymentType, rec.CustomerName, rec.Date)
		return nil
	})
}
