package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/opsdash/internal/model"
)

func TestFinancialTotalsActiveOnly(t *testing.T) {
	customers := []model.Customer{
		{
			ID:                    "a",
			Status:                model.StatusActive,
			ProjectPayment:        model.PaymentInfo{EstimatedCost: 1000, AmountPaid: 600},
			MaintenancePayment:    model.PaymentInfo{EstimatedCost: 100, AmountPaid: 100},
			NewRequirementPayment: model.PaymentInfo{EstimatedCost: 300},
		},
		{
			ID:             "b",
			Status:         model.StatusPaused,
			ProjectPayment: model.PaymentInfo{EstimatedCost: 9999, AmountPaid: 1},
		},
	}
	tot := FinancialTotals(customers)
	assert.Equal(t, model.PaymentTotals{Estimated: 1000, Paid: 600}, tot.Project)
	assert.Equal(t, model.PaymentTotals{Estimated: 100, Paid: 100}, tot.Maintenance)
	assert.Equal(t, model.PaymentTotals{Estimated: 300}, tot.NewRequirement)
	assert.Equal(t, model.PaymentTotals{Estimated: 1400, Paid: 700}, tot.Total())
}

func TestPaymentReminders(t *testing.T) {
	customers := []model.Customer{
		// paid this month, due later: no reminder
		{ID: "paid", Status: model.StatusActive, Maintenance: true, MaintenancePaidMonths: []string{"2026-03"}, MaintenanceDueDate: "2026-04-01"},
		// unpaid this month
		{ID: "unpaid", Status: model.StatusActive, Maintenance: true, MaintenancePayment: model.PaymentInfo{EstimatedCost: 150}},
		// paid but due date passed
		{ID: "overdue", Status: model.StatusActive, Maintenance: true, MaintenancePaidMonths: []string{"2026-03"}, MaintenanceDueDate: "2026-03-01"},
		{ID: "nomaint", Status: model.StatusActive},
		{ID: "paused", Status: model.StatusPaused, Maintenance: true},
	}

	got := PaymentReminders(customers, testNow)
	require.Len(t, got, 2)
	assert.Equal(t, "unpaid", got[0].CustomerID)
	assert.True(t, got[0].UnpaidMonth)
	assert.False(t, got[0].Overdue)
	assert.Equal(t, 150.0, got[0].Amount)
	assert.Equal(t, "overdue", got[1].CustomerID)
	assert.True(t, got[1].Overdue)
	assert.False(t, got[1].UnpaidMonth)
}

func TestPeriodWindow(t *testing.T) {
	tests := []struct {
		period     model.Period
		start, end string
	}{
		{model.PeriodMonthly, "2026-03-01", "2026-04-01"},
		{model.PeriodQuarterly, "2026-01-01", "2026-04-01"},
		{model.PeriodYearly, "2026-01-01", "2027-01-01"},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			s, e := PeriodWindow(tt.period, testNow)
			assert.Equal(t, tt.start, s.Format(dateLayout))
			assert.Equal(t, tt.end, e.Format(dateLayout))
		})
	}

	s, e := PeriodWindow(model.PeriodQuarterly, time.Date(2026, time.November, 30, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-10-01", s.Format(dateLayout))
	assert.Equal(t, "2027-01-01", e.Format(dateLayout))
}

func TestPeriodTotals(t *testing.T) {
	payments := []model.PaymentHistory{
		{ID: "1", PaymentType: model.PaymentProject, Amount: 500, Date: "2026-03-10"},
		{ID: "2", PaymentType: model.PaymentMaintenance, Amount: 100, Date: "2026-03-01"},
		{ID: "3", PaymentType: model.PaymentNewRequirement, Amount: 250, Date: "2026-02-14"},
		{ID: "4", PaymentType: model.PaymentProject, Amount: 900, Date: "2025-12-31"},
		{ID: "5", PaymentType: model.PaymentProject, Amount: 1, Date: "garbage"},
		{ID: "6", PaymentType: model.PaymentProject, Amount: 7, Date: "2026-04-01"},
	}

	m := PeriodTotals(payments, model.PeriodMonthly, testNow)
	assert.Equal(t, 500.0, m.Project)
	assert.Equal(t, 100.0, m.Maintenance)
	assert.Equal(t, 600.0, m.Total)
	assert.Equal(t, 2, m.Payments)
	assert.Equal(t, "2026-03-01", m.Start)
	assert.Equal(t, "2026-04-01", m.End)

	q := PeriodTotals(payments, model.PeriodQuarterly, testNow)
	assert.Equal(t, 850.0, q.Total)
	assert.Equal(t, 250.0, q.NewRequirement)
	assert.Equal(t, 3, q.Payments)

	y := PeriodTotals(payments, model.PeriodYearly, testNow)
	assert.Equal(t, 857.0, y.Total)
	assert.Equal(t, 4, y.Payments)
}

func TestPeriodExpenses(t *testing.T) {
	expenses := []model.Expense{
		{ID: "1", Amount: 100, Recurring: true},
		{ID: "2", Amount: 40},
	}
	assert.Equal(t, 140.0, PeriodExpenses(expenses, model.PeriodMonthly))
	assert.Equal(t, 340.0, PeriodExpenses(expenses, model.PeriodQuarterly))
	assert.Equal(t, 1240.0, PeriodExpenses(expenses, model.PeriodYearly))
}

func TestExpensesByCategoryFirstSeenOrder(t *testing.T) {
	expenses := []model.Expense{
		{ID: "1", Category: "Tools", Amount: 10},
		{ID: "2", Category: "Hosting", Amount: 20},
		{ID: "3", Category: "Tools", Amount: 5},
	}
	assert.Equal(t, []model.CategoryAmount{
		{Category: "Tools", Amount: 15},
		{Category: "Hosting", Amount: 20},
	}, ExpensesByCategory(expenses))
	assert.Empty(t, ExpensesByCategory(nil))
}

func TestBudgetVsActual(t *testing.T) {
	budgets := []model.Budget{
		{ID: "b1", Category: "Tools", MonthlyTarget: 100, Month: "2026-03"},
		{ID: "b2", Category: "Hosting", MonthlyTarget: 0, Month: "2026-03"},
		{ID: "b3", Category: "Tools", MonthlyTarget: 999, Month: "2026-02"},
	}
	expenses := []model.Expense{
		{ID: "1", Category: "Tools", Amount: 30, Recurring: true},
		{ID: "2", Category: "Tools", Amount: 50, DueDate: "2026-03-20"},
		{ID: "3", Category: "Tools", Amount: 500, DueDate: "2026-02-20"},
		{ID: "4", Category: "Hosting", Amount: 10, DueDate: "2026-03-05"},
	}

	lines := BudgetVsActual(budgets, expenses, "2026-03")
	require.Len(t, lines, 2)
	assert.Equal(t, model.BudgetLine{Category: "Tools", Target: 100, Actual: 80, Variance: 20, Percent: 80}, lines[0])
	assert.Equal(t, model.BudgetLine{Category: "Hosting", Target: 0, Actual: 10, Variance: -10}, lines[1])
}

func TestFinancialHealth(t *testing.T) {
	assert.Equal(t, model.FinancialHealth{CollectionRate: 100}, FinancialHealth(nil))

	customers := []model.Customer{
		{
			ID:             "a",
			Status:         model.StatusActive,
			Maintenance:    true,
			MonthlyRevenue: 300,
			ProjectPayment: model.PaymentInfo{EstimatedCost: 800, AmountPaid: 400},
		},
		{
			ID:                 "b",
			Status:             model.StatusActive,
			MonthlyRevenue:     100,
			MaintenancePayment: model.PaymentInfo{EstimatedCost: 200, AmountPaid: 200},
		},
		{ID: "c", Status: model.StatusOptedOut, MonthlyRevenue: 1000},
	}
	h := FinancialHealth(customers)
	assert.Equal(t, 60.0, h.CollectionRate)
	assert.Equal(t, 200.0, h.AvgRevenuePerCustomer)
	assert.Equal(t, 50.0, h.MaintenanceRate)
	assert.Equal(t, 400.0, h.Outstanding)
}

func TestProfitTrend(t *testing.T) {
	pts := []model.MonthPoint{
		{Month: "2026-02", Label: "Feb", Revenue: 1000, Expenses: 300},
		{Month: "2026-03", Label: "Mar", Revenue: 1000, Expenses: 1200},
	}
	got := ProfitTrend(pts)
	require.Len(t, got, 2)
	assert.Equal(t, 700.0, got[0].Profit)
	assert.Equal(t, -200.0, got[1].Profit)
	assert.Equal(t, "Mar", got[1].Label)
}

func TestRevenueByService(t *testing.T) {
	dist := []model.ShareSlice{{Name: "Website", Value: 50}, {Name: "Software", Value: 100.0 / 3}}
	got := RevenueByService(dist, 1000)
	assert.Equal(t, []model.ShareSlice{{Name: "Website", Value: 500}, {Name: "Software", Value: 333}}, got)
}

func BenchmarkCompute(b *testing.B) {
	c := sampleCollections()
	for i := 0; i < 500; i++ {
		c.Customers = append(c.Customers, c.Customers[i%4])
		c.Expenses = append(c.Expenses, c.Expenses[i%3])
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Compute(c, testNow)
	}
}
