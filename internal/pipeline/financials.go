package pipeline

import (
	"math"
	"time"

	"github.com/theirongolddev/opsdash/internal/model"
)

// FinancialTotals sums the three payment streams over active customers.
func FinancialTotals(customers []model.Customer) model.FinancialTotals {
	var t model.FinancialTotals
	for _, c := range customers {
		if c.Status != model.StatusActive {
			continue
		}
		t.Project.Estimated += c.ProjectPayment.EstimatedCost
		t.Project.Paid += c.ProjectPayment.AmountPaid
		t.Maintenance.Estimated += c.MaintenancePayment.EstimatedCost
		t.Maintenance.Paid += c.MaintenancePayment.AmountPaid
		t.NewRequirement.Estimated += c.NewRequirementPayment.EstimatedCost
		t.NewRequirement.Paid += c.NewRequirementPayment.AmountPaid
	}
	return t
}

// PaymentReminders lists active maintenance customers that have not paid
// for now's month or whose maintenance due date has passed.
func PaymentReminders(customers []model.Customer, now time.Time) []model.Reminder {
	month := MonthKey(now)
	var out []model.Reminder
	for _, c := range customers {
		if c.Status != model.StatusActive || !c.Maintenance {
			continue
		}
		unpaid := !c.PaidMonth(month)
		overdue := false
		if c.MaintenanceDueDate != "" {
			if due, err := time.ParseInLocation(dateLayout, c.MaintenanceDueDate, now.Location()); err == nil {
				overdue = due.Before(now)
			}
		}
		if !unpaid && !overdue {
			continue
		}
		out = append(out, model.Reminder{
			CustomerID:  c.ID,
			CompanyName: c.CompanyName,
			Amount:      c.MaintenancePayment.EstimatedCost,
			DueDate:     c.MaintenanceDueDate,
			Overdue:     overdue,
			UnpaidMonth: unpaid,
		})
	}
	return out
}

// PeriodWindow returns the calendar month, quarter or year containing now
// as a half-open [start, end) range.
func PeriodWindow(p model.Period, now time.Time) (time.Time, time.Time) {
	loc := now.Location()
	switch p {
	case model.PeriodQuarterly:
		qm := time.Month((int(now.Month())-1)/3*3 + 1)
		start := time.Date(now.Year(), qm, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, 0)
	case model.PeriodYearly:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	default:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	}
}

// PeriodTotals sums payments received inside the period containing now.
// Payments with unparseable dates are ignored.
func PeriodTotals(payments []model.PaymentHistory, p model.Period, now time.Time) model.PeriodTotals {
	start, end := PeriodWindow(p, now)
	pt := model.PeriodTotals{
		Period: p,
		Start:  start.Format(dateLayout),
		End:    end.Format(dateLayout),
	}
	for _, pay := range payments {
		d, err := time.ParseInLocation(dateLayout, pay.Date, now.Location())
		if err != nil || d.Before(start) || !d.Before(end) {
			continue
		}
		switch pay.PaymentType {
		case model.PaymentProject:
			pt.Project += pay.Amount
		case model.PaymentMaintenance:
			pt.Maintenance += pay.Amount
		case model.PaymentNewRequirement:
			pt.NewRequirement += pay.Amount
		}
		pt.Total += pay.Amount
		pt.Payments++
	}
	return pt
}

// PeriodExpenses projects expenses over a period: recurring expenses are
// multiplied by the months in the period, one-off expenses count once.
func PeriodExpenses(expenses []model.Expense, p model.Period) float64 {
	months := float64(p.Months())
	var total float64
	for _, e := range expenses {
		if e.Recurring {
			total += e.Amount * months
		} else {
			total += e.Amount
		}
	}
	return total
}

// ExpensesByCategory totals expenses per category in first-seen order.
func ExpensesByCategory(expenses []model.Expense) []model.CategoryAmount {
	idx := make(map[string]int)
	var out []model.CategoryAmount
	for _, e := range expenses {
		i, ok := idx[e.Category]
		if !ok {
			i = len(out)
			idx[e.Category] = i
			out = append(out, model.CategoryAmount{Category: e.Category})
		}
		out[i].Amount += e.Amount
	}
	return out
}

// BudgetVsActual compares each budget of the YYYY-MM month with the spend
// of its category: recurring expenses plus those due in the month.
func BudgetVsActual(budgets []model.Budget, expenses []model.Expense, month string) []model.BudgetLine {
	var out []model.BudgetLine
	for _, b := range budgets {
		if b.Month != month {
			continue
		}
		var actual float64
		for _, e := range expenses {
			if e.Category == b.Category && (e.Recurring || inMonth(e.DueDate, month)) {
				actual += e.Amount
			}
		}
		line := model.BudgetLine{
			Category: b.Category,
			Target:   b.MonthlyTarget,
			Actual:   actual,
			Variance: b.MonthlyTarget - actual,
		}
		if b.MonthlyTarget > 0 {
			line.Percent = actual / b.MonthlyTarget * 100
		}
		out = append(out, line)
	}
	return out
}

// FinancialHealth computes collection and maintenance ratios over active
// customers. With nothing billed the collection rate is 100.
func FinancialHealth(customers []model.Customer) model.FinancialHealth {
	var billed, collected, mrr float64
	var active, withMaintenance int
	for _, c := range customers {
		if c.Status != model.StatusActive {
			continue
		}
		active++
		mrr += c.MonthlyRevenue
		if c.Maintenance {
			withMaintenance++
		}
		billed += c.ProjectPayment.EstimatedCost + c.MaintenancePayment.EstimatedCost + c.NewRequirementPayment.EstimatedCost
		collected += c.ProjectPayment.AmountPaid + c.MaintenancePayment.AmountPaid + c.NewRequirementPayment.AmountPaid
	}

	h := model.FinancialHealth{CollectionRate: 100, Outstanding: billed - collected}
	if billed > 0 {
		h.CollectionRate = collected / billed * 100
	}
	if active > 0 {
		h.AvgRevenuePerCustomer = mrr / float64(active)
		h.MaintenanceRate = float64(withMaintenance) / float64(active) * 100
	}
	return h
}

// ProfitTrend derives monthly profit from the revenue/expense series.
func ProfitTrend(points []model.MonthPoint) []model.ProfitPoint {
	out := make([]model.ProfitPoint, len(points))
	for i, p := range points {
		out[i] = model.ProfitPoint{
			Month:    p.Month,
			Label:    p.Label,
			Revenue:  p.Revenue,
			Expenses: p.Expenses,
			Profit:   p.Revenue - p.Expenses,
		}
	}
	return out
}

// RevenueByService splits MRR by the service distribution shares, rounded
// to whole currency units.
func RevenueByService(dist []model.ShareSlice, mrr float64) []model.ShareSlice {
	out := make([]model.ShareSlice, len(dist))
	for i, s := range dist {
		out[i] = model.ShareSlice{Name: s.Name, Value: math.Round(s.Value / 100 * mrr)}
	}
	return out
}
