// Package pipeline computes KPIs, chart series and financial views from the
// entity collections. Every function is pure; callers pass the clock.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/opsdash/internal/model"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
	trendMonths = 6
)

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}

// inMonth reports whether a YYYY-MM-DD date falls in the YYYY-MM month.
func inMonth(date, month string) bool {
	return date != "" && strings.HasPrefix(date, month+"-")
}

// CustomerKPIs computes the customer headline numbers. An expense counts
// toward the month when it is recurring or due in now's calendar month.
func CustomerKPIs(customers []model.Customer, expenses []model.Expense, now time.Time) model.KPIs {
	var k model.KPIs
	k.TotalCustomers = len(customers)
	for _, c := range customers {
		switch c.Status {
		case model.StatusActive:
			k.ActiveCustomers++
			k.MonthlyRevenue += c.MonthlyRevenue
			if !c.Maintenance {
				k.WithoutMaintenance++
			}
		case model.StatusOptedOut:
			k.OptedOutCustomers++
		}
	}

	month := MonthKey(now)
	for _, e := range expenses {
		if e.Recurring || inMonth(e.DueDate, month) {
			k.MonthlyExpenses += e.Amount
		}
	}
	k.NetProfit = k.MonthlyRevenue - k.MonthlyExpenses
	return k
}

// AutomationKPIs summarizes automations.
func AutomationKPIs(automations []model.Automation) model.AutomationKPIs {
	var k model.AutomationKPIs
	k.TotalAutomations = len(automations)
	for _, a := range automations {
		k.TotalRuntime += a.Runtime
		k.TotalExecutions += a.ExecutionCount
		if a.Status == model.AutomationFailed {
			k.FailedCount++
		}
	}
	return k
}

// MRR sums the monthly revenue of active customers.
func MRR(customers []model.Customer) float64 {
	var total float64
	for _, c := range customers {
		if c.Status == model.StatusActive {
			total += c.MonthlyRevenue
		}
	}
	return total
}

// FinancialKPIs computes revenue and profit. Maintenance payments are
// recurring revenue already counted in MRR, so only project and new
// requirement payments count as one-time revenue.
func FinancialKPIs(customers []model.Customer, payments []model.PaymentHistory, expenses []model.Expense) model.FinancialKPIs {
	var k model.FinancialKPIs
	k.MRR = MRR(customers)
	for _, p := range payments {
		if p.PaymentType.IsOneTime() {
			k.OneTimeRevenue += p.Amount
		}
	}
	for _, e := range expenses {
		k.TotalExpenses += e.Amount
	}
	k.NetProfit = k.MRR + k.OneTimeRevenue - k.TotalExpenses
	return k
}

// trailingMonths returns the first day of each of the last n calendar
// months, oldest first, ending with now's month.
func trailingMonths(now time.Time, n int) []time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = first.AddDate(0, i-(n-1), 0)
	}
	return out
}

// Charts computes the chart series. Every trend bucket carries the current
// MRR because there is no revenue ledger per month.
func Charts(customers []model.Customer, expenses []model.Expense, now time.Time) model.ChartData {
	mrr := MRR(customers)

	var cd model.ChartData
	for _, m := range trailingMonths(now, trendMonths) {
		key := MonthKey(m)
		var spent float64
		for _, e := range expenses {
			if inMonth(e.DueDate, key) {
				spent += e.Amount
			}
		}
		cd.RevenueExpenses = append(cd.RevenueExpenses, model.MonthPoint{
			Month:    key,
			Label:    m.Format("Jan"),
			Revenue:  mrr,
			Expenses: spent,
		})
	}

	cd.ServiceDistribution = serviceDistribution(customers)
	cd.CustomerStatus = statusCounts(customers)
	return cd
}

func serviceDistribution(customers []model.Customer) []model.ShareSlice {
	counts := make(map[model.ServiceType]int)
	for _, c := range customers {
		counts[c.ServiceType]++
	}

	names := make([]model.ServiceType, 0, len(counts))
	names = append(names, model.ServiceTypes...)
	names = append(names, extraKeys(counts, model.ServiceTypes)...)

	total := float64(len(customers))
	out := make([]model.ShareSlice, 0, len(names))
	for _, n := range names {
		var pct float64
		if total > 0 {
			pct = float64(counts[n]) / total * 100
		}
		out = append(out, model.ShareSlice{Name: string(n), Value: pct})
	}
	return out
}

func statusCounts(customers []model.Customer) []model.StatusCount {
	counts := make(map[model.CustomerStatus]int)
	for _, c := range customers {
		counts[c.Status]++
	}

	names := make([]model.CustomerStatus, 0, len(counts))
	names = append(names, model.CustomerStatuses...)
	names = append(names, extraKeys(counts, model.CustomerStatuses)...)

	out := make([]model.StatusCount, 0, len(names))
	for _, n := range names {
		out = append(out, model.StatusCount{Status: string(n), Count: counts[n]})
	}
	return out
}

// extraKeys returns the keys of m not in known, sorted.
func extraKeys[K ~string](m map[K]int, known []K) []K {
	isKnown := make(map[K]bool, len(known))
	for _, k := range known {
		isKnown[k] = true
	}
	var extra []K
	for k := range m {
		if !isKnown[k] {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return extra
}

// Compute recomputes every aggregate from the collections.
func Compute(c model.Collections, now time.Time) model.Aggregates {
	return model.Aggregates{
		KPIs:           CustomerKPIs(c.Customers, c.Expenses, now),
		AutomationKPIs: AutomationKPIs(c.Automations),
		FinancialKPIs:  FinancialKPIs(c.Customers, c.PaymentHistory, c.Expenses),
		Charts:         Charts(c.Customers, c.Expenses, now),
	}
}
