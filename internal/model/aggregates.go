package model

// KPIs holds the customer-level headline numbers.
type KPIs struct {
	TotalCustomers     int     `json:"totalCustomers"`
	ActiveCustomers    int     `json:"activeCustomers"`
	OptedOutCustomers  int     `json:"optedOutCustomers"`
	WithoutMaintenance int     `json:"withoutMaintenance"`
	MonthlyRevenue     float64 `json:"monthlyRevenue"`
	MonthlyExpenses    float64 `json:"monthlyExpenses"`
	NetProfit          float64 `json:"netProfit"`
}

// AutomationKPIs summarizes all automations.
type AutomationKPIs struct {
	TotalAutomations int   `json:"totalAutomations"`
	TotalRuntime     int64 `json:"totalRuntime"`
	TotalExecutions  int64 `json:"totalExecutions"`
	FailedCount      int   `json:"failedCount"`
}

// FinancialKPIs holds revenue and profit across all records.
type FinancialKPIs struct {
	MRR            float64 `json:"mrr"`
	OneTimeRevenue float64 `json:"oneTimeRevenue"`
	TotalExpenses  float64 `json:"totalExpenses"`
	NetProfit      float64 `json:"netProfit"`
}

// MonthPoint is one bucket of the revenue/expense trend.
type MonthPoint struct {
	Month    string  `json:"month"` // YYYY-MM
	Label    string  `json:"label"` // Jan, Feb, ...
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
}

// ShareSlice is a named percentage share.
type ShareSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// StatusCount is the number of customers with a given status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ChartData holds chart-ready series.
type ChartData struct {
	RevenueExpenses     []MonthPoint  `json:"revenueExpenses"`
	ServiceDistribution []ShareSlice  `json:"serviceDistribution"`
	CustomerStatus      []StatusCount `json:"customerStatus"`
}

// Aggregates bundles every derived value recomputed on change.
type Aggregates struct {
	KPIs           KPIs           `json:"kpis"`
	AutomationKPIs AutomationKPIs `json:"automationKpis"`
	FinancialKPIs  FinancialKPIs  `json:"financialKpis"`
	Charts         ChartData      `json:"charts"`
}

// PaymentTotals is the estimated vs. collected amount for one payment type.
type PaymentTotals struct {
	Estimated float64 `json:"estimated"`
	Paid      float64 `json:"paid"`
}

// Remaining returns the outstanding balance, never negative.
func (p PaymentTotals) Remaining() float64 {
	return PaymentInfo{EstimatedCost: p.Estimated, AmountPaid: p.Paid}.Remaining()
}

// FinancialTotals sums payment streams over active customers.
type FinancialTotals struct {
	Project        PaymentTotals `json:"project"`
	Maintenance    PaymentTotals `json:"maintenance"`
	NewRequirement PaymentTotals `json:"newRequirement"`
}

// Total returns the combined estimated and paid amounts.
func (f FinancialTotals) Total() PaymentTotals {
	return PaymentTotals{
		Estimated: f.Project.Estimated + f.Maintenance.Estimated + f.NewRequirement.Estimated,
		Paid:      f.Project.Paid + f.Maintenance.Paid + f.NewRequirement.Paid,
	}
}

// Reminder flags a customer whose maintenance payment needs attention.
type Reminder struct {
	CustomerID  string  `json:"customerId"`
	CompanyName string  `json:"companyName"`
	Amount      float64 `json:"amount"`
	DueDate     string  `json:"dueDate,omitempty"`
	Overdue     bool    `json:"overdue"`
	UnpaidMonth bool    `json:"unpaidMonth"`
}

// Period selects the reporting window for period views.
type Period string

const (
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

// Months returns how many calendar months the period spans.
func (p Period) Months() int {
	switch p {
	case PeriodQuarterly:
		return 3
	case PeriodYearly:
		return 12
	default:
		return 1
	}
}

// PeriodTotals is the payment revenue received inside a period window.
type PeriodTotals struct {
	Period         Period  `json:"period"`
	Start          string  `json:"start"` // YYYY-MM-DD inclusive
	End            string  `json:"end"`   // YYYY-MM-DD exclusive
	Project        float64 `json:"project"`
	Maintenance    float64 `json:"maintenance"`
	NewRequirement float64 `json:"newRequirement"`
	Total          float64 `json:"total"`
	Payments       int     `json:"payments"`
}

// CategoryAmount is a total per expense category.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// BudgetLine compares a category's budget with its actual spend.
type BudgetLine struct {
	Category string  `json:"category"`
	Target   float64 `json:"target"`
	Actual   float64 `json:"actual"`
	Variance float64 `json:"variance"` // Target - Actual
	Percent  float64 `json:"percent"`  // Actual / Target * 100
}

// FinancialHealth holds collection and retention ratios.
type FinancialHealth struct {
	CollectionRate        float64 `json:"collectionRate"`
	AvgRevenuePerCustomer float64 `json:"avgRevenuePerCustomer"`
	MaintenanceRate       float64 `json:"maintenanceRate"`
	Outstanding           float64 `json:"outstanding"`
}

// ProfitPoint is one month of received revenue against expenses.
type ProfitPoint struct {
	Month    string  `json:"month"`
	Label    string  `json:"label"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Profit   float64 `json:"profit"`
}
