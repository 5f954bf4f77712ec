// Package model defines domain types for opsdash entities and derived metrics.
package model

// PaymentInfo tracks the estimated and collected amount for one payment stream.
type PaymentInfo struct {
	EstimatedCost float64 `json:"estimatedCost"`
	AmountPaid    float64 `json:"amountPaid"`
}

// Remaining returns the outstanding balance, never negative.
func (p PaymentInfo) Remaining() float64 {
	if p.AmountPaid >= p.EstimatedCost {
		return 0
	}
	return p.EstimatedCost - p.AmountPaid
}

// Customer is a client account with its payment streams.
type Customer struct {
	ID                    string         `json:"id"`
	CompanyName           string         `json:"companyName"`
	Country               string         `json:"country"`
	ServiceType           ServiceType    `json:"serviceType"`
	Status                CustomerStatus `json:"status"`
	Maintenance           bool           `json:"maintenance"`
	MonthlyRevenue        float64        `json:"monthlyRevenue"`
	Notes                 string         `json:"notes"`
	BusinessStartDate     string         `json:"businessStartDate,omitempty"`
	ClosingDate           string         `json:"closingDate,omitempty"`
	ProjectPayment        PaymentInfo    `json:"projectPayment"`
	MaintenancePayment    PaymentInfo    `json:"maintenancePayment"`
	NewRequirementPayment PaymentInfo    `json:"newRequirementPayment"`
	MaintenanceDueDate    string         `json:"maintenanceDueDate,omitempty"`
	MaintenancePaidMonths []string       `json:"maintenancePaidMonths"`
}

// EntityID implements Entity.
func (c Customer) EntityID() string { return c.ID }

// Payment returns the payment stream for the given payment type.
func (c Customer) Payment(pt PaymentType) PaymentInfo {
	switch pt {
	case PaymentMaintenance:
		return c.MaintenancePayment
	case PaymentNewRequirement:
		return c.NewRequirementPayment
	default:
		return c.ProjectPayment
	}
}

// PaidMonth reports whether maintenance was paid for the YYYY-MM month.
func (c Customer) PaidMonth(month string) bool {
	for _, m := range c.MaintenancePaidMonths {
		if m == month {
			return true
		}
	}
	return false
}

// Automation is a scheduled job run on behalf of a client.
type Automation struct {
	ID                 string           `json:"id"`
	ClientName         string           `json:"clientName"`
	AutomationName     string           `json:"automationName"`
	Runtime            int64            `json:"runtime"`
	ExecutionCount     int64            `json:"executionCount"`
	Status             AutomationStatus `json:"status"`
	ManualIntervention bool             `json:"manualIntervention"`
}

// EntityID implements Entity.
func (a Automation) EntityID() string { return a.ID }

// Project is a delivery engagement for a client.
type Project struct {
	ID          string        `json:"id"`
	ClientName  string        `json:"clientName"`
	ProjectName string        `json:"projectName"`
	Status      ProjectStatus `json:"status"`
	Maintenance bool          `json:"maintenance"`
	Revenue     float64       `json:"revenue"`
	Notes       string        `json:"notes"`
	Type        ServiceType   `json:"type"`
	StartDate   string        `json:"startDate,omitempty"`
}

// EntityID implements Entity.
func (p Project) EntityID() string { return p.ID }

// Expense is a single or recurring cost.
type Expense struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Recurring   bool    `json:"recurring"`
	DueDate     string  `json:"dueDate,omitempty"` // YYYY-MM-DD
	IsPaid      bool    `json:"isPaid"`
}

// EntityID implements Entity.
func (e Expense) EntityID() string { return e.ID }

// Budget is a monthly spending target for one expense category.
// At most one budget exists per (Category, Month).
type Budget struct {
	ID            string  `json:"id"`
	Category      string  `json:"category"`
	MonthlyTarget float64 `json:"monthlyTarget"`
	Month         string  `json:"month"` // YYYY-MM
}

// EntityID implements Entity.
func (b Budget) EntityID() string { return b.ID }

// Note is a free-text note, todo or reminder.
type Note struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Type      NoteType `json:"type"`
	Completed bool     `json:"completed"`
	Date      string   `json:"date"`
}

// EntityID implements Entity.
func (n Note) EntityID() string { return n.ID }

// PaymentHistory is one received payment. Collections are kept newest first.
type PaymentHistory struct {
	ID           string      `json:"id"`
	CustomerID   string      `json:"customerId"`
	CustomerName string      `json:"customerName"`
	PaymentType  PaymentType `json:"paymentType"`
	Amount       float64     `json:"amount"`
	Date         string      `json:"date"` // YYYY-MM-DD
	Notes        string      `json:"notes,omitempty"`
}

// EntityID implements Entity.
func (p PaymentHistory) EntityID() string { return p.ID }

// Entity is implemented by every base record type.
type Entity interface {
	EntityID() string
}

// Collections holds one slice per entity kind.
type Collections struct {
	Customers      []Customer       `json:"customers"`
	Automations    []Automation     `json:"automations"`
	Projects       []Project        `json:"projects"`
	Expenses       []Expense        `json:"expenses"`
	Notes          []Note           `json:"notes"`
	PaymentHistory []PaymentHistory `json:"paymentHistory"`
	Budgets        []Budget         `json:"budgets"`
}

// Len returns the number of records of the given kind.
func (c Collections) Len(k Kind) int {
	switch k {
	case KindCustomers:
		return len(c.Customers)
	case KindAutomations:
		return len(c.Automations)
	case KindProjects:
		return len(c.Projects)
	case KindExpenses:
		return len(c.Expenses)
	case KindNotes:
		return len(c.Notes)
	case KindPaymentHistory:
		return len(c.PaymentHistory)
	case KindBudgets:
		return len(c.Budgets)
	}
	return 0
}

// Clone returns a copy whose slices do not alias c.
func (c Collections) Clone() Collections {
	out := Collections{
		Customers:      append([]Customer(nil), c.Customers...),
		Automations:    append([]Automation(nil), c.Automations...),
		Projects:       append([]Project(nil), c.Projects...),
		Expenses:       append([]Expense(nil), c.Expenses...),
		Notes:          append([]Note(nil), c.Notes...),
		PaymentHistory: append([]PaymentHistory(nil), c.PaymentHistory...),
		Budgets:        append([]Budget(nil), c.Budgets...),
	}
	for i := range out.Customers {
		out.Customers[i].MaintenancePaidMonths = append([]string{}, out.Customers[i].MaintenancePaidMonths...)
	}
	return out
}
