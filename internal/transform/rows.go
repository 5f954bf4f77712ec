package transform

import (
	"encoding/json"

	"github.com/theirongolddev/opsdash/internal/model"
)

// CustomerRow is the flat remote shape of a customer.
type CustomerRow struct {
	ID                                 string          `json:"id"`
	CompanyName                        string          `json:"company_name"`
	Country                            string          `json:"country"`
	ServiceType                        string          `json:"service_type"`
	Status                             string          `json:"status"`
	Maintenance                        bool            `json:"maintenance"`
	MonthlyRevenue                     json.RawMessage `json:"monthly_revenue"`
	Notes                              *string         `json:"notes"`
	BusinessStartDate                  *string         `json:"business_start_date"`
	ClosingDate                        *string         `json:"closing_date"`
	ProjectPaymentEstimatedCost        json.RawMessage `json:"project_payment_estimated_cost"`
	ProjectPaymentAmountPaid           json.RawMessage `json:"project_payment_amount_paid"`
	MaintenancePaymentEstimatedCost    json.RawMessage `json:"maintenance_payment_estimated_cost"`
	MaintenancePaymentAmountPaid       json.RawMessage `json:"maintenance_payment_amount_paid"`
	NewRequirementPaymentEstimatedCost json.RawMessage `json:"new_requirement_payment_estimated_cost"`
	NewRequirementPaymentAmountPaid    json.RawMessage `json:"new_requirement_payment_amount_paid"`
	MaintenanceDueDate                 *string         `json:"maintenance_due_date"`
	MaintenancePaidMonths              []string        `json:"maintenance_paid_months"`
}

// CustomerToRow maps a customer to its remote row, flattening the three
// payment infos into column pairs.
func CustomerToRow(c model.Customer) CustomerRow {
	months := c.MaintenancePaidMonths
	if months == nil {
		months = []string{}
	}
	return CustomerRow{
		ID:                                 c.ID,
		CompanyName:                        c.CompanyName,
		Country:                            c.Country,
		ServiceType:                        string(c.ServiceType),
		Status:                             string(c.Status),
		Maintenance:                        c.Maintenance,
		MonthlyRevenue:                     Number(c.MonthlyRevenue),
		Notes:                              optional(c.Notes),
		BusinessStartDate:                  optional(c.BusinessStartDate),
		ClosingDate:                        optional(c.ClosingDate),
		ProjectPaymentEstimatedCost:        Number(c.ProjectPayment.EstimatedCost),
		ProjectPaymentAmountPaid:           Number(c.ProjectPayment.AmountPaid),
		MaintenancePaymentEstimatedCost:    Number(c.MaintenancePayment.EstimatedCost),
		MaintenancePaymentAmountPaid:       Number(c.MaintenancePayment.AmountPaid),
		NewRequirementPaymentEstimatedCost: Number(c.NewRequirementPayment.EstimatedCost),
		NewRequirementPaymentAmountPaid:    Number(c.NewRequirementPayment.AmountPaid),
		MaintenanceDueDate:                 optional(c.MaintenanceDueDate),
		MaintenancePaidMonths:              months,
	}
}

// CustomerFromRow rebuilds a customer from a remote row. Malformed numbers
// become 0.
func CustomerFromRow(r CustomerRow) model.Customer {
	months := r.MaintenancePaidMonths
	if months == nil {
		months = []string{}
	}
	return model.Customer{
		ID:                r.ID,
		CompanyName:       r.CompanyName,
		Country:           r.Country,
		ServiceType:       model.ServiceType(r.ServiceType),
		Status:            model.CustomerStatus(r.Status),
		Maintenance:       r.Maintenance,
		MonthlyRevenue:    ParseFloat(r.MonthlyRevenue),
		Notes:             deref(r.Notes),
		BusinessStartDate: deref(r.BusinessStartDate),
		ClosingDate:       deref(r.ClosingDate),
		ProjectPayment: model.PaymentInfo{
			EstimatedCost: ParseFloat(r.ProjectPaymentEstimatedCost),
			AmountPaid:    ParseFloat(r.ProjectPaymentAmountPaid),
		},
		MaintenancePayment: model.PaymentInfo{
			EstimatedCost: ParseFloat(r.MaintenancePaymentEstimatedCost),
			AmountPaid:    ParseFloat(r.MaintenancePaymentAmountPaid),
		},
		NewRequirementPayment: model.PaymentInfo{
			EstimatedCost: ParseFloat(r.NewRequirementPaymentEstimatedCost),
			AmountPaid:    ParseFloat(r.NewRequirementPaymentAmountPaid),
		},
		MaintenanceDueDate:    deref(r.MaintenanceDueDate),
		MaintenancePaidMonths: months,
	}
}

// AutomationRow is the flat remote shape of an automation.
type AutomationRow struct {
	ID                 string          `json:"id"`
	ClientName         string          `json:"client_name"`
	AutomationName     string          `json:"automation_name"`
	Runtime            json.RawMessage `json:"runtime"`
	ExecutionCount     json.RawMessage `json:"execution_count"`
	Status             string          `json:"status"`
	ManualIntervention bool            `json:"manual_intervention"`
}

// AutomationToRow maps an automation to its remote row.
func AutomationToRow(a model.Automation) AutomationRow {
	return AutomationRow{
		ID:                 a.ID,
		ClientName:         a.ClientName,
		AutomationName:     a.AutomationName,
		Runtime:            Int(a.Runtime),
		ExecutionCount:     Int(a.ExecutionCount),
		Status:             string(a.Status),
		ManualIntervention: a.ManualIntervention,
	}
}

// AutomationFromRow rebuilds an automation from a remote row.
func AutomationFromRow(r AutomationRow) model.Automation {
	return model.Automation{
		ID:                 r.ID,
		ClientName:         r.ClientName,
		AutomationName:     r.AutomationName,
		Runtime:            ParseInt(r.Runtime),
		ExecutionCount:     ParseInt(r.ExecutionCount),
		Status:             model.AutomationStatus(r.Status),
		ManualIntervention: r.ManualIntervention,
	}
}

// ProjectRow is the flat remote shape of a project.
type ProjectRow struct {
	ID          string          `json:"id"`
	ClientName  string          `json:"client_name"`
	ProjectName string          `json:"project_name"`
	Status      string          `json:"status"`
	Maintenance bool            `json:"maintenance"`
	Revenue     json.RawMessage `json:"revenue"`
	Notes       *string         `json:"notes"`
	Type        string          `json:"type"`
	StartDate   *string         `json:"start_date"`
}

// ProjectToRow maps a project to its remote row.
func ProjectToRow(p model.Project) ProjectRow {
	return ProjectRow{
		ID:          p.ID,
		ClientName:  p.ClientName,
		ProjectName: p.ProjectName,
		Status:      string(p.Status),
		Maintenance: p.Maintenance,
		Revenue:     Number(p.Revenue),
		Notes:       optional(p.Notes),
		Type:        string(p.Type),
		StartDate:   optional(p.StartDate),
	}
}

// ProjectFromRow rebuilds a project from a remote row.
func ProjectFromRow(r ProjectRow) model.Project {
	return model.Project{
		ID:          r.ID,
		ClientName:  r.ClientName,
		ProjectName: r.ProjectName,
		Status:      model.ProjectStatus(r.Status),
		Maintenance: r.Maintenance,
		Revenue:     ParseFloat(r.Revenue),
		Notes:       deref(r.Notes),
		Type:        model.ServiceType(r.Type),
		StartDate:   deref(r.StartDate),
	}
}

// ExpenseRow is the flat remote shape of an expense.
type ExpenseRow struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Recurring   bool            `json:"recurring"`
	DueDate     *string         `json:"due_date"`
	IsPaid      bool            `json:"is_paid"`
}

// ExpenseToRow maps an expense to its remote row.
func ExpenseToRow(e model.Expense) ExpenseRow {
	return ExpenseRow{
		ID:          e.ID,
		Category:    e.Category,
		Description: e.Description,
		Amount:      Number(e.Amount),
		Recurring:   e.Recurring,
		DueDate:     optional(e.DueDate),
		IsPaid:      e.IsPaid,
	}
}

// ExpenseFromRow rebuilds an expense from a remote row.
func ExpenseFromRow(r ExpenseRow) model.Expense {
	return model.Expense{
		ID:          r.ID,
		Category:    r.Category,
		Description: r.Description,
		Amount:      ParseFloat(r.Amount),
		Recurring:   r.Recurring,
		DueDate:     deref(r.DueDate),
		IsPaid:      r.IsPaid,
	}
}

// NoteRow is the flat remote shape of a note.
type NoteRow struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	Type      string  `json:"type"`
	Completed bool    `json:"completed"`
	Date      *string `json:"date"`
}

// NoteToRow maps a note to its remote row.
func NoteToRow(n model.Note) NoteRow {
	return NoteRow{
		ID:        n.ID,
		Content:   n.Content,
		Type:      string(n.Type),
		Completed: n.Completed,
		Date:      optional(n.Date),
	}
}

// NoteFromRow rebuilds a note from a remote row.
func NoteFromRow(r NoteRow) model.Note {
	return model.Note{
		ID:        r.ID,
		Content:   r.Content,
		Type:      model.NoteType(r.Type),
		Completed: r.Completed,
		Date:      deref(r.Date),
	}
}

// PaymentHistoryRow is the flat remote shape of a payment.
type PaymentHistoryRow struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	PaymentType  string          `json:"payment_type"`
	Amount       json.RawMessage `json:"amount"`
	Date         string          `json:"date"`
	Notes        *string         `json:"notes"`
}

// PaymentHistoryToRow maps a payment record to its remote row.
func PaymentHistoryToRow(p model.PaymentHistory) PaymentHistoryRow {
	return PaymentHistoryRow{
		ID:           p.ID,
		CustomerID:   p.CustomerID,
		CustomerName: p.CustomerName,
		PaymentType:  string(p.PaymentType),
		Amount:       Number(p.Amount),
		Date:         p.Date,
		Notes:        optional(p.Notes),
	}
}

// PaymentHistoryFromRow rebuilds a payment record from a remote row.
func PaymentHistoryFromRow(r PaymentHistoryRow) model.PaymentHistory {
	return model.PaymentHistory{
		ID:           r.ID,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		PaymentType:  model.PaymentType(r.PaymentType),
		Amount:       ParseFloat(r.Amount),
		Date:         r.Date,
		Notes:        deref(r.Notes),
	}
}

// BudgetRow is the flat remote shape of a budget.
type BudgetRow struct {
	ID            string          `json:"id"`
	Category      string          `json:"category"`
	MonthlyTarget json.RawMessage `json:"monthly_target"`
	Month         string          `json:"month"`
}

// BudgetToRow maps a budget to its remote row.
func BudgetToRow(b model.Budget) BudgetRow {
	return BudgetRow{
		ID:            b.ID,
		Category:      b.Category,
		MonthlyTarget: Number(b.MonthlyTarget),
		Month:         b.Month,
	}
}

// BudgetFromRow rebuilds a budget from a remote row.
func BudgetFromRow(r BudgetRow) model.Budget {
	return model.Budget{
		ID:            r.ID,
		Category:      r.Category,
		MonthlyTarget: ParseFloat(r.MonthlyTarget),
		Month:         r.Month,
	}
}
