package state

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/opsdash/internal/model"
)

var (
	// ErrUnknownCustomer is returned when a customer id does not exist.
	ErrUnknownCustomer = errors.New("unknown customer")
	// ErrInvalidBudget is returned for a budget with a bad month or target.
	ErrInvalidBudget = errors.New("invalid budget")
	// ErrInvalidAmount is returned for negative or non-finite amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// PaymentField selects which PaymentInfo field UpdateCustomerPayment edits.
type PaymentField string

const (
	FieldEstimatedCost PaymentField = "estimatedCost"
	FieldAmountPaid    PaymentField = "amountPaid"
)

// ParsePaymentField accepts the field name in camel, snake or kebab case.
func ParsePaymentField(s string) (PaymentField, error) {
	switch s {
	case "estimatedCost", "estimated_cost", "estimated-cost", "estimated":
		return FieldEstimatedCost, nil
	case "amountPaid", "amount_paid", "amount-paid", "paid":
		return FieldAmountPaid, nil
	}
	return "", fmt.Errorf("unknown payment field %q", s)
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

// withIDs assigns ids to entities that have none.
func withIDs[T any](list []T, id func(*T) *string) []T {
	out := slices.Clone(list)
	for i := range out {
		if p := id(&out[i]); *p == "" {
			*p = NewID()
		}
	}
	return out
}

// SetCustomers replaces the customer collection.
func (c *Container) SetCustomers(list []model.Customer) error {
	list = withIDs(list, func(e *model.Customer) *string { return &e.ID })
	for i := range list {
		list[i].MaintenancePaidMonths = slices.Clone(list[i].MaintenancePaidMonths)
		if list[i].MaintenancePaidMonths == nil {
			list[i].MaintenancePaidMonths = []string{}
		}
	}
	return c.mutate(func(d *model.Collections) error {
		d.Customers = list
		return nil
	}, model.KindCustomers)
}

// SetAutomations replaces the automation collection.
func (c *Container) SetAutomations(list []model.Automation) error {
	list = withIDs(list, func(e *model.Automation) *string { return &e.ID })
	return c.mutate(func(d *model.Collections) error {
		d.Automations = list
		return nil
	}, model.KindAutomations)
}

// SetProjects replaces the project collection.
func (c *Container) SetProjects(list []model.Project) error {
	list = withIDs(list, func(e *model.Project) *string { return &e.ID })
	return c.mutate(func(d *model.Collections) error {
		d.Projects = list
		return nil
	}, model.KindProjects)
}

// SetExpenses replaces the expense collection.
func (c *Container) SetExpenses(list []model.Expense) error {
	list = withIDs(list, func(e *model.Expense) *string { return &e.ID })
	return c.mutate(func(d *model.Collections) error {
		d.Expenses = list
		return nil
	}, model.KindExpenses)
}

// SetNotes replaces the note collection.
func (c *Container) SetNotes(list []model.Note) error {
	list = withIDs(list, func(e *model.Note) *string { return &e.ID })
	return c.mutate(func(d *model.Collections) error {
		d.Notes = list
		return nil
	}, model.KindNotes)
}

// SetPaymentHistory replaces the payment history. The order given is kept.
func (c *Container) SetPaymentHistory(list []model.PaymentHistory) error {
	list = withIDs(list, func(e *model.PaymentHistory) *string { return &e.ID })
	return c.mutate(func(d *model.Collections) error {
		d.PaymentHistory = list
		return nil
	}, model.KindPaymentHistory)
}

// SetBudgets replaces the budget collection. Every budget must be valid
// and a (category, month) pair may appear only once.
func (c *Container) SetBudgets(list []model.Budget) error {
	seen := make(map[[2]string]struct{}, len(list))
	for _, b := range list {
		if err := validateBudget(b.Category, b.Month, b.MonthlyTarget); err != nil {
			return err
		}
		key := [2]string{b.Category, b.Month}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s already has a budget for %s", ErrInvalidBudget, b.Category, b.Month)
		}
		seen[key] = struct{}{}
	}
	list = withIDs(list, func(e *model.Budget) *string { return &e.ID })
	return c.mutate(func(d *model.Collections) error {
		d.Budgets = list
		return nil
	}, model.KindBudgets)
}

// Replace sets one collection from a Collections value, for callers that
// hold the kind as data.
func (c *Container) Replace(kind model.Kind, from model.Collections) error {
	switch kind {
	case model.KindCustomers:
		return c.SetCustomers(from.Customers)
	case model.KindAutomations:
		return c.SetAutomations(from.Automations)
	case model.KindProjects:
		return c.SetProjects(from.Projects)
	case model.KindExpenses:
		return c.SetExpenses(from.Expenses)
	case model.KindNotes:
		return c.SetNotes(from.Notes)
	case model.KindPaymentHistory:
		return c.SetPaymentHistory(from.PaymentHistory)
	case model.KindBudgets:
		return c.SetBudgets(from.Budgets)
	}
	return fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

// AddPaymentRecord assigns an id when missing and prepends the record so the
// history stays newest first. The stored record is returned.
func (c *Container) AddPaymentRecord(p model.PaymentHistory) (model.PaymentHistory, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if !validAmount(p.Amount) {
		return model.PaymentHistory{}, fmt.Errorf("%w: %v", ErrInvalidAmount, p.Amount)
	}
	if p.Date == "" {
		p.Date = c.now().Format(time.DateOnly)
	}
	err := c.mutate(func(d *model.Collections) error {
		if p.CustomerName == "" {
			if i := customerIndex(d.Customers, p.CustomerID); i >= 0 {
				p.CustomerName = d.Customers[i].CompanyName
			}
		}
		d.PaymentHistory = append([]model.PaymentHistory{p}, d.PaymentHistory...)
		return nil
	}, model.KindPaymentHistory)
	if err != nil {
		return model.PaymentHistory{}, err
	}
	return p, nil
}

// SetBudget creates or updates the budget for (category, month). The month
// is YYYY-MM and the target must be positive.
func (c *Container) SetBudget(category, month string, target float64) (model.Budget, error) {
	if err := validateBudget(category, month, target); err != nil {
		return model.Budget{}, err
	}

	var out model.Budget
	err := c.mutate(func(d *model.Collections) error {
		for i, b := range d.Budgets {
			if b.Category == category && b.Month == month {
				d.Budgets[i].MonthlyTarget = target
				out = d.Budgets[i]
				return nil
			}
		}
		out = model.Budget{ID: NewID(), Category: category, MonthlyTarget: target, Month: month}
		d.Budgets = append(d.Budgets, out)
		return nil
	}, model.KindBudgets)
	return out, err
}

func validateBudget(category, month string, target float64) error {
	if category == "" {
		return fmt.Errorf("%w: empty category", ErrInvalidBudget)
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return fmt.Errorf("%w: month %q is not YYYY-MM", ErrInvalidBudget, month)
	}
	if !validAmount(target) || target <= 0 {
		return fmt.Errorf("%w: target %v must be positive", ErrInvalidBudget, target)
	}
	return nil
}

// ToggleMaintenancePaid flips whether the customer paid maintenance for the
// YYYY-MM month and reports the new state. Marking a month paid records a
// maintenance payment of the estimated cost dated today.
func (c *Container) ToggleMaintenancePaid(customerID, month string) (bool, error) {
	label, err := time.Parse("2006-01", month)
	if err != nil {
		return false, fmt.Errorf("month %q is not YYYY-MM: %w", month, err)
	}
	today := c.now().Format(time.DateOnly)

	var paid bool
	err = c.mutate(func(d *model.Collections) error {
		i := customerIndex(d.Customers, customerID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownCustomer, customerID)
		}
		cust := &d.Customers[i]
		months := slices.Clone(cust.MaintenancePaidMonths)
		if j := slices.Index(months, month); j >= 0 {
			months = slices.Delete(months, j, j+1)
		} else {
			months = append(months, month)
			slices.Sort(months)
			months = slices.Compact(months)
			paid = true
		}
		if months == nil {
			months = []string{}
		}
		cust.MaintenancePaidMonths = months

		if paid && cust.MaintenancePayment.EstimatedCost > 0 {
			d.PaymentHistory = append([]model.PaymentHistory{{
				ID:           NewID(),
				CustomerID:   cust.ID,
				CustomerName: cust.CompanyName,
				PaymentType:  model.PaymentMaintenance,
				Amount:       cust.MaintenancePayment.EstimatedCost,
				Date:         today,
				Notes:        "Maintenance payment for " + label.Format("January 2006"),
			}}, d.PaymentHistory...)
		}
		return nil
	}, model.KindCustomers, model.KindPaymentHistory)
	return paid, err
}

// UpdateCustomerPayment sets one field of a customer's payment stream. An
// increase of the amount paid records a payment for the difference.
func (c *Container) UpdateCustomerPayment(customerID string, pt model.PaymentType, field PaymentField, value float64) error {
	if !validAmount(value) {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, value)
	}
	if field != FieldEstimatedCost && field != FieldAmountPaid {
		return fmt.Errorf("unknown payment field %q", field)
	}
	today := c.now().Format(time.DateOnly)

	return c.mutate(func(d *model.Collections) error {
		i := customerIndex(d.Customers, customerID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownCustomer, customerID)
		}
		cust := &d.Customers[i]
		info := paymentStream(cust, pt)
		if info == nil {
			return fmt.Errorf("unknown payment type %q", pt)
		}

		if field == FieldEstimatedCost {
			info.EstimatedCost = value
			return nil
		}
		prev := info.AmountPaid
		info.AmountPaid = value
		if value > prev {
			d.PaymentHistory = append([]model.PaymentHistory{{
				ID:           NewID(),
				CustomerID:   cust.ID,
				CustomerName: cust.CompanyName,
				PaymentType:  pt,
				Amount:       value - prev,
				Date:         today,
				Notes:        "Payment updated via inline edit",
			}}, d.PaymentHistory...)
		}
		return nil
	}, model.KindCustomers, model.KindPaymentHistory)
}

func paymentStream(c *model.Customer, pt model.PaymentType) *model.PaymentInfo {
	switch pt {
	case model.PaymentProject:
		return &c.ProjectPayment
	case model.PaymentMaintenance:
		return &c.MaintenancePayment
	case model.PaymentNewRequirement:
		return &c.NewRequirementPayment
	}
	return nil
}

func customerIndex(customers []model.Customer, id string) int {
	return slices.IndexFunc(customers, func(c model.Customer) bool { return c.ID == id })
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
