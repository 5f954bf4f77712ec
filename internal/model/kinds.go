package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned when a string does not name an entity kind.
	ErrUnknownKind = errors.New("unknown entity kind")
	// ErrDuplicateID is returned when a collection repeats an entity id.
	ErrDuplicateID = errors.New("duplicate entity id")
)

// Kind names an entity kind. The value doubles as the table name in both
// the local cache and the remote store.
type Kind string

const (
	KindCustomers      Kind = "customers"
	KindAutomations    Kind = "automations"
	KindProjects       Kind = "projects"
	KindExpenses       Kind = "expenses"
	KindNotes          Kind = "notes"
	KindPaymentHistory Kind = "payment_history"
	KindBudgets        Kind = "budgets"
)

// Kinds lists every entity kind in load order.
var Kinds = []Kind{
	KindCustomers,
	KindAutomations,
	KindProjects,
	KindExpenses,
	KindNotes,
	KindPaymentHistory,
	KindBudgets,
}

// ParseKind resolves a kind from its table name or a short alias.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "customers", "customer":
		return KindCustomers, nil
	case "automations", "automation":
		return KindAutomations, nil
	case "projects", "project":
		return KindProjects, nil
	case "expenses", "expense":
		return KindExpenses, nil
	case "notes", "note":
		return KindNotes, nil
	case "payment_history", "payments", "payment", "paymentHistory":
		return KindPaymentHistory, nil
	case "budgets", "budget":
		return KindBudgets, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// ServiceType classifies what a customer or project buys.
type ServiceType string

const (
	ServiceWebsite    ServiceType = "Website"
	ServiceSoftware   ServiceType = "Software"
	ServiceAutomation ServiceType = "Automation"
	ServiceMixed      ServiceType = "Mixed"
)

// ServiceTypes is the canonical display order.
var ServiceTypes = []ServiceType{ServiceWebsite, ServiceSoftware, ServiceAutomation, ServiceMixed}

// CustomerStatus is the lifecycle state of a customer.
type CustomerStatus string

const (
	StatusActive   CustomerStatus = "Active"
	StatusPaused   CustomerStatus = "Paused"
	StatusOptedOut CustomerStatus = "Opted Out"
)

// CustomerStatuses is the canonical display order.
var CustomerStatuses = []CustomerStatus{StatusActive, StatusPaused, StatusOptedOut}

// AutomationStatus is the health of an automation.
type AutomationStatus string

const (
	AutomationHealthy AutomationStatus = "Healthy"
	AutomationWarning AutomationStatus = "Warning"
	AutomationFailed  AutomationStatus = "Failed"
)

// ProjectStatus is the delivery state of a project.
type ProjectStatus string

const (
	ProjectLive        ProjectStatus = "Live"
	ProjectDevelopment ProjectStatus = "Development"
	ProjectPaused      ProjectStatus = "Paused"
	ProjectCompleted   ProjectStatus = "Completed"
)

// NoteType distinguishes notes, todos and reminders.
type NoteType string

const (
	NoteNote     NoteType = "note"
	NoteTodo     NoteType = "todo"
	NoteReminder NoteType = "reminder"
)

// PaymentType identifies which payment stream a payment belongs to.
type PaymentType string

const (
	PaymentProject        PaymentType = "project"
	PaymentMaintenance    PaymentType = "maintenance"
	PaymentNewRequirement PaymentType = "newRequirement"
)

// ParsePaymentType accepts the wire value or a few CLI-friendly spellings.
func ParsePaymentType(s string) (PaymentType, error) {
	switch s {
	case "project":
		return PaymentProject, nil
	case "maintenance":
		return PaymentMaintenance, nil
	case "newRequirement", "new-requirement", "new_requirement":
		return PaymentNewRequirement, nil
	}
	return "", fmt.Errorf("unknown payment type %q", s)
}

// IsOneTime reports whether payments of this type count as one-time revenue.
func (p PaymentType) IsOneTime() bool {
	return p == PaymentProject || p == PaymentNewRequirement
}
