package state

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/theirongolddev/opsdash/internal/model"
)

// demoNamespace scopes the deterministic demo ids, so seeding twice
// updates the same records instead of duplicating them.
var demoNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://opsdash.local/demo"))

func demoID(kind model.Kind, n int) string {
	return uuid.NewSHA1(demoNamespace, fmt.Appendf(nil, "%s/%d", kind, n)).String()
}

func pay(est, paid float64) model.PaymentInfo {
	return model.PaymentInfo{EstimatedCost: est, AmountPaid: paid}
}

// DemoData returns the sample dataset used by the seed command.
func DemoData() model.Collections {
	cid := func(n int) string { return demoID(model.KindCustomers, n) }

	customers := []model.Customer{
		{
			ID:                    cid(1),
			CompanyName:           "TechCorp GmbH",
			Country:               "Germany",
			ServiceType:           model.ServiceSoftware,
			Status:                model.StatusActive,
			Maintenance:           true,
			MonthlyRevenue:        2500,
			Notes:                 "Enterprise client",
			BusinessStartDate:     "2024-03-15",
			ProjectPayment:        pay(15000, 15000),
			MaintenancePayment:    pay(500, 500),
			MaintenanceDueDate:    "2026-02-01",
			MaintenancePaidMonths: []string{"2025-12", "2026-01"},
		},
		{
			ID:                    cid(2),
			CompanyName:           "Nordic Solutions AB",
			Country:               "Sweden",
			ServiceType:           model.ServiceWebsite,
			Status:                model.StatusActive,
			Maintenance:           true,
			MonthlyRevenue:        800,
			Notes:                 "Renewed Q4",
			BusinessStartDate:     "2024-06-01",
			ProjectPayment:        pay(5000, 5000),
			MaintenancePayment:    pay(200, 200),
			NewRequirementPayment: pay(1000, 500),
			MaintenanceDueDate:    "2026-02-01",
			MaintenancePaidMonths: []string{"2025-12", "2026-01"},
		},
		{
			ID:                    cid(3),
			CompanyName:           "Alpine Tech AG",
			Country:               "Switzerland",
			ServiceType:           model.ServiceAutomation,
			Status:                model.StatusActive,
			MonthlyRevenue:        1500,
			Notes:                 "Needs maintenance discussion",
			BusinessStartDate:     "2024-08-20",
			ProjectPayment:        pay(8000, 6000),
			NewRequirementPayment: pay(2000, 2000),
			MaintenancePaidMonths: []string{},
		},
		{
			ID:                    cid(4),
			CompanyName:           "Dutch Digital BV",
			Country:               "Netherlands",
			ServiceType:           model.ServiceMixed,
			Status:                model.StatusPaused,
			Notes:                 "Paused since Nov 2024",
			BusinessStartDate:     "2024-01-10",
			ClosingDate:           "2024-11-15",
			ProjectPayment:        pay(12000, 8000),
			MaintenancePaidMonths: []string{},
		},
		{
			ID:                    cid(5),
			CompanyName:           "Iberia Systems SL",
			Country:               "Spain",
			ServiceType:           model.ServiceWebsite,
			Status:                model.StatusOptedOut,
			Notes:                 "Left for competitor",
			BusinessStartDate:     "2023-09-01",
			ClosingDate:           "2025-01-05",
			ProjectPayment:        pay(4000, 4000),
			MaintenancePaidMonths: []string{},
		},
		{
			ID:                    cid(6),
			CompanyName:           "Baltic Innovations",
			Country:               "Estonia",
			ServiceType:           model.ServiceAutomation,
			Status:                model.StatusActive,
			Maintenance:           true,
			MonthlyRevenue:        1200,
			Notes:                 "Growing account",
			BusinessStartDate:     "2024-10-01",
			ProjectPayment:        pay(6000, 6000),
			MaintenancePayment:    pay(300, 0),
			NewRequirementPayment: pay(500, 500),
			MaintenanceDueDate:    "2026-01-15",
			MaintenancePaidMonths: []string{"2025-12"},
		},
	}

	pid := func(n int) string { return demoID(model.KindProjects, n) }
	projects := []model.Project{
		{ID: pid(1), ClientName: "TechCorp GmbH", ProjectName: "CRM Dashboard", Status: model.ProjectLive, Maintenance: true, Revenue: 2500, Notes: "Monthly updates", Type: model.ServiceSoftware},
		{ID: pid(2), ClientName: "Nordic Solutions AB", ProjectName: "Corporate Website", Status: model.ProjectLive, Maintenance: true, Revenue: 800, Type: model.ServiceWebsite},
		{ID: pid(3), ClientName: "Alpine Tech AG", ProjectName: "Invoice Automation", Status: model.ProjectLive, Revenue: 1500, Notes: "Needs review", Type: model.ServiceAutomation},
		{ID: pid(4), ClientName: "Baltic Innovations", ProjectName: "Data Pipeline", Status: model.ProjectDevelopment, Notes: "Launch Q1", Type: model.ServiceAutomation},
		{ID: pid(5), ClientName: "Dutch Digital BV", ProjectName: "E-commerce Site", Status: model.ProjectPaused, Notes: "Client paused", Type: model.ServiceWebsite},
	}

	aid := func(n int) string { return demoID(model.KindAutomations, n) }
	automations := []model.Automation{
		{ID: aid(1), ClientName: "TechCorp GmbH", AutomationName: "Report Generator", Runtime: 45, ExecutionCount: 120, Status: model.AutomationHealthy},
		{ID: aid(2), ClientName: "Alpine Tech AG", AutomationName: "Invoice Processing", Runtime: 22, ExecutionCount: 85, Status: model.AutomationHealthy},
		{ID: aid(3), ClientName: "Baltic Innovations", AutomationName: "Data Sync", Runtime: 68, ExecutionCount: 240, Status: model.AutomationWarning, ManualIntervention: true},
		{ID: aid(4), ClientName: "Nordic Solutions AB", AutomationName: "Email Parser", Runtime: 12, ExecutionCount: 45, Status: model.AutomationHealthy},
		{ID: aid(5), ClientName: "TechCorp GmbH", AutomationName: "Backup Script", Runtime: 8, ExecutionCount: 30, Status: model.AutomationFailed, ManualIntervention: true},
	}

	eid := func(n int) string { return demoID(model.KindExpenses, n) }
	expenses := []model.Expense{
		{ID: eid(1), Category: "Infrastructure", Description: "Cloud hosting (AWS)", Amount: 850, Recurring: true},
		{ID: eid(2), Category: "Software", Description: "Development tools licenses", Amount: 320, Recurring: true},
		{ID: eid(3), Category: "Marketing", Description: "LinkedIn Ads campaign", Amount: 500},
		{ID: eid(4), Category: "Personnel", Description: "Contractor payment", Amount: 2000},
		{ID: eid(5), Category: "Office", Description: "Coworking space", Amount: 450, Recurring: true},
	}

	nid := func(n int) string { return demoID(model.KindNotes, n) }
	notes := []model.Note{
		{ID: nid(1), Content: "Follow up with TechCorp GmbH about Q1 expansion", Type: model.NoteTodo, Date: "2026-01-15"},
		{ID: nid(2), Content: "Alpine Tech AG maintenance contract expires Feb 2026", Type: model.NoteReminder, Date: "2026-02-01"},
		{ID: nid(3), Content: "Consider offering Baltic Innovations a premium tier", Type: model.NoteNote},
		{ID: nid(4), Content: "Prepare Q4 2025 financial report", Type: model.NoteTodo, Completed: true, Date: "2026-01-10"},
	}

	hid := func(n int) string { return demoID(model.KindPaymentHistory, n) }
	payments := []model.PaymentHistory{
		{ID: hid(3), CustomerID: cid(1), CustomerName: "TechCorp GmbH", PaymentType: model.PaymentMaintenance, Amount: 500, Date: "2026-01-01", Notes: "Jan 2026 maintenance"},
		{ID: hid(2), CustomerID: cid(1), CustomerName: "TechCorp GmbH", PaymentType: model.PaymentMaintenance, Amount: 500, Date: "2025-12-01", Notes: "Dec 2025 maintenance"},
		{ID: hid(5), CustomerID: cid(2), CustomerName: "Nordic Solutions AB", PaymentType: model.PaymentMaintenance, Amount: 200, Date: "2025-12-01", Notes: "Dec 2025 maintenance"},
		{ID: hid(10), CustomerID: cid(6), CustomerName: "Baltic Innovations", PaymentType: model.PaymentNewRequirement, Amount: 500, Date: "2025-12-01", Notes: "API integration"},
		{ID: hid(6), CustomerID: cid(2), CustomerName: "Nordic Solutions AB", PaymentType: model.PaymentNewRequirement, Amount: 500, Date: "2025-11-15", Notes: "Additional feature request"},
		{ID: hid(8), CustomerID: cid(3), CustomerName: "Alpine Tech AG", PaymentType: model.PaymentNewRequirement, Amount: 2000, Date: "2025-10-20", Notes: "New automation workflow"},
		{ID: hid(9), CustomerID: cid(6), CustomerName: "Baltic Innovations", PaymentType: model.PaymentProject, Amount: 6000, Date: "2024-10-15", Notes: "Full project payment"},
		{ID: hid(7), CustomerID: cid(3), CustomerName: "Alpine Tech AG", PaymentType: model.PaymentProject, Amount: 6000, Date: "2024-09-01", Notes: "Partial payment"},
		{ID: hid(4), CustomerID: cid(2), CustomerName: "Nordic Solutions AB", PaymentType: model.PaymentProject, Amount: 5000, Date: "2024-06-15", Notes: "Full project payment"},
		{ID: hid(1), CustomerID: cid(1), CustomerName: "TechCorp GmbH", PaymentType: model.PaymentProject, Amount: 15000, Date: "2024-03-20", Notes: "Full project payment"},
	}

	bid := func(n int) string { return demoID(model.KindBudgets, n) }
	budgets := []model.Budget{
		{ID: bid(1), Category: "Infrastructure", MonthlyTarget: 900, Month: "2026-01"},
		{ID: bid(2), Category: "Marketing", MonthlyTarget: 400, Month: "2026-01"},
	}

	return model.Collections{
		Customers:      customers,
		Automations:    automations,
		Projects:       projects,
		Expenses:       expenses,
		Notes:          notes,
		PaymentHistory: payments,
		Budgets:        budgets,
	}
}

// mergeByID overlays add onto cur: records with a known id are replaced in
// place, new ones are appended.
func mergeByID[T model.Entity](cur, add []T) []T {
	out := slices.Clone(cur)
	at := make(map[string]int, len(out))
	for i, e := range out {
		at[e.EntityID()] = i
	}
	for _, e := range add {
		if i, ok := at[e.EntityID()]; ok {
			out[i] = e
			continue
		}
		at[e.EntityID()] = len(out)
		out = append(out, e)
	}
	return out
}

// unclaimedBudgets drops demo budgets whose (category, month) is already
// budgeted under another id.
func unclaimedBudgets(cur, demo []model.Budget) []model.Budget {
	owner := make(map[[2]string]string, len(cur))
	for _, b := range cur {
		owner[[2]string{b.Category, b.Month}] = b.ID
	}
	out := make([]model.Budget, 0, len(demo))
	for _, b := range demo {
		if id, ok := owner[[2]string{b.Category, b.Month}]; ok && id != b.ID {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Seed merges the demo dataset into the current collections through the
// regular mutation entry points, so it is synced like any other edit.
// Existing records other than the demo ones are kept.
func (c *Container) Seed() error {
	demo := DemoData()
	cur := c.Collections()
	merged := model.Collections{
		Customers:      mergeByID(cur.Customers, demo.Customers),
		Automations:    mergeByID(cur.Automations, demo.Automations),
		Projects:       mergeByID(cur.Projects, demo.Projects),
		Expenses:       mergeByID(cur.Expenses, demo.Expenses),
		Notes:          mergeByID(cur.Notes, demo.Notes),
		PaymentHistory: mergeByID(cur.PaymentHistory, demo.PaymentHistory),
		Budgets:        mergeByID(cur.Budgets, unclaimedBudgets(cur.Budgets, demo.Budgets)),
	}
	for _, k := range model.Kinds {
		if err := c.Replace(k, merged); err != nil {
			return fmt.Errorf("seeding %s: %w", k, err)
		}
	}
	return nil
}
