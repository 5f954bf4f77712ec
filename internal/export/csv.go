// Package export writes financial reports and data snapshots, and uploads
// snapshots to S3-compatible storage.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/pipeline"
)

var reportHeader = []string{
	"Customer",
	"Service Type",
	"Status",
	"Project Estimated ($)",
	"Project Paid ($)",
	"Project Remaining ($)",
	"Maintenance Estimated ($)",
	"Maintenance Paid ($)",
	"Maintenance Remaining ($)",
	"Maintenance Due Date",
	"New Req. Estimated ($)",
	"New Req. Paid ($)",
	"New Req. Remaining ($)",
	"Total Estimated ($)",
	"Total Paid ($)",
	"Total Remaining ($)",
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// remaining is the outstanding balance, never negative.
func remaining(est, paid float64) float64 {
	return max(0, est-paid)
}

func streamCells(est, paid float64) []string {
	return []string{num(est), num(paid), num(remaining(est, paid))}
}

// WriteFinancialCSV writes one row per active customer followed by a TOTAL
// row built from the same customers.
func WriteFinancialCSV(w io.Writer, customers []model.Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, c := range customers {
		if c.Status != model.StatusActive {
			continue
		}
		p, m, n := c.ProjectPayment, c.MaintenancePayment, c.NewRequirementPayment
		est := p.EstimatedCost + m.EstimatedCost + n.EstimatedCost
		paid := p.AmountPaid + m.AmountPaid + n.AmountPaid

		row := []string{c.CompanyName, string(c.ServiceType), string(c.Status)}
		row = append(row, streamCells(p.EstimatedCost, p.AmountPaid)...)
		row = append(row, streamCells(m.EstimatedCost, m.AmountPaid)...)
		row = append(row, c.MaintenanceDueDate)
		row = append(row, streamCells(n.EstimatedCost, n.AmountPaid)...)
		row = append(row, streamCells(est, paid)...)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", c.ID, err)
		}
	}

	t := pipeline.FinancialTotals(customers)
	all := t.Total()
	total := []string{"TOTAL", "", ""}
	total = append(total, streamCells(t.Project.Estimated, t.Project.Paid)...)
	total = append(total, streamCells(t.Maintenance.Estimated, t.Maintenance.Paid)...)
	total = append(total, "")
	total = append(total, streamCells(t.NewRequirement.Estimated, t.NewRequirement.Paid)...)
	total = append(total, streamCells(all.Estimated, all.Paid)...)
	if err := cw.Write(total); err != nil {
		return fmt.Errorf("writing csv totals: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
