package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/pipeline"
	"github.com/theirongolddev/opsdash/internal/tui/components"
	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderCustomersTab(cw, h int) string {
	t := theme.Active

	if len(a.coll.Customers) == 0 {
		return components.ContentCard("Customers",
			lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render("No customers yet. Run `opsdash seed` to load demo data."),
			cw)
	}

	if a.isCompactLayout() {
		listH := max(h/2, 6)
		list := a.renderCustomerList(cw, listH)
		detail := a.renderCustomerDetail(cw)
		return list + "\n" + detail
	}

	widths := components.LayoutRow(cw, 2)
	list := a.renderCustomerList(widths[0], h)
	detail := a.renderCustomerDetail(widths[1])
	return components.CardRow([]string{list, detail})
}

func (a App) renderCustomerList(outer, h int) string {
	t := theme.Active
	inner := components.CardInnerWidth(outer)
	month := pipeline.MonthKey(a.now())

	headerStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceHover).Bold(true)

	moneyW := 10
	statusW := 10
	paidW := 4
	nameW := max(inner-moneyW-statusW-paidW-3, 8)

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-*s %-*s %*s %*s", nameW, "Company", statusW, "Status", moneyW, "MRR", paidW, "Paid")))

	// Border (2) + title (1) + header (1)
	visible := max(h-4, 1)
	start := 0
	if a.cust.cursor >= visible {
		start = a.cust.cursor - visible + 1
	}
	end := min(start+visible, len(a.coll.Customers))

	for i := start; i < end; i++ {
		c := a.coll.Customers[i]
		paid := " "
		if c.Maintenance {
			paid = "·"
			if c.PaidMonth(month) {
				paid = "✓"
			}
		}
		line := fmt.Sprintf("%-*s %-*s %*s %*s",
			nameW, truncStr(c.CompanyName, nameW),
			statusW, truncStr(string(c.Status), statusW),
			moneyW, cli.FormatMoney(c.MonthlyRevenue),
			paidW, paid)
		style := rowStyle
		if i == a.cust.cursor {
			style = selStyle
		}
		b.WriteString("\n")
		b.WriteString(style.Render(line))
	}

	title := fmt.Sprintf("Customers (%d)", len(a.coll.Customers))
	return components.ContentCard(title, b.String(), outer)
}

func (a App) renderCustomerDetail(outer int) string {
	t := theme.Active
	c := a.coll.Customers[a.cust.cursor]
	month := pipeline.MonthKey(a.now())

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)

	kv := func(label, value string, color lipgloss.Color) string {
		vs := valueStyle
		if color != "" {
			vs = vs.Foreground(color)
		}
		return labelStyle.Render(fmt.Sprintf("%-14s", label)) + space.Render(" ") + vs.Render(value)
	}

	lines := []string{
		kv("Status", string(c.Status), t.StatusColor(string(c.Status))),
		kv("Service", string(c.ServiceType), ""),
		kv("Country", cli.OrDash(c.Country), ""),
		kv("MRR", cli.FormatMoney(c.MonthlyRevenue), t.Green),
		kv("Started", cli.OrDash(c.BusinessStartDate), ""),
	}
	if c.ClosingDate != "" {
		lines = append(lines, kv("Closed", c.ClosingDate, ""))
	}
	if c.Maintenance {
		status, color := "unpaid", t.Orange
		if c.PaidMonth(month) {
			status, color = "paid", t.Green
		}
		lines = append(lines,
			kv("Maintenance", fmt.Sprintf("%s for %s", status, cli.FormatMonth(month)), color),
			kv("Due", cli.OrDash(c.MaintenanceDueDate), ""),
			kv("Paid months", fmt.Sprintf("%d", len(c.MaintenancePaidMonths)), ""))
	} else {
		lines = append(lines, kv("Maintenance", "none", t.TextDim))
	}

	lines = append(lines, "", labelStyle.Bold(true).Render("Payments"))
	lines = append(lines, dimStyle.Render(fmt.Sprintf("%-16s %10s %10s %10s", "", "Estimated", "Paid", "Remaining")))
	for _, pt := range []model.PaymentType{model.PaymentProject, model.PaymentMaintenance, model.PaymentNewRequirement} {
		p := c.Payment(pt)
		remainingColor := t.TextPrimary
		if p.Remaining() > 0 {
			remainingColor = t.Orange
		}
		lines = append(lines,
			labelStyle.Render(fmt.Sprintf("%-16s", paymentLabel(pt)))+
				valueStyle.Render(fmt.Sprintf(" %10s %10s ", cli.FormatMoney(p.EstimatedCost), cli.FormatMoney(p.AmountPaid)))+
				valueStyle.Foreground(remainingColor).Render(fmt.Sprintf("%10s", cli.FormatMoney(p.Remaining()))))
	}

	if c.Notes != "" {
		lines = append(lines, "", dimStyle.Render(truncStr(c.Notes, components.CardInnerWidth(outer))))
	}
	lines = append(lines, "", dimStyle.Render("[m] toggle maintenance paid this month"))

	return components.ContentCard(c.CompanyName, strings.Join(lines, "\n"), outer)
}

func paymentLabel(pt model.PaymentType) string {
	switch pt {
	case model.PaymentMaintenance:
		return "Maintenance"
	case model.PaymentNewRequirement:
		return "New requirement"
	default:
		return "Project"
	}
}
