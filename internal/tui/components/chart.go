package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Series is one named set of values for a grouped bar chart.
type Series struct {
	Name   string
	Values []float64
	Color  lipgloss.Color
}

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak <= 0 {
		peak = 1
	}

	var buf strings.Builder
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		idx = min(max(idx, 0), len(blocks)-1)
		buf.WriteRune(blocks[idx])
	}
	return lipgloss.NewStyle().Foreground(color).Background(t.Surface).Render(buf.String())
}

// GroupedBarChart renders one group of bars per label, one bar per series,
// with a money y-axis. Used for the monthly revenue/expense trend.
func GroupedBarChart(series []Series, labels []string, width, height int) string {
	if len(series) == 0 || len(labels) == 0 {
		return ""
	}
	t := theme.Active
	height = max(height, 3)

	peak := 0.0
	for _, s := range series {
		for _, v := range s.Values {
			peak = max(peak, v)
		}
	}
	if peak <= 0 {
		peak = 1
	}
	step := chartTickStep(peak)
	ceiling := math.Ceil(peak/step) * step

	yLabelW := max(len(formatChartLabel(ceiling))+1, 5)
	groups := len(labels)
	perGroup := len(series)
	chartW := max(width-yLabelW-1, groups*(perGroup+1))
	barW := max((chartW/groups-1)/perGroup, 1)
	barW = min(barW, 4)
	groupW := barW*perGroup + 1

	blocks := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	blank := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	for row := height; row >= 1; row-- {
		top := ceiling * float64(row) / float64(height)
		bottom := ceiling * float64(row-1) / float64(height)

		label := ""
		if row == height {
			label = formatChartLabel(ceiling)
		} else if row == (height+1)/2 {
			label = formatChartLabel(ceiling / 2)
		}
		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, label)))
		b.WriteString(axisStyle.Render("│"))

		for g := range groups {
			for _, s := range series {
				v := 0.0
				if g < len(s.Values) {
					v = s.Values[g]
				}
				style := lipgloss.NewStyle().Foreground(s.Color).Background(t.Surface)
				switch {
				case v >= top:
					b.WriteString(style.Render(strings.Repeat("█", barW)))
				case v > bottom:
					idx := int((v - bottom) / (top - bottom) * 8)
					idx = min(max(idx, 1), 8)
					b.WriteString(style.Render(strings.Repeat(string(blocks[idx]), barW)))
				default:
					b.WriteString(blank.Render(strings.Repeat(" ", barW)))
				}
			}
			b.WriteString(blank.Render(" "))
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, "0")))
	b.WriteString(axisStyle.Render("└" + strings.Repeat("─", groups*groupW)))
	b.WriteString("\n")

	b.WriteString(blank.Render(strings.Repeat(" ", yLabelW+1)))
	for _, l := range labels {
		cell := l
		if len(cell) > groupW {
			cell = cell[:groupW]
		}
		b.WriteString(axisStyle.Render(fmt.Sprintf("%-*s", groupW, cell)))
	}

	b.WriteString("\n")
	b.WriteString(blank.Render(strings.Repeat(" ", yLabelW+1)))
	for i, s := range series {
		if i > 0 {
			b.WriteString(blank.Render("  "))
		}
		b.WriteString(lipgloss.NewStyle().Foreground(s.Color).Background(t.Surface).Render("█ "))
		b.WriteString(axisStyle.Render(s.Name))
	}
	return b.String()
}

// HBar is one row of a horizontal bar list.
type HBar struct {
	Label string
	Value float64
	Text  string // rendered right of the bar; defaults to the value
}

// HBarList renders labelled horizontal bars scaled to the largest value.
func HBarList(bars []HBar, color lipgloss.Color, width int) string {
	if len(bars) == 0 {
		return ""
	}
	t := theme.Active

	labelW := 0
	peak := 0.0
	for _, bar := range bars {
		labelW = max(labelW, lipgloss.Width(bar.Label))
		peak = max(peak, bar.Value)
	}
	barMax := max(width-labelW-14, 4)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	blank := lipgloss.NewStyle().Background(t.Surface)

	lines := make([]string, 0, len(bars))
	for _, bar := range bars {
		n := 0
		if peak > 0 {
			n = int(math.Round(bar.Value / peak * float64(barMax)))
		}
		n = max(n, 0)
		text := bar.Text
		if text == "" {
			text = formatChartLabel(bar.Value)
		}
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-*s ", labelW, bar.Label))+
			barStyle.Render(strings.Repeat("█", n))+
			blank.Render(strings.Repeat(" ", barMax-n+1))+
			valueStyle.Render(text))
	}
	return strings.Join(lines, "\n")
}

// chartTickStep computes a nice tick interval targeting ~5 ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	exp := math.Floor(math.Log10(rough))
	base := math.Pow(10, exp)
	frac := rough / base

	switch {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

// formatChartLabel renders an axis value as a compact dollar amount.
func formatChartLabel(v float64) string {
	switch {
	case v >= 1e6:
		return trimZero(fmt.Sprintf("$%.1fM", v/1e6))
	case v >= 1e3:
		return trimZero(fmt.Sprintf("$%.1fk", v/1e3))
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func trimZero(s string) string {
	return strings.Replace(s, ".0", "", 1)
}
