package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true)
	logStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	barFullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// View renders the provider table and the scrolling log pane.
func (m Model) View() string {
	if m.quit {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("auto-proxy — live status") + "\n\n")

	for i, row := range m.rows {
		line := fmt.Sprintf("%-16s %-12s %2d/%-2d  last=%-3d  tokens=%-8d",
			row.Name,
			healthBar(row.HealthScore),
			row.CurrentRequests, row.RateLimit,
			row.LastStatusCode,
			row.TokenUsage,
		)

		switch {
		case row.IsDisabled:
			line = disabledStyle.Render(line)
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + headerStyle.Render("recent events") + "\n")
	for _, e := range lastN(m.logs, 10) {
		b.WriteString(logStyle.Render(fmt.Sprintf("[%s] %s: %s", e.Time.Format("15:04:05"), e.Severity, e.Message)) + "\n")
	}

	b.WriteString("\n↑/↓ select · enter/space toggle disabled · q quit\n")
	return b.String()
}

// healthBar renders a fixed-width bar proportional to a 0-100 score.
func healthBar(score int) string {
	const width = 10
	filled := score * width / 100
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) + barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
