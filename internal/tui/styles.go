package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sells-group/mailcheck/internal/analyzer"
)

var (
	accent = lipgloss.Color("#7D56F4")
	dim    = lipgloss.Color("#767676")
	red    = lipgloss.Color("#E5484D")
	yellow = lipgloss.Color("#F5D90A")
	green  = lipgloss.Color("#46A758")
	border = lipgloss.Color("#3C3C3C")
	bright = lipgloss.Color("#EDEDED")
)

var (
	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(accent)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(bright).
		Background(accent).
		Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
		Foreground(dim)

	valueStyle = lipgloss.NewStyle().
		Foreground(bright).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(red)

	clockStyle = lipgloss.NewStyle().
		Foreground(accent).
		Bold(true)

	footerKeyStyle = lipgloss.NewStyle().
		Foreground(accent).
		Bold(true)

	footerDescStyle = lipgloss.NewStyle().
		Foreground(dim)
)

// SeverityStyle returns the colour for a severity: red for high, yellow for
// medium, green for low.
func SeverityStyle(s analyzer.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch s {
	case analyzer.SeverityHigh:
		return base.Foreground(red)
	case analyzer.SeverityMedium:
		return base.Foreground(yellow)
	default:
		return base.Foreground(green)
	}
}
