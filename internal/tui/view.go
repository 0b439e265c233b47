package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/mailcheck/internal/dashboard"
)

var titleCase = cases.Title(language.English)

const (
	timeLayout = "15:04:05"
	dateLayout = "Monday, January 2, 2006"
	panelWidth = 34
)

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := headerStyle.Render("mailcheck dashboard")
	if m.snap.Loading {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, labelStyle.Render("  loading..."))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		panel("Location", locationLines(m.snap)),
		panel("Weather", weatherLines(m.snap)),
		panel("Clock", clockLines(m.snap.Clock)),
	)

	help := m.keymap.Quit.Help()
	footer := footerKeyStyle.Render(help.Key) + " " + footerDescStyle.Render(help.Desc)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func panel(title string, lines []string) string {
	content := titleStyle.Render(title) + "\n" + strings.Join(lines, "\n")
	return panelStyle.Width(panelWidth).Render(content)
}

func field(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

func locationLines(s dashboard.Snapshot) []string {
	switch {
	case s.Location.IsPending():
		return []string{labelStyle.Render("Locating...")}
	case s.Location.IsFailed():
		return []string{errorStyle.Render("Location unavailable"), labelStyle.Render(s.Location.Err().Message)}
	}
	loc, ok := s.Location.Value()
	if !ok {
		return []string{labelStyle.Render("Location unavailable")}
	}
	return []string{
		field("Country", orDash(loc.Country)),
		field("City", orDash(loc.City)),
		field("IP", orDash(loc.Query)),
	}
}

func weatherLines(s dashboard.Snapshot) []string {
	switch {
	case s.Weather.IsPending():
		return []string{labelStyle.Render("Loading weather...")}
	case s.Weather.IsFailed():
		return []string{errorStyle.Render("Weather unavailable"), labelStyle.Render(s.Weather.Err().Message)}
	}
	cur, ok := s.Weather.Value()
	if !ok {
		if s.Loading {
			return []string{labelStyle.Render("Waiting for location...")}
		}
		return []string{labelStyle.Render("Weather unavailable")}
	}

	desc := "-"
	if cond, ok := cur.Condition(); ok {
		desc = titleCase.String(cond.Description)
	}
	lines := []string{
		valueStyle.Render(fmt.Sprintf("%d°C", cur.RoundedTemp())) + " " + labelStyle.Render(desc),
		field("Humidity", fmt.Sprintf("%d%%", cur.Main.Humidity)),
		field("Wind", fmt.Sprintf("%.1f m/s", cur.Wind.Speed)),
	}
	if icon := cur.IconURL(); icon != "" {
		lines = append(lines, labelStyle.Render(icon))
	}
	return lines
}

func clockLines(t time.Time) []string {
	if t.IsZero() {
		return []string{clockStyle.Render("--:--:--")}
	}
	return []string{
		clockStyle.Render(t.Format(timeLayout)),
		labelStyle.Render(t.Format(dateLayout)),
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
