package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailcheck/internal/dashboard"
	"github.com/sells-group/mailcheck/internal/outcome"
	"github.com/sells-group/mailcheck/pkg/ipapi"
	"github.com/sells-group/mailcheck/pkg/openweather"
)

func sized(t *testing.T) Model {
	t.Helper()
	m, _ := NewModel().Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return m.(Model)
}

func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestModel_InitializingBeforeSize(t *testing.T) {
	assert.Equal(t, "Initializing...", NewModel().View())
	assert.Nil(t, NewModel().Init())
}

func TestModel_QuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		t.Run(msg.String(), func(t *testing.T) {
			_, cmd := sized(t).Update(msg)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
		})
	}
}

func TestModel_OtherKeysIgnored(t *testing.T) {
	_, cmd := sized(t).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd)
}

func TestModel_SnapshotMsg(t *testing.T) {
	snap := dashboard.Snapshot{Active: true, Loading: true, Location: outcome.Pending[ipapi.Location]()}
	m := apply(t, sized(t), SnapshotMsg(snap))
	assert.True(t, m.Snapshot().Loading)
	assert.True(t, m.Snapshot().Location.IsPending())
}

func TestView_Loading(t *testing.T) {
	m := apply(t, sized(t), SnapshotMsg(dashboard.Snapshot{
		Active:   true,
		Loading:  true,
		Location: outcome.Pending[ipapi.Location](),
	}))

	v := m.View()
	assert.Contains(t, v, "loading...")
	assert.Contains(t, v, "Locating...")
	assert.Contains(t, v, "Waiting for location...")
	assert.Contains(t, v, "--:--:--")
}

func TestView_Resolved(t *testing.T) {
	clock := time.Date(2026, time.October, 20, 14, 3, 9, 0, time.UTC)
	m := apply(t, sized(t), SnapshotMsg(dashboard.Snapshot{
		Active:   true,
		Clock:    clock,
		Location: outcome.Succeeded(ipapi.Location{Country: "France", City: "Paris", Query: "203.0.113.7"}),
		Weather: outcome.Succeeded(openweather.Current{
			Name:       "Paris",
			Conditions: []openweather.Condition{{Description: "light rain", Icon: "10d"}},
			Main:       openweather.Main{Temp: 12.6, Humidity: 81},
			Wind:       openweather.Wind{Speed: 5.25},
		}),
	}))

	v := m.View()
	for _, want := range []string{
		"France", "Paris", "203.0.113.7",
		"13°C", "Light Rain", "81%", "5.2 m/s",
		"14:03:09", "Tuesday, October 20, 2026",
		"quit",
	} {
		assert.Contains(t, v, want)
	}
	assert.NotContains(t, v, "loading...")
}

func TestView_Unavailable(t *testing.T) {
	m := apply(t, sized(t), SnapshotMsg(dashboard.Snapshot{
		Active:   true,
		Location: outcome.Failed[ipapi.Location](&outcome.ClassifiedError{Kind: outcome.KindServer, Message: "private range"}),
	}))

	v := m.View()
	assert.Contains(t, v, "Location unavailable")
	assert.Contains(t, v, "private range")
	assert.Contains(t, v, "Weather unavailable")
}

func TestView_WeatherFailed(t *testing.T) {
	m := apply(t, sized(t), SnapshotMsg(dashboard.Snapshot{
		Location: outcome.Succeeded(ipapi.Location{Country: "France", City: "Paris"}),
		Weather:  outcome.Failed[openweather.Current](&outcome.ClassifiedError{Kind: outcome.KindServer, Message: "city not found"}),
	}))

	v := m.View()
	assert.Contains(t, v, "Paris")
	assert.Contains(t, v, "Weather unavailable")
	assert.Contains(t, v, "city not found")
}
