// Package tui renders the dashboard in the terminal.
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mailcheck/internal/dashboard"
)

// SnapshotMsg carries a dashboard snapshot into the program.
type SnapshotMsg dashboard.Snapshot

// Controller starts and stops the aggregation behind the view.
type Controller interface {
	Activate()
	Deactivate()
}

// Model is the root bubbletea model.
type Model struct {
	snap   dashboard.Snapshot
	keymap KeyMap
	width  int
	height int
}

// NewModel returns a model showing an inactive dashboard.
func NewModel() Model {
	return Model{keymap: DefaultKeyMap()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.Quit) {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SnapshotMsg:
		m.snap = dashboard.Snapshot(msg)
		return m, nil
	}
	return m, nil
}

// Snapshot returns the last snapshot the model received.
func (m Model) Snapshot() dashboard.Snapshot {
	return m.snap
}

// Run activates ctrl, shows the dashboard until the user quits or ctx is
// cancelled, then deactivates ctrl. bridge must be the listener ctrl
// publishes snapshots to.
func Run(ctx context.Context, ctrl Controller, bridge *Bridge, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(), opts...)
	bridge.SetProgram(p)

	ctrl.Activate()
	_, err := p.Run()
	bridge.SetProgram(nil)
	ctrl.Deactivate()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return eris.Wrap(err, "tui: run")
	}
	return nil
}
