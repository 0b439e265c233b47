package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sells-group/mailcheck/internal/dashboard"
)

// Bridge forwards dashboard snapshots into a running program. It outlives
// model copies, so listeners registered before the program starts can hold it.
type Bridge struct {
	mu      sync.RWMutex
	program *tea.Program
}

// NewBridge returns a Bridge with no program attached. Messages sent before
// SetProgram are dropped.
func NewBridge() *Bridge {
	return &Bridge{}
}

// SetProgram attaches p. A nil p detaches the current program.
func (b *Bridge) SetProgram(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	b.mu.Unlock()
}

// Send delivers msg to the program, blocking until it is read or the program
// exits.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.RLock()
	p := b.program
	b.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// OnSnapshot is a dashboard listener.
func (b *Bridge) OnSnapshot(s dashboard.Snapshot) {
	b.Send(SnapshotMsg(s))
}
