// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the messages fed into it
package ui

import (
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/dispatch"
	"github.com/Resonate-Protocol/multiplay/internal/registry"
	tea "github.com/charmbracelet/bubbletea"
)

// RunMsg announces a playback run
type RunMsg struct {
	File       string
	Backend    string
	SampleRate int
	Channels   int
	Duration   time.Duration
	Devices    []registry.Device
}

// TaskMsg carries a dispatcher state transition
type TaskMsg dispatch.Event

// DoneMsg marks every task terminal
type DoneMsg struct {
	Failed int
}

// QuitMsg is sent when the user quits the TUI
type QuitMsg struct{}

// Control carries signals from the TUI back to the caller
type Control struct {
	Quit chan QuitMsg
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Quit: make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(control *Control) Model {
	return Model{
		control: control,
		index:   make(map[int]int),
		now:     time.Now,
	}
}

// Run creates the TUI program; the caller starts it and sends messages with Send
func Run(control *Control) *tea.Program {
	return tea.NewProgram(NewModel(control), tea.WithAltScreen())
}
