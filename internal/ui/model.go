// ABOUTME: Bubbletea model for the playback TUI
// ABOUTME: Tracks every device task's state, delay and elapsed time
package ui

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/dispatch"
	tea "github.com/charmbracelet/bubbletea"
)

// taskRow is one device line in the view
type taskRow struct {
	id      int
	name    string
	state   dispatch.State
	delay   time.Duration
	started time.Time
	ended   time.Time
	err     error
}

// Model represents the TUI state
type Model struct {
	// Run
	file       string
	backend    string
	sampleRate int
	channels   int
	duration   time.Duration

	// Tasks in device order
	rows  []taskRow
	index map[int]int

	done      bool
	failed    int
	showDebug bool

	control *Control
	now     func() time.Time

	// Dimensions
	width  int
	height int
}

// Init starts the elapsed-time ticker
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case RunMsg:
		m.applyRun(msg)
	case TaskMsg:
		m.applyTask(dispatch.Event(msg))
	case DoneMsg:
		m.done = true
		m.failed = msg.Failed
	case tickMsg:
		if !m.done {
			return m, tick()
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTasks()
	s += m.renderFooter()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the file and format
func (m Model) renderHeader() string {
	format := "-"
	if m.sampleRate > 0 {
		format = fmt.Sprintf("%dHz %s %s", m.sampleRate, channelName(m.channels), m.duration.Round(time.Millisecond))
	}

	return fmt.Sprintf(`┌─ Multiplay ──────────────────────────────────────────┐
│ File:    %-43s │
│ Format:  %-43s │
│ Backend: %-43s │
├──────────────────────────────────────────────────────┤
│ %-4s %-19s %-11s %8s %6s │
`, truncate(m.file, 43), truncate(format, 43), truncate(m.backend, 43),
		"ID", "Device", "State", "Delay", "Time")
}

// renderTasks renders one line per device
func (m Model) renderTasks() string {
	if len(m.rows) == 0 {
		return "│ No devices                                           │\n"
	}

	s := ""
	for _, r := range m.rows {
		s += fmt.Sprintf("│ %-4d %-19s %-11s %8s %6s │\n",
			r.id, truncate(r.name, 19), stateIcon(r.state)+" "+r.state.String(),
			fmt.Sprintf("%dms", r.delay.Milliseconds()), m.elapsed(r))
	}
	return s
}

// renderFooter renders overall progress
func (m Model) renderFooter() string {
	terminal := 0
	for _, r := range m.rows {
		if r.state.Terminal() {
			terminal++
		}
	}

	status := fmt.Sprintf("Playing %d/%d finished", terminal, len(m.rows))
	if m.done {
		status = fmt.Sprintf("Done: %d completed, %d failed", len(m.rows)-m.failed, m.failed)
	}

	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Progress: [%s] %-29s │
`, renderBar(terminal, len(m.rows), 10), truncate(status, 29))
}

// renderDebug renders task errors
func (m Model) renderDebug() string {
	s := "│ Errors:                                              │\n"
	for _, r := range m.rows {
		if r.err != nil {
			s += fmt.Sprintf("│   %-4d %-45s │\n", r.id, truncate(r.err.Error(), 45))
		}
	}
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ d:Errors  q:Quit                                     │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.control != nil {
			select {
			case m.control.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyRun resets the rows for a new run
func (m *Model) applyRun(msg RunMsg) {
	m.file = msg.File
	m.backend = msg.Backend
	m.sampleRate = msg.SampleRate
	m.channels = msg.Channels
	m.duration = msg.Duration
	m.done = false
	m.failed = 0

	m.rows = make([]taskRow, 0, len(msg.Devices))
	m.index = make(map[int]int, len(msg.Devices))
	for _, d := range msg.Devices {
		m.index[d.ID] = len(m.rows)
		m.rows = append(m.rows, taskRow{id: d.ID, name: d.Name, state: dispatch.StatePending})
	}
}

// applyTask updates a row from a dispatcher event
func (m *Model) applyTask(e dispatch.Event) {
	i, ok := m.index[e.Device.ID]
	if !ok {
		if m.index == nil {
			m.index = make(map[int]int)
		}
		i = len(m.rows)
		m.index[e.Device.ID] = i
		m.rows = append(m.rows, taskRow{id: e.Device.ID, name: e.Device.Name})
	}

	r := &m.rows[i]
	r.state = e.State
	r.delay = e.Delay
	switch {
	case e.State == dispatch.StateStreaming:
		r.started = e.At
	case e.State.Terminal():
		r.ended = e.At
		r.err = e.Err
	}
}

// elapsed returns streaming time for a row
func (m Model) elapsed(r taskRow) string {
	if r.started.IsZero() {
		return "-"
	}
	end := r.ended
	if end.IsZero() {
		end = m.now()
	}
	return fmt.Sprintf("%.1fs", end.Sub(r.started).Seconds())
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		max = 1
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

func stateIcon(s dispatch.State) string {
	switch s {
	case dispatch.StateDelaying:
		return "…"
	case dispatch.StateStreaming:
		return "▶"
	case dispatch.StateCompleted:
		return "✓"
	case dispatch.StateFailed:
		return "✗"
	default:
		return "·"
	}
}
