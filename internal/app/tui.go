// ABOUTME: Live TUI session for a playback run
// ABOUTME: Forwards dispatcher events and cancels the run when the user quits
package app

import (
	"context"
	"sync"

	"github.com/Resonate-Protocol/multiplay/internal/dispatch"
	"github.com/Resonate-Protocol/multiplay/internal/logging"
	"github.com/Resonate-Protocol/multiplay/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
)

// eventBuffer is the number of dispatcher events queued ahead of the TUI
const eventBuffer = 256

type tuiSession struct {
	prog    *tea.Program
	control *ui.Control
	events  *eventForwarder
	done    chan struct{}
	stop    chan struct{}
}

func startTUI(cancel context.CancelFunc, run ui.RunMsg) *tuiSession {
	control := ui.NewControl()
	prog := ui.Run(control)
	s := &tuiSession{
		prog:    prog,
		control: control,
		events:  newEventForwarder(prog.Send, eventBuffer),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if _, err := s.prog.Run(); err != nil {
			logging.GetLogger("ui").Error("TUI error", "error", err)
		}
	}()

	go func() {
		select {
		case <-control.Quit:
			cancel()
		case <-s.stop:
		}
	}()

	s.prog.Send(run)
	return s
}

// event is called from task goroutines and never blocks on the TUI
func (s *tuiSession) event(e dispatch.Event) {
	s.events.event(e)
}

// finish shows the final state, then closes the TUI
func (s *tuiSession) finish(failed int) {
	close(s.stop)
	s.events.close()
	s.prog.Send(ui.DoneMsg{Failed: failed})
	s.prog.Quit()
	<-s.done
}

// eventForwarder queues dispatcher events and delivers them from one goroutine
type eventForwarder struct {
	queue   chan dispatch.Event
	drained chan struct{}
	once    sync.Once
}

func newEventForwarder(send func(tea.Msg), size int) *eventForwarder {
	f := &eventForwarder{
		queue:   make(chan dispatch.Event, size),
		drained: make(chan struct{}),
	}

	go func() {
		defer close(f.drained)
		for e := range f.queue {
			send(ui.TaskMsg(e))
		}
	}()
	return f
}

// event enqueues e, dropping it when the queue is full
func (f *eventForwarder) event(e dispatch.Event) {
	select {
	case f.queue <- e:
	default:
		logging.GetLogger("ui").Debug("TUI event dropped", "device", e.Device.ID, "state", e.State)
	}
}

// close stops accepting events and waits until queued ones are delivered.
// Callers must not call event after close.
func (f *eventForwarder) close() {
	f.once.Do(func() { close(f.queue) })
	<-f.drained
}
