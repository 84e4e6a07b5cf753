// ABOUTME: Latency-compensated multi-device playback dispatcher
// ABOUTME: Runs one delayed playback task per device and collects every outcome
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/config"
	"github.com/Resonate-Protocol/multiplay/internal/latency"
	"github.com/Resonate-Protocol/multiplay/internal/logging"
	"github.com/Resonate-Protocol/multiplay/internal/registry"
	"github.com/Resonate-Protocol/multiplay/pkg/audio"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/output"
)

// ErrNoAudio is returned when the buffer has no frames
var ErrNoAudio = errors.New("audio buffer is empty")

// State is a playback task state
type State int

const (
	StatePending State = iota
	StateDelaying
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDelaying:
		return "delaying"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions follow
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Event is a task state transition
type Event struct {
	Device registry.Device
	State  State
	Delay  time.Duration
	Err    error
	At     time.Time
}

// Outcome is the final result of one device's task
type Outcome struct {
	Device registry.Device
	Delay  time.Duration
	State  State
	Err    error

	Started      time.Time // task start
	WriteStarted time.Time // zero if the stream never opened
	Finished     time.Time
}

// WriteDuration returns how long the blocking write took
func (o Outcome) WriteDuration() time.Duration {
	if o.WriteStarted.IsZero() {
		return 0
	}
	return o.Finished.Sub(o.WriteStarted)
}

// Config holds dispatcher configuration
type Config struct {
	Backend output.Backend

	// OnEvent receives every state transition. It is called from task
	// goroutines concurrently and must be safe for concurrent use.
	OnEvent func(Event)
}

// Dispatcher plays one buffer on many devices
type Dispatcher struct {
	config Config
	logger *slog.Logger
}

// New creates a dispatcher
func New(config Config) *Dispatcher {
	return &Dispatcher{
		config: config,
		logger: logging.GetLogger("dispatch"),
	}
}

// Run starts one task per device, each waiting its table delay before
// opening a stream and writing buf. It returns once every task is terminal,
// with outcomes in device order. A nil table plays every device at delay 0.
// Per-device failures are reported in the outcomes, never as the error.
func (d *Dispatcher) Run(ctx context.Context, devices []registry.Device, table *latency.Table, buf *audio.Buffer) ([]Outcome, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no devices to play on", config.ErrMissingOrMalformed)
	}
	if buf.Frames() == 0 {
		return nil, ErrNoAudio
	}

	outcomes := make([]Outcome, len(devices))
	delays := make([]time.Duration, len(devices))
	for i, dev := range devices {
		if table != nil {
			if _, ok := table.Lookup(dev.ID); !ok {
				d.logger.Info("Device missing from latency table, playing without delay",
					"device_id", dev.ID, "name", dev.Name)
			}
		}
		delays[i] = table.Delay(dev.ID)
		outcomes[i] = Outcome{Device: dev, Delay: delays[i], State: StatePending}
		d.emit(Event{Device: dev, State: StatePending, Delay: delays[i], At: time.Now()})
	}

	d.logger.Info("Starting playback", "devices", len(devices),
		"sample_rate", buf.SampleRate, "channels", buf.Channels, "duration", buf.Duration())

	var wg sync.WaitGroup
	for i := range devices {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = d.runTask(ctx, devices[i], delays[i], buf)
		}(i)
	}
	wg.Wait()

	return outcomes, nil
}

// runTask plays buf on one device. It never panics.
func (d *Dispatcher) runTask(ctx context.Context, dev registry.Device, delay time.Duration, buf *audio.Buffer) (out Outcome) {
	logger := d.logger.With("device_id", dev.ID, "name", dev.Name)
	out = Outcome{Device: dev, Delay: delay, State: StatePending, Started: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("playback task panicked: %v", r)
		}
		out.Finished = time.Now()
		if out.Err != nil {
			out.State = StateFailed
			logger.Error("Playback failed", "error", out.Err)
		} else {
			out.State = StateCompleted
			logger.Info("Playback completed", "write", out.WriteDuration())
		}
		d.emit(Event{Device: dev, State: out.State, Delay: delay, Err: out.Err, At: out.Finished})
	}()

	if delay > 0 {
		d.transition(logger, dev, StateDelaying, delay)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			out.Err = fmt.Errorf("interrupted during delay: %w", ctx.Err())
			return out
		}
	}

	d.transition(logger, dev, StateStreaming, delay)

	stream, err := d.config.Backend.Open(output.StreamConfig{
		DeviceID:   dev.ID,
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	})
	if err != nil {
		out.Err = err
		return out
	}

	out.WriteStarted = time.Now()
	writeErr := stream.Write(buf.Samples)
	closeErr := stream.Close()

	switch {
	case writeErr != nil:
		out.Err = writeErr
	case closeErr != nil:
		logger.Warn("Stream close failed", "error", closeErr)
	}
	return out
}

func (d *Dispatcher) transition(logger *slog.Logger, dev registry.Device, state State, delay time.Duration) {
	logger.Debug("Task state", "state", state, "delay", delay)
	d.emit(Event{Device: dev, State: state, Delay: delay, At: time.Now()})
}

func (d *Dispatcher) emit(e Event) {
	if d.config.OnEvent != nil {
		d.config.OnEvent(e)
	}
}
