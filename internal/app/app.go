// ABOUTME: Application orchestration for every multiplay command
// ABOUTME: Wires config, backend, registry, latency table, decoder, dispatcher, TUI and metrics
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/calibrate"
	"github.com/Resonate-Protocol/multiplay/internal/config"
	"github.com/Resonate-Protocol/multiplay/internal/dispatch"
	"github.com/Resonate-Protocol/multiplay/internal/latency"
	"github.com/Resonate-Protocol/multiplay/internal/logging"
	"github.com/Resonate-Protocol/multiplay/internal/metrics"
	"github.com/Resonate-Protocol/multiplay/internal/registry"
	"github.com/Resonate-Protocol/multiplay/internal/ui"
	"github.com/Resonate-Protocol/multiplay/pkg/audio"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/decode"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/output"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/resample"
	"github.com/google/uuid"
)

// ErrDevicesFailed is returned by Play when at least one device task failed
var ErrDevicesFailed = errors.New("playback failed on one or more devices")

// Config holds application configuration
type Config struct {
	Options config.Options

	// Backend overrides the backend named in Options
	Backend output.Backend

	// Out receives summaries and device listings; stdout when nil
	Out io.Writer
}

// App runs multiplay commands against one backend
type App struct {
	opts    config.Options
	backend output.Backend
	out     io.Writer
	runID   string
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New creates the app and its output backend
func New(cfg Config) (*App, error) {
	backend := cfg.Backend
	if backend == nil {
		var err error
		backend, err = output.New(cfg.Options.AudioBackend, output.DefaultVirtualDevices()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Options.AudioBackend, err)
		}
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	runID := uuid.NewString()
	return &App{
		opts:    cfg.Options,
		backend: backend,
		out:     out,
		runID:   runID,
		logger:  logging.GetLogger("app").With("run_id", runID),
		metrics: metrics.NewRecorder(),
	}, nil
}

// RunID identifies this process run in logs and metrics
func (a *App) RunID() string { return a.runID }

// Close releases the backend
func (a *App) Close() error {
	return a.backend.Close()
}

// Devices enumerates output devices, prints them and saves the device list
func (a *App) Devices(save bool) ([]output.Device, error) {
	devices, err := registry.Enumerate(a.backend)
	if err != nil {
		return nil, err
	}

	printDevices(a.out, a.backend.Name(), devices)

	if save {
		if a.opts.DeviceList == "" {
			return nil, fmt.Errorf("%w: device list path is empty", config.ErrMissingOrMalformed)
		}
		if err := registry.Save(a.opts.DeviceList, registry.FromOutput(devices)); err != nil {
			return nil, err
		}
		a.logger.Info("Device list saved", "path", a.opts.DeviceList, "devices", len(devices))
	}
	return devices, nil
}

// Calibrate measures every listed device and saves the latency table
func (a *App) Calibrate(ctx context.Context) (*latency.Table, error) {
	if a.opts.LatencyTable == "" {
		return nil, fmt.Errorf("%w: latency table path is empty", config.ErrMissingOrMalformed)
	}

	reg, err := registry.Load(a.opts.DeviceList)
	if err != nil {
		return nil, err
	}

	calibrator := calibrate.New(calibrate.Config{
		Backend:         a.backend,
		Signal:          audio.DefaultTone(a.opts.CalibrationToneDuration).Render(),
		Rounds:          a.opts.CalibrationRounds,
		Timeout:         a.opts.CalibrationTimeout,
		IncludeOpenTime: a.opts.CalibrationIncludeOpenTime,
		OnSample: func(d registry.Device, round int, s calibrate.Sample, err error) {
			if err != nil {
				fmt.Fprintf(a.out, "  %-4d round %d: failed (%v)\n", d.ID, round+1, err)
				return
			}
			fmt.Fprintf(a.out, "  %-4d round %d: open %6.1fms  latency %6.1fms\n",
				d.ID, round+1, ms(s.Open), ms(s.Latency))
		},
	})

	a.logger.Info("Calibrating devices", "devices", reg.Len(), "rounds", a.opts.CalibrationRounds,
		"include_open_time", a.opts.CalibrationIncludeOpenTime)

	table, measurements := calibrator.Run(ctx, reg.List())
	table.RunID = a.runID

	if err := table.Save(a.opts.LatencyTable); err != nil {
		return nil, err
	}
	a.logger.Info("Latency table saved", "path", a.opts.LatencyTable, "entries", table.Len())

	printCalibration(a.out, measurements, table)

	a.metrics.ObserveCalibration(measurements)
	a.writeMetrics("calibrate")
	return table, nil
}

// Play loads inputs and plays the audio file on every listed device.
// Missing or malformed inputs abort before any stream opens.
func (a *App) Play(ctx context.Context) ([]dispatch.Outcome, error) {
	reg, err := registry.Load(a.opts.DeviceList)
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("%w: device list is empty", config.ErrMissingOrMalformed)
	}

	var table *latency.Table
	if a.opts.LatencyTable == "" {
		a.logger.Info("Latency compensation disabled")
	} else {
		table, err = latency.Load(a.opts.LatencyTable)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("Latency table loaded", "path", a.opts.LatencyTable,
			"entries", table.Len(), "table_run_id", table.RunID)
	}

	buf, err := a.loadAudio()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var onEvent func(dispatch.Event)
	var tui *tuiSession
	if a.opts.UITUI {
		tui = startTUI(cancel, ui.RunMsg{
			File:       a.opts.AudioFile,
			Backend:    a.backend.Name(),
			SampleRate: buf.SampleRate,
			Channels:   buf.Channels,
			Duration:   buf.Duration(),
			Devices:    reg.List(),
		})
		onEvent = tui.event
	}

	dispatcher := dispatch.New(dispatch.Config{Backend: a.backend, OnEvent: onEvent})
	outcomes, err := dispatcher.Run(ctx, reg.List(), table, buf)

	failed := countFailed(outcomes)
	if tui != nil {
		tui.finish(failed)
	}
	if err != nil {
		return nil, err
	}

	printOutcomes(a.out, outcomes)

	a.metrics.ObservePlayback(outcomes)
	a.writeMetrics("play")

	if failed > 0 {
		return outcomes, fmt.Errorf("%w: %d of %d", ErrDevicesFailed, failed, len(outcomes))
	}
	return outcomes, nil
}

// Preview plays the audio file once on the system default output
func (a *App) Preview(ctx context.Context) error {
	buf, err := a.loadAudio()
	if err != nil {
		return err
	}

	backend := output.NewOto()
	defer backend.Close()

	stream, err := backend.Open(output.StreamConfig{
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	a.logger.Info("Previewing", "file", a.opts.AudioFile, "duration", buf.Duration())

	done := make(chan error, 1)
	go func() {
		done <- stream.Write(buf.Samples)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		stream.Close()
		<-done
		return ctx.Err()
	}
}

// loadAudio decodes the audio file and applies the optional resample
func (a *App) loadAudio() (*audio.Buffer, error) {
	if a.opts.AudioFile == "" {
		return nil, fmt.Errorf("%w: no audio file given", decode.ErrDecode)
	}

	buf, err := decode.Load(a.opts.AudioFile)
	if err != nil {
		return nil, err
	}

	if a.opts.PlaybackResampleTo > 0 && a.opts.PlaybackResampleTo != buf.SampleRate {
		start := time.Now()
		resampled, err := resample.Buffer(buf, a.opts.PlaybackResampleTo)
		if err != nil {
			return nil, fmt.Errorf("failed to resample audio: %w", err)
		}
		a.logger.Info("Audio resampled", "from", buf.SampleRate, "to", resampled.SampleRate,
			"took", time.Since(start))
		buf = resampled
	}
	return buf, nil
}

func (a *App) writeMetrics(command string) {
	if a.opts.MetricsTextfile == "" {
		return
	}
	a.metrics.ObserveRun(a.runID, command, time.Now())
	if err := a.metrics.WriteTextfile(a.opts.MetricsTextfile); err != nil {
		a.logger.Warn("Metrics not written", "error", err)
	}
}

func countFailed(outcomes []dispatch.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.State == dispatch.StateFailed {
			n++
		}
	}
	return n
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
