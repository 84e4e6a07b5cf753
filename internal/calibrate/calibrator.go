// ABOUTME: Per-device output latency calibration
// ABOUTME: Plays a test tone and times the gap between submission and first consumption
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/latency"
	"github.com/Resonate-Protocol/multiplay/internal/logging"
	"github.com/Resonate-Protocol/multiplay/internal/registry"
	"github.com/Resonate-Protocol/multiplay/pkg/audio"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/output"
	"gonum.org/v1/gonum/stat"
)

// ErrMeasurement marks a device whose latency could not be measured
var ErrMeasurement = errors.New("calibration measurement failure")

// Defaults
const (
	DefaultRounds       = 3
	DefaultTimeout      = 2 * time.Second
	DefaultToneDuration = time.Second
)

// Config holds calibrator configuration
type Config struct {
	Backend output.Backend

	// Signal is played on every device; a DefaultTone when nil
	Signal *audio.Buffer

	Rounds          int
	Timeout         time.Duration
	IncludeOpenTime bool

	// OnSample is called after every round
	OnSample func(device registry.Device, round int, sample Sample, err error)
}

// Sample is one timing round on one device
type Sample struct {
	Open    time.Duration // time spent opening the stream
	Latency time.Duration // submission to first consumption
}

// Total returns the latency playback will experience
func (s Sample) Total(includeOpen bool) time.Duration {
	if includeOpen {
		return s.Open + s.Latency
	}
	return s.Latency
}

// Calibrator measures device latencies one device at a time
type Calibrator struct {
	config Config
	signal *audio.Buffer
	logger *slog.Logger
}

// New creates a calibrator, filling unset config fields with defaults
func New(config Config) *Calibrator {
	if config.Rounds < 1 {
		config.Rounds = DefaultRounds
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	signal := config.Signal
	if signal == nil {
		signal = audio.DefaultTone(DefaultToneDuration).Render()
	}

	return &Calibrator{
		config: config,
		signal: signal,
		logger: logging.GetLogger("calibrate"),
	}
}

// MeasureOnce opens a stream on one device, plays the signal and reports timings.
// Failures wrap ErrMeasurement.
func (c *Calibrator) MeasureOnce(ctx context.Context, deviceID int) (Sample, error) {
	first := make(chan time.Time, 1)

	openStart := time.Now()
	stream, err := c.config.Backend.Open(output.StreamConfig{
		DeviceID:   deviceID,
		SampleRate: c.signal.SampleRate,
		Channels:   c.signal.Channels,
		OnFirstAudio: func(at time.Time) {
			select {
			case first <- at:
			default:
			}
		},
	})
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrMeasurement, err)
	}
	defer stream.Close()

	sample := Sample{Open: time.Since(openStart)}

	writeErr := make(chan error, 1)
	issued := time.Now()
	go func() {
		writeErr <- stream.Write(c.signal.Samples)
	}()

	timer := time.NewTimer(c.config.Timeout)
	defer timer.Stop()

	select {
	case at := <-first:
		sample.Latency = at.Sub(issued)
	case err := <-writeErr:
		// first audio is always reported before a successful write returns
		select {
		case at := <-first:
			sample.Latency = at.Sub(issued)
			return sample, nil
		default:
		}
		if err == nil {
			err = errors.New("write returned without consuming audio")
		}
		return Sample{}, fmt.Errorf("%w: %w", ErrMeasurement, err)
	case <-timer.C:
		stream.Close()
		<-writeErr
		return Sample{}, fmt.Errorf("%w: no audio consumed within %v", ErrMeasurement, c.config.Timeout)
	case <-ctx.Done():
		stream.Close()
		<-writeErr
		return Sample{}, fmt.Errorf("%w: %w", ErrMeasurement, ctx.Err())
	}

	// Let the tone finish so the next round starts from an idle device
	select {
	case err := <-writeErr:
		if err != nil {
			c.logger.Warn("Write failed after first audio", "device_id", deviceID, "error", err)
		}
	case <-ctx.Done():
		stream.Close()
		<-writeErr
	}

	return sample, nil
}

// Measure runs every round on one device and summarizes them.
// The device is absent when no round succeeded.
func (c *Calibrator) Measure(ctx context.Context, device registry.Device) latency.Measurement {
	m := latency.Measurement{DeviceID: device.ID, Name: device.Name}
	logger := c.logger.With("device_id", device.ID, "name", device.Name)

	var totals []float64
	var lastErr error
	for round := 0; round < c.config.Rounds; round++ {
		if ctx.Err() != nil {
			lastErr = fmt.Errorf("%w: %w", ErrMeasurement, ctx.Err())
			break
		}

		sample, err := c.MeasureOnce(ctx, device.ID)
		if c.config.OnSample != nil {
			c.config.OnSample(device, round, sample, err)
		}
		if err != nil {
			logger.Warn("Measurement round failed", "round", round+1, "error", err)
			lastErr = err
			continue
		}

		total := sample.Total(c.config.IncludeOpenTime)
		logger.Debug("Measurement round", "round", round+1,
			"open_ms", sample.Open.Milliseconds(), "latency_ms", sample.Latency.Milliseconds(),
			"total_ms", total.Milliseconds())
		totals = append(totals, total.Seconds())
	}

	if len(totals) == 0 {
		m.Err = lastErr
		if m.Err == nil {
			m.Err = ErrMeasurement
		}
		return m
	}

	median, spread := summarize(totals)
	m.Present = true
	m.Latency = time.Duration(median * float64(time.Second))
	m.Spread = time.Duration(spread * float64(time.Second))

	logger.Info("Device measured", "latency_ms", m.Latency.Milliseconds(),
		"spread_ms", m.Spread.Milliseconds(), "rounds", len(totals))
	return m
}

// Run measures every device in order and computes the latency table
func (c *Calibrator) Run(ctx context.Context, devices []registry.Device) (*latency.Table, []latency.Measurement) {
	measurements := make([]latency.Measurement, 0, len(devices))
	for _, d := range devices {
		measurements = append(measurements, c.Measure(ctx, d))
	}

	table := latency.Compute(measurements, c.config.IncludeOpenTime)
	if table.Len() == 0 && len(devices) > 0 {
		c.logger.Warn("No device could be measured; playback will use zero delays")
	}
	return table, measurements
}

// summarize returns the median and standard deviation of xs in seconds
func summarize(xs []float64) (median, spread float64) {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if len(sorted) > 1 {
		spread = stat.StdDev(sorted, nil)
	}
	if math.IsNaN(spread) {
		spread = 0
	}
	return median, spread
}
