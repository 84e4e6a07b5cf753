// ABOUTME: Prometheus gauges for calibration and playback runs
// ABOUTME: Written to a node-exporter textfile instead of served over HTTP
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/dispatch"
	"github.com/Resonate-Protocol/multiplay/internal/latency"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "multiplay"

// Recorder holds all collectors for one process run
type Recorder struct {
	registry *prometheus.Registry

	playbackDelay   *prometheus.GaugeVec // applied relative delay
	playbackSuccess *prometheus.GaugeVec // 1 completed, 0 failed
	playbackWrite   *prometheus.GaugeVec // blocking write duration

	calibrationLatency *prometheus.GaugeVec // median absolute latency
	calibrationSpread  *prometheus.GaugeVec // standard deviation over rounds
	calibrationPresent *prometheus.GaugeVec // 1 measured, 0 absent

	runInfo      *prometheus.GaugeVec
	lastRunStamp prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	deviceLabels := []string{"device_id", "name"}

	return &Recorder{
		registry: reg,
		playbackDelay: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_delay_seconds",
			Help:      "Relative delay applied before opening the device stream",
		}, deviceLabels),
		playbackSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_success",
			Help:      "Whether playback completed on the device (1) or failed (0)",
		}, deviceLabels),
		playbackWrite: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_write_seconds",
			Help:      "Time spent in the blocking buffer write",
		}, deviceLabels),
		calibrationLatency: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_latency_seconds",
			Help:      "Median measured output latency",
		}, deviceLabels),
		calibrationSpread: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_spread_seconds",
			Help:      "Standard deviation of latency over calibration rounds",
		}, deviceLabels),
		calibrationPresent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_present",
			Help:      "Whether the device latency was measured (1) or absent (0)",
		}, deviceLabels),
		runInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Run identifier and command, always 1",
		}, []string{"run_id", "command"}),
		lastRunStamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}),
	}
}

// ObserveRun stamps the run id and finish time
func (r *Recorder) ObserveRun(runID, command string, finished time.Time) {
	r.runInfo.WithLabelValues(runID, command).Set(1)
	r.lastRunStamp.Set(float64(finished.Unix()))
}

// ObservePlayback records every playback outcome
func (r *Recorder) ObservePlayback(outcomes []dispatch.Outcome) {
	for _, o := range outcomes {
		labels := []string{strconv.Itoa(o.Device.ID), o.Device.Name}
		r.playbackDelay.WithLabelValues(labels...).Set(o.Delay.Seconds())
		r.playbackWrite.WithLabelValues(labels...).Set(o.WriteDuration().Seconds())
		success := 0.0
		if o.State == dispatch.StateCompleted {
			success = 1
		}
		r.playbackSuccess.WithLabelValues(labels...).Set(success)
	}
}

// ObserveCalibration records every calibration measurement
func (r *Recorder) ObserveCalibration(measurements []latency.Measurement) {
	for _, m := range measurements {
		labels := []string{strconv.Itoa(m.DeviceID), m.Name}
		if !m.Present {
			r.calibrationPresent.WithLabelValues(labels...).Set(0)
			continue
		}
		r.calibrationPresent.WithLabelValues(labels...).Set(1)
		r.calibrationLatency.WithLabelValues(labels...).Set(m.Latency.Seconds())
		r.calibrationSpread.WithLabelValues(labels...).Set(m.Spread.Seconds())
	}
}

// Gatherer exposes the registry for tests and custom exporters
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics in text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
