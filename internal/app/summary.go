// ABOUTME: Plain-text reports printed after each command
// ABOUTME: Device listings, calibration results and per-device playback outcomes
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/multiplay/internal/config"
	"github.com/Resonate-Protocol/multiplay/internal/dispatch"
	"github.com/Resonate-Protocol/multiplay/internal/latency"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/decode"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/output"
)

func printDevices(w io.Writer, backend string, devices []output.Device) {
	fmt.Fprintf(w, "Output devices (%s):\n", backend)
	if len(devices) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, d := range devices {
		fmt.Fprintf(w, "  %-4d %-40s %2dch", d.ID, d.Name, d.MaxOutputChannels)
		if d.DefaultSampleRate > 0 {
			fmt.Fprintf(w, "  %6.0fHz", d.DefaultSampleRate)
		}
		if d.DefaultLatency > 0 {
			fmt.Fprintf(w, "  %6.1fms", ms(d.DefaultLatency))
		}
		fmt.Fprintln(w)
	}
}

func printCalibration(w io.Writer, measurements []latency.Measurement, table *latency.Table) {
	fmt.Fprintln(w, "Calibration:")
	for _, m := range measurements {
		if !m.Present {
			fmt.Fprintf(w, "  %-4d %-30s absent: %v\n", m.DeviceID, m.Name, m.Err)
			continue
		}
		fmt.Fprintf(w, "  %-4d %-30s latency %7.1fms  spread %5.1fms  delay %7.1fms\n",
			m.DeviceID, m.Name, ms(m.Latency), ms(m.Spread), ms(table.Delay(m.DeviceID)))
	}
	if table.Len() == 0 {
		fmt.Fprintln(w, "  no device measured; playback will use zero delays")
	}
}

func printOutcomes(w io.Writer, outcomes []dispatch.Outcome) {
	fmt.Fprintln(w, "Playback:")
	for _, o := range outcomes {
		line := fmt.Sprintf("  %-4d %-30s delay %7.1fms  %-9s", o.Device.ID, o.Device.Name, ms(o.Delay), o.State)
		if o.Err != nil {
			line += fmt.Sprintf("  %s: %v", Classify(o.Err), o.Err)
		} else {
			line += fmt.Sprintf("  write %.2fs", o.WriteDuration().Seconds())
		}
		fmt.Fprintln(w, line)
	}
	failed := countFailed(outcomes)
	fmt.Fprintf(w, "%d completed, %d failed\n", len(outcomes)-failed, failed)
}

// Classify names the error kind for summaries
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, config.ErrMissingOrMalformed):
		return "config missing or malformed"
	case errors.Is(err, decode.ErrDecode):
		return "audio decode failure"
	case errors.Is(err, output.ErrDeviceOpen):
		return "device open failure"
	case errors.Is(err, output.ErrDeviceWrite):
		return "device write failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "interrupted"
	default:
		return "error"
	}
}
