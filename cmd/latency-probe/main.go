// ABOUTME: Debug tool that measures one output device's latency repeatedly
// ABOUTME: Prints every open and first-audio sample without touching the latency table
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/calibrate"
	"github.com/Resonate-Protocol/multiplay/pkg/audio"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/output"
)

var (
	backendName = flag.String("backend", "malgo", "Output backend (malgo, oto, portaudio, virtual)")
	deviceID    = flag.Int("device", 0, "Device id to probe")
	count       = flag.Int("count", 10, "Number of measurements")
	timeout     = flag.Duration("timeout", calibrate.DefaultTimeout, "Wait limit for first audio")
	toneLen     = flag.Duration("tone", 250*time.Millisecond, "Tone length per measurement")
	pause       = flag.Duration("pause", 200*time.Millisecond, "Pause between measurements")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	backend, err := output.New(*backendName, output.DefaultVirtualDevices()...)
	if err != nil {
		return fmt.Errorf("backend error: %w", err)
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	calibrator := calibrate.New(calibrate.Config{
		Backend: backend,
		Signal:  audio.DefaultTone(*toneLen).Render(),
		Timeout: *timeout,
	})

	fmt.Printf("=== Latency probe: %s device %d ===\n", backend.Name(), *deviceID)

	var totals []time.Duration
	for i := 0; i < *count && ctx.Err() == nil; i++ {
		s, err := calibrator.MeasureOnce(ctx, *deviceID)
		if err != nil {
			log.Printf("#%-3d failed: %v", i+1, err)
		} else {
			totals = append(totals, s.Total(true))
			log.Printf("#%-3d open %8v  first audio %8v  total %8v", i+1, s.Open, s.Latency, s.Total(true))
		}

		select {
		case <-ctx.Done():
		case <-time.After(*pause):
		}
	}

	if len(totals) == 0 {
		return fmt.Errorf("no successful measurements")
	}
	lo, hi := totals[0], totals[0]
	for _, d := range totals[1:] {
		lo = min(lo, d)
		hi = max(hi, d)
	}
	fmt.Printf("%d/%d ok, min %v, max %v, jitter %v\n", len(totals), *count, lo, hi, hi-lo)
	return nil
}
