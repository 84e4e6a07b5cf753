// ABOUTME: Tests for command orchestration
// ABOUTME: Runs devices, calibrate and play against virtual devices
package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/multiplay/internal/config"
	"github.com/Resonate-Protocol/multiplay/internal/dispatch"
	"github.com/Resonate-Protocol/multiplay/internal/latency"
	"github.com/Resonate-Protocol/multiplay/internal/registry"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/decode"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/output"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes frames of 16-bit PCM silence at 8kHz
func writeWAV(t *testing.T, path string, channels, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 8000, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: 8000},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close wav: %v", err)
	}
}

type fixture struct {
	dir     string
	opts    config.Options
	backend *output.Virtual
	out     bytes.Buffer
}

func newFixture(t *testing.T, devices ...output.VirtualDevice) *fixture {
	t.Helper()
	dir := t.TempDir()

	opts := config.Defaults()
	opts.AudioBackend = output.BackendVirtual
	opts.DeviceList = filepath.Join(dir, "devices.json")
	opts.LatencyTable = filepath.Join(dir, "latency.toml")
	opts.AudioFile = filepath.Join(dir, "clip.wav")
	opts.CalibrationRounds = 1
	opts.CalibrationTimeout = 200 * time.Millisecond
	opts.CalibrationToneDuration = 20 * time.Millisecond

	writeWAV(t, opts.AudioFile, 1, 80)

	return &fixture{
		dir:     dir,
		opts:    opts,
		backend: output.NewVirtual(devices...).(*output.Virtual),
	}
}

func (f *fixture) app(t *testing.T) *App {
	t.Helper()
	a, err := New(Config{Options: f.opts, Backend: f.backend, Out: &f.out})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

var threeDevices = []output.VirtualDevice{
	{ID: 3, Name: "Speakers", Latency: 10 * time.Millisecond},
	{ID: 5, Name: "HDMI", Latency: 50 * time.Millisecond},
	{ID: 7, Name: "Headphones", Latency: 30 * time.Millisecond},
}

func TestDevicesSavesList(t *testing.T) {
	f := newFixture(t, threeDevices...)
	a := f.app(t)

	devices, err := a.Devices(true)
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(devices))
	}

	reg, err := registry.Load(f.opts.DeviceList)
	if err != nil {
		t.Fatalf("saved list does not load: %v", err)
	}
	if reg.Len() != 3 {
		t.Errorf("expected 3 saved devices, got %d", reg.Len())
	}
	if !strings.Contains(f.out.String(), "Headphones") {
		t.Errorf("listing missing device:\n%s", f.out.String())
	}
}

func TestCalibrateThenPlay(t *testing.T) {
	f := newFixture(t, threeDevices...)
	f.opts.MetricsTextfile = filepath.Join(f.dir, "multiplay.prom")
	a := f.app(t)

	if _, err := a.Devices(true); err != nil {
		t.Fatalf("Devices failed: %v", err)
	}

	table, err := a.Calibrate(context.Background())
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if table.RunID != a.RunID() {
		t.Errorf("table run id %q should match app run id %q", table.RunID, a.RunID())
	}
	if table.Delay(5) != 0 {
		t.Errorf("slowest device should have delay 0, got %v", table.Delay(5))
	}

	loaded, err := latency.Load(f.opts.LatencyTable)
	if err != nil {
		t.Fatalf("saved table does not load: %v", err)
	}
	if loaded.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", loaded.Len())
	}

	outcomes, err := a.Play(context.Background())
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	for _, o := range outcomes {
		if o.State != dispatch.StateCompleted {
			t.Errorf("device %d: expected completed, got %v (%v)", o.Device.ID, o.State, o.Err)
		}
	}

	if !strings.Contains(f.out.String(), "3 completed, 0 failed") {
		t.Errorf("summary missing:\n%s", f.out.String())
	}
	if _, err := os.Stat(f.opts.MetricsTextfile); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}
}

func TestPlayFailsWhenAnyDeviceFails(t *testing.T) {
	f := newFixture(t,
		output.VirtualDevice{ID: 3, Name: "Speakers"},
		output.VirtualDevice{ID: 5, Name: "HDMI", FailWrite: true},
	)
	f.opts.LatencyTable = ""
	if err := registry.Save(f.opts.DeviceList, []registry.Device{{ID: 3, Name: "Speakers"}, {ID: 5, Name: "HDMI"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	outcomes, err := f.app(t).Play(context.Background())
	if !errors.Is(err, ErrDevicesFailed) {
		t.Fatalf("expected ErrDevicesFailed, got %v", err)
	}
	if outcomes[0].State != dispatch.StateCompleted {
		t.Errorf("healthy device should complete, got %v", outcomes[0].State)
	}
	if !strings.Contains(f.out.String(), "device write failure") {
		t.Errorf("summary should classify the failure:\n%s", f.out.String())
	}
}

func TestPlayAbortsBeforeOpening(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture)
		want    error
	}{
		{
			name:    "missing device list",
			prepare: func(t *testing.T, f *fixture) {},
			want:    config.ErrMissingOrMalformed,
		},
		{
			name: "empty device list",
			prepare: func(t *testing.T, f *fixture) {
				os.WriteFile(f.opts.DeviceList, []byte("[]"), 0o644)
			},
			want: config.ErrMissingOrMalformed,
		},
		{
			name: "missing latency table",
			prepare: func(t *testing.T, f *fixture) {
				registry.Save(f.opts.DeviceList, []registry.Device{{ID: 3, Name: "Speakers"}})
			},
			want: config.ErrMissingOrMalformed,
		},
		{
			name: "corrupt audio",
			prepare: func(t *testing.T, f *fixture) {
				registry.Save(f.opts.DeviceList, []registry.Device{{ID: 3, Name: "Speakers"}})
				f.opts.LatencyTable = ""
				os.WriteFile(f.opts.AudioFile, []byte("not a wav"), 0o644)
			},
			want: decode.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, output.VirtualDevice{ID: 3, Name: "Speakers"})
			tt.prepare(t, f)

			_, err := f.app(t).Play(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if f.backend.Opens(3) != 0 {
				t.Error("no stream should open when inputs are invalid")
			}
		})
	}
}

func TestPlayResamples(t *testing.T) {
	f := newFixture(t, output.VirtualDevice{ID: 3, Name: "Speakers"})
	f.opts.LatencyTable = ""
	f.opts.PlaybackResampleTo = 16000
	registry.Save(f.opts.DeviceList, []registry.Device{{ID: 3, Name: "Speakers"}})

	a := f.app(t)
	buf, err := a.loadAudio()
	if err != nil {
		t.Fatalf("loadAudio failed: %v", err)
	}
	if buf.SampleRate != 16000 {
		t.Errorf("expected 16000Hz, got %d", buf.SampleRate)
	}
	if buf.Channels != 2 {
		t.Errorf("mono input should be expanded to 2 channels, got %d", buf.Channels)
	}
	if buf.Frames() != 160 {
		t.Errorf("expected 160 frames, got %d", buf.Frames())
	}
}

func TestCalibrateRequiresTablePath(t *testing.T) {
	f := newFixture(t, threeDevices...)
	f.opts.LatencyTable = ""

	if _, err := f.app(t).Calibrate(context.Background()); !errors.Is(err, config.ErrMissingOrMalformed) {
		t.Fatalf("expected ErrMissingOrMalformed, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{config.ErrMissingOrMalformed, "config missing or malformed"},
		{decode.ErrDecode, "audio decode failure"},
		{output.ErrDeviceOpen, "device open failure"},
		{output.ErrDeviceWrite, "device write failure"},
		{context.Canceled, "interrupted"},
		{errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
