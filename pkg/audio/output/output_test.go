// ABOUTME: Audio output backend tests
// ABOUTME: Verifies backend selection, config validation and the virtual backend
package output

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackendsImplementInterface(t *testing.T) {
	var _ Backend = (*PortAudio)(nil)
	var _ Backend = (*Malgo)(nil)
	var _ Backend = (*Oto)(nil)
	var _ Backend = (*Virtual)(nil)
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("jack"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewVirtualBackend(t *testing.T) {
	backend, err := New(BackendVirtual, DefaultVirtualDevices()...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if backend.Name() != BackendVirtual {
		t.Errorf("expected name %q, got %q", BackendVirtual, backend.Name())
	}

	devices, err := backend.Devices()
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != len(DefaultVirtualDevices()) {
		t.Errorf("expected %d devices, got %d", len(DefaultVirtualDevices()), len(devices))
	}
}

func TestBackendsSorted(t *testing.T) {
	names := Backends()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("backends not sorted: %v", names)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StreamConfig
		wantErr bool
	}{
		{"valid", StreamConfig{SampleRate: 48000, Channels: 2}, false},
		{"zero rate", StreamConfig{SampleRate: 0, Channels: 2}, true},
		{"negative channels", StreamConfig{SampleRate: 44100, Channels: -1}, true},
		{"zero channels", StreamConfig{SampleRate: 44100, Channels: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrDeviceOpen) {
				t.Errorf("expected ErrDeviceOpen, got %v", err)
			}
		})
	}
}

func TestVirtualOpenFailures(t *testing.T) {
	backend := NewVirtual(
		VirtualDevice{ID: 1, Name: "broken", FailOpen: true},
		VirtualDevice{ID: 2, Name: "stereo", Channels: 2},
	)

	tests := []struct {
		name string
		cfg  StreamConfig
	}{
		{"unknown device", StreamConfig{DeviceID: 9, SampleRate: 48000, Channels: 2}},
		{"fail open", StreamConfig{DeviceID: 1, SampleRate: 48000, Channels: 2}},
		{"too many channels", StreamConfig{DeviceID: 2, SampleRate: 48000, Channels: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := backend.Open(tt.cfg)
			if !errors.Is(err, ErrDeviceOpen) {
				t.Fatalf("expected ErrDeviceOpen, got %v", err)
			}
		})
	}
}

func TestVirtualWriteReportsFirstAudio(t *testing.T) {
	backend := NewVirtual(VirtualDevice{ID: 3, Name: "slow", Latency: 30 * time.Millisecond})

	var first atomic.Int64
	stream, err := backend.Open(StreamConfig{
		DeviceID:   3,
		SampleRate: 1000,
		Channels:   2,
		OnFirstAudio: func(at time.Time) {
			first.Store(at.UnixNano())
		},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	issued := time.Now()
	// 10 frames at 1kHz = 10ms of audio
	if err := stream.Write(make([]float32, 20)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	elapsed := time.Since(issued)

	if first.Load() == 0 {
		t.Fatal("OnFirstAudio never fired")
	}
	latency := time.Unix(0, first.Load()).Sub(issued)
	if latency < 30*time.Millisecond {
		t.Errorf("expected latency >= 30ms, got %v", latency)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("expected write to take latency plus play time, took %v", elapsed)
	}

	v := backend.(*Virtual)
	if v.Opens(3) != 1 {
		t.Errorf("expected 1 open, got %d", v.Opens(3))
	}
	if len(v.WriteStarts(3)) != 1 {
		t.Errorf("expected 1 write start, got %d", len(v.WriteStarts(3)))
	}
}

func TestVirtualWriteFault(t *testing.T) {
	backend := NewVirtual(VirtualDevice{ID: 4, Name: "faulty", FailWrite: true})

	stream, err := backend.Open(StreamConfig{DeviceID: 4, SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	if err := stream.Write(make([]float32, 4)); !errors.Is(err, ErrDeviceWrite) {
		t.Fatalf("expected ErrDeviceWrite, got %v", err)
	}
}

func TestVirtualSilentDeviceUnblocksOnClose(t *testing.T) {
	backend := NewVirtual(VirtualDevice{ID: 5, Name: "silent", Silent: true})

	fired := false
	stream, err := backend.Open(StreamConfig{
		DeviceID:     5,
		SampleRate:   48000,
		Channels:     2,
		OnFirstAudio: func(time.Time) { fired = true },
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- stream.Write(make([]float32, 4))
	}()

	select {
	case err := <-errCh:
		t.Fatalf("silent write returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	stream.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after Close")
	}
	if fired {
		t.Error("OnFirstAudio fired for a silent device")
	}
}
