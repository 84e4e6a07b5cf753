// ABOUTME: Audio output interface definition
// ABOUTME: Common Backend and Stream interfaces for device playback backends
package output

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrDeviceOpen marks a failure to open or start a device stream
	ErrDeviceOpen = errors.New("device open failure")
	// ErrDeviceWrite marks a failure while writing samples to an open stream
	ErrDeviceWrite = errors.New("device write failure")
	// ErrStreamClosed is returned by Write when the stream was closed mid-write
	ErrStreamClosed = errors.New("stream closed")
)

// Device describes one output device as reported by a backend
type Device struct {
	ID                int
	Name              string
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultLatency    time.Duration
}

// StreamConfig selects the device and format for a new stream
type StreamConfig struct {
	DeviceID   int
	SampleRate int
	Channels   int

	// OnFirstAudio is called once, when the device callback first consumes
	// samples submitted through Write. Silence the backend plays before any
	// Write does not count. It runs on the audio thread and must not block.
	OnFirstAudio func(at time.Time)
}

// Backend represents an audio system that exposes output devices
type Backend interface {
	// Name returns the backend identifier
	Name() string

	// Devices lists the output devices known to the backend
	Devices() ([]Device, error)

	// Open starts an output stream on one device
	Open(cfg StreamConfig) (Stream, error)

	// Close releases backend resources
	Close() error
}

// Stream represents an open output stream on a single device
type Stream interface {
	// Write plays samples (interleaved float32), blocking until consumed
	Write(samples []float32) error

	// Close stops the stream and releases the device
	Close() error
}

// Backend names accepted by New
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendOto       = "oto"
	BackendVirtual   = "virtual"
)

// New creates a backend by name. The virtual backend is built from devices.
func New(name string, virtual ...VirtualDevice) (Backend, error) {
	switch name {
	case BackendPortAudio:
		return NewPortAudio()
	case BackendMalgo:
		return NewMalgo()
	case BackendOto:
		return NewOto(), nil
	case BackendVirtual:
		return NewVirtual(virtual...), nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %q (supported: %v)", name, Backends())
	}
}

// Backends returns the supported backend names
func Backends() []string {
	names := []string{BackendPortAudio, BackendMalgo, BackendOto, BackendVirtual}
	sort.Strings(names)
	return names
}

func validateConfig(cfg StreamConfig) error {
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrDeviceOpen, cfg.SampleRate)
	}
	if cfg.Channels <= 0 {
		return fmt.Errorf("%w: invalid channel count %d", ErrDeviceOpen, cfg.Channels)
	}
	return nil
}
