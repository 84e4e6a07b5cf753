//go:build portaudio

// ABOUTME: PortAudio output backend
// ABOUTME: Cross-platform per-device output using PortAudio
package output

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio backend. Device IDs are PortAudio device indexes.
type PortAudio struct {
	mu     sync.Mutex
	closed bool
}

// NewPortAudio initializes PortAudio and returns the backend
func NewPortAudio() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudio{}, nil
}

// Name returns the backend identifier
func (p *PortAudio) Name() string { return BackendPortAudio }

// Devices lists devices that have at least one output channel
func (p *PortAudio) Devices() ([]Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get device list: %w", err)
	}

	var devices []Device
	for i, info := range infos {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			ID:                i,
			Name:              info.Name,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			DefaultLatency:    info.DefaultLowOutputLatency,
		})
	}
	return devices, nil
}

// Open opens and starts a callback stream on the device
func (p *PortAudio) Open(cfg StreamConfig) (Stream, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	// PortAudio stream creation is not safe to run concurrently
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("%w: portaudio backend closed", ErrDeviceOpen)
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get device list: %w", ErrDeviceOpen, err)
	}
	if cfg.DeviceID < 0 || cfg.DeviceID >= len(infos) {
		return nil, fmt.Errorf("%w: invalid device index %d (max: %d)", ErrDeviceOpen, cfg.DeviceID, len(infos)-1)
	}
	info := infos[cfg.DeviceID]

	feed := newFeeder(cfg.OnFirstAudio)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: cfg.Channels,
			Latency:  info.DefaultLowOutputLatency,
		},
		SampleRate: float64(cfg.SampleRate),
		// Let PortAudio pick the host buffer size
		FramesPerBuffer: 0,
	}

	stream, err := portaudio.OpenStream(params, func(out []float32) {
		feed.fill(out)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: device %d (%s) at %dHz/%dch: %w",
			ErrDeviceOpen, cfg.DeviceID, info.Name, cfg.SampleRate, cfg.Channels, err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: failed to start stream on device %d: %w", ErrDeviceOpen, cfg.DeviceID, err)
	}

	return &portAudioStream{stream: stream, feed: feed}, nil
}

// Close terminates PortAudio
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream *portaudio.Stream
	feed   *feeder
	once   sync.Once
}

// Write blocks until the callback has consumed every sample
func (s *portAudioStream) Write(samples []float32) error {
	if err := s.feed.write(samples); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceWrite, err)
	}
	return nil
}

// Close stops and releases the stream
func (s *portAudioStream) Close() error {
	var err error
	s.once.Do(func() {
		s.feed.close()
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}
