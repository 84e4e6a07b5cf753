// ABOUTME: Simulated output backend
// ABOUTME: Devices with configurable open delay, output latency and injected faults
package output

import (
	"fmt"
	"sync"
	"time"
)

// VirtualDevice configures one simulated device
type VirtualDevice struct {
	ID       int
	Name     string
	Channels int // 0 accepts any channel count

	OpenDelay time.Duration // time spent inside Open
	Latency   time.Duration // delay between Write and first consumption

	FailOpen  bool // Open returns ErrDeviceOpen
	FailWrite bool // Write returns ErrDeviceWrite
	Silent    bool // never consumes audio; Write blocks until Close
}

// DefaultVirtualDevices returns a small device set for dry runs
func DefaultVirtualDevices() []VirtualDevice {
	return []VirtualDevice{
		{ID: 0, Name: "Virtual Speakers", Channels: 2, Latency: 20 * time.Millisecond},
		{ID: 1, Name: "Virtual Headphones", Channels: 2, Latency: 45 * time.Millisecond},
		{ID: 2, Name: "Virtual HDMI", Channels: 8, Latency: 80 * time.Millisecond},
	}
}

// Virtual backend. It records every open and write so callers can inspect timing.
type Virtual struct {
	mu          sync.Mutex
	devices     []VirtualDevice
	opens       map[int]int
	writeStarts map[int][]time.Time
}

// NewVirtual creates a virtual backend over devices
func NewVirtual(devices ...VirtualDevice) Backend {
	return &Virtual{
		devices:     append([]VirtualDevice(nil), devices...),
		opens:       make(map[int]int),
		writeStarts: make(map[int][]time.Time),
	}
}

// Name returns the backend identifier
func (v *Virtual) Name() string { return BackendVirtual }

// Devices lists the configured devices
func (v *Virtual) Devices() ([]Device, error) {
	devices := make([]Device, 0, len(v.devices))
	for _, d := range v.devices {
		channels := d.Channels
		if channels == 0 {
			channels = 2
		}
		devices = append(devices, Device{
			ID:                d.ID,
			Name:              d.Name,
			MaxOutputChannels: channels,
			DefaultSampleRate: 48000,
			DefaultLatency:    d.Latency,
		})
	}
	return devices, nil
}

func (v *Virtual) lookup(id int) (VirtualDevice, bool) {
	for _, d := range v.devices {
		if d.ID == id {
			return d, true
		}
	}
	return VirtualDevice{}, false
}

// Open simulates opening a stream
func (v *Virtual) Open(cfg StreamConfig) (Stream, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	dev, ok := v.lookup(cfg.DeviceID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown virtual device %d", ErrDeviceOpen, cfg.DeviceID)
	}

	v.mu.Lock()
	v.opens[dev.ID]++
	v.mu.Unlock()

	if dev.OpenDelay > 0 {
		time.Sleep(dev.OpenDelay)
	}
	if dev.FailOpen {
		return nil, fmt.Errorf("%w: virtual device %d (%s) refused to open", ErrDeviceOpen, dev.ID, dev.Name)
	}
	if dev.Channels > 0 && cfg.Channels > dev.Channels {
		return nil, fmt.Errorf("%w: virtual device %d supports %d channels, requested %d",
			ErrDeviceOpen, dev.ID, dev.Channels, cfg.Channels)
	}

	return &virtualStream{
		backend: v,
		device:  dev,
		cfg:     cfg,
		closed:  make(chan struct{}),
	}, nil
}

// Close is a no-op for the virtual backend
func (v *Virtual) Close() error { return nil }

// Opens returns how many times Open was called for a device
func (v *Virtual) Opens(id int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.opens[id]
}

// WriteStarts returns the instants at which writes began on a device
func (v *Virtual) WriteStarts(id int) []time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]time.Time(nil), v.writeStarts[id]...)
}

type virtualStream struct {
	backend *Virtual
	device  VirtualDevice
	cfg     StreamConfig
	closed  chan struct{}
	once    sync.Once
	first   sync.Once
}

// wait sleeps for d or until the stream is closed
func (s *virtualStream) wait(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.closed:
		return ErrStreamClosed
	}
}

// Write simulates latency, first consumption and the buffer's play time
func (s *virtualStream) Write(samples []float32) error {
	s.backend.mu.Lock()
	s.backend.writeStarts[s.device.ID] = append(s.backend.writeStarts[s.device.ID], time.Now())
	s.backend.mu.Unlock()

	select {
	case <-s.closed:
		return fmt.Errorf("%w: %w", ErrDeviceWrite, ErrStreamClosed)
	default:
	}

	if s.device.FailWrite {
		return fmt.Errorf("%w: virtual device %d (%s) write fault", ErrDeviceWrite, s.device.ID, s.device.Name)
	}
	if len(samples) == 0 {
		return nil
	}

	if s.device.Silent {
		<-s.closed
		return fmt.Errorf("%w: %w", ErrDeviceWrite, ErrStreamClosed)
	}

	if err := s.wait(s.device.Latency); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceWrite, err)
	}

	s.first.Do(func() {
		if s.cfg.OnFirstAudio != nil {
			s.cfg.OnFirstAudio(time.Now())
		}
	})

	frames := len(samples) / s.cfg.Channels
	playTime := time.Duration(frames) * time.Second / time.Duration(s.cfg.SampleRate)
	if err := s.wait(playTime); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceWrite, err)
	}
	return nil
}

// Close releases the simulated stream
func (s *virtualStream) Close() error {
	s.once.Do(func() {
		close(s.closed)
	})
	return nil
}
