// ABOUTME: Malgo-based output backend
// ABOUTME: Uses miniaudio via malgo for per-device float32 playback
package output

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// malgoPeriods is the number of periods in each device buffer
const malgoPeriods = 3

// Malgo backend. Device IDs index the miniaudio playback device list.
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	logger   *slog.Logger
}

// NewMalgo creates the miniaudio context
func NewMalgo() (Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	return &Malgo{
		malgoCtx: ctx,
		logger:   slog.Default().With("module", "output", "backend", BackendMalgo),
	}, nil
}

// Name returns the backend identifier
func (m *Malgo) Name() string { return BackendMalgo }

func (m *Malgo) playbackDevices() ([]malgo.DeviceInfo, error) {
	if m.malgoCtx == nil {
		return nil, fmt.Errorf("malgo backend closed")
	}
	infos, err := m.malgoCtx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to get device list: %w", err)
	}
	return infos, nil
}

// Devices lists miniaudio playback devices
func (m *Malgo) Devices() ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos, err := m.playbackDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(infos))
	for i := range infos {
		devices = append(devices, Device{
			ID:   i,
			Name: infos[i].Name(),
			// miniaudio converts channel layouts, so every playback device accepts stereo
			MaxOutputChannels: 2,
		})
	}
	return devices, nil
}

// Open initializes and starts a playback device
func (m *Malgo) Open(cfg StreamConfig) (Stream, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	infos, err := m.playbackDevices()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}
	if cfg.DeviceID < 0 || cfg.DeviceID >= len(infos) {
		return nil, fmt.Errorf("%w: invalid device index %d (max: %d)", ErrDeviceOpen, cfg.DeviceID, len(infos)-1)
	}
	info := infos[cfg.DeviceID]

	s := &malgoStream{
		feed:     newFeeder(cfg.OnFirstAudio),
		channels: cfg.Channels,
	}
	// Stop does not drain: wait out the buffered periods plus the one playing
	s.feed.drain = malgoPeriods + 1

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.Playback.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Periods = malgoPeriods
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			s.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d (%s) at %dHz/%dch: %w",
			ErrDeviceOpen, cfg.DeviceID, info.Name(), cfg.SampleRate, cfg.Channels, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: failed to start device %d: %w", ErrDeviceOpen, cfg.DeviceID, err)
	}
	s.device = device

	m.logger.Debug("Device started", "device_id", cfg.DeviceID, "name", info.Name(),
		"sample_rate", cfg.SampleRate, "channels", cfg.Channels)

	return s, nil
}

// Close releases the miniaudio context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		return nil
	}
	if err := m.malgoCtx.Uninit(); err != nil {
		m.logger.Warn("Malgo context uninit error", "error", err)
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
	return nil
}

type malgoStream struct {
	device   *malgo.Device
	feed     *feeder
	channels int
	scratch  []float32
	once     sync.Once
}

// dataCallback is called by malgo to fill the audio output buffer
func (s *malgoStream) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * s.channels
	if cap(s.scratch) < total {
		s.scratch = make([]float32, total)
	}
	samples := s.scratch[:total]

	s.feed.fill(samples)

	for i, sample := range samples {
		binary.LittleEndian.PutUint32(pOutput[i*4:], math.Float32bits(sample))
	}
}

// Write blocks until the callback has consumed every sample
func (s *malgoStream) Write(samples []float32) error {
	if err := s.feed.write(samples); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceWrite, err)
	}
	return nil
}

// Close stops and uninitializes the device
func (s *malgoStream) Close() error {
	var err error
	s.once.Do(func() {
		s.feed.close()
		if s.device != nil {
			err = s.device.Stop()
			s.device.Uninit()
		}
	})
	return err
}
