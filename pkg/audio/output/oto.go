// ABOUTME: Oto-based output backend
// ABOUTME: Plays to the system default device through a single oto context
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// otoDefaultDevice is the only device the oto backend exposes
const otoDefaultDevice = 0

// Oto backend. oto allows one context per process, so the first Open fixes
// the sample format for every later stream.
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	sampleRate int
	channels   int
	logger     *slog.Logger
}

// NewOto creates a new Oto backend
func NewOto() Backend {
	return &Oto{
		logger: slog.Default().With("module", "output", "backend", BackendOto),
	}
}

// Name returns the backend identifier
func (o *Oto) Name() string { return BackendOto }

// Devices returns the single system default device
func (o *Oto) Devices() ([]Device, error) {
	return []Device{{
		ID:                otoDefaultDevice,
		Name:              "default",
		MaxOutputChannels: 2,
	}}, nil
}

// Open starts a player on the shared oto context
func (o *Oto) Open(cfg StreamConfig) (Stream, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.DeviceID != otoDefaultDevice {
		return nil, fmt.Errorf("%w: oto only exposes device %d, got %d", ErrDeviceOpen, otoDefaultDevice, cfg.DeviceID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatFloat32LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create oto context: %w", ErrDeviceOpen, err)
		}
		<-readyChan

		o.otoCtx = ctx
		o.sampleRate = cfg.SampleRate
		o.channels = cfg.Channels
		o.logger.Debug("Oto context initialized", "sample_rate", cfg.SampleRate, "channels", cfg.Channels)
	} else if o.sampleRate != cfg.SampleRate || o.channels != cfg.Channels {
		return nil, fmt.Errorf("%w: oto context already running at %dHz/%dch, cannot open %dHz/%dch",
			ErrDeviceOpen, o.sampleRate, o.channels, cfg.SampleRate, cfg.Channels)
	}

	if err := o.otoCtx.Resume(); err != nil {
		return nil, fmt.Errorf("%w: failed to resume oto context: %w", ErrDeviceOpen, err)
	}

	reader := &feederReader{feed: newFeeder(cfg.OnFirstAudio)}
	player := o.otoCtx.NewPlayer(reader)
	// Keep read-ahead near 50ms so first-audio timing tracks the device
	player.SetBufferSize(cfg.SampleRate * cfg.Channels * 4 / 20)
	player.Play()

	return &otoStream{player: player, reader: reader}, nil
}

// Close suspends the oto context. The context itself lives for the process.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		return o.otoCtx.Suspend()
	}
	return nil
}

// feederReader adapts a feeder to the io.Reader oto pulls from
type feederReader struct {
	feed    *feeder
	scratch []float32
}

func (r *feederReader) Read(p []byte) (int, error) {
	r.feed.mu.Lock()
	closed := r.feed.closed
	r.feed.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	total := len(p) / 4
	if cap(r.scratch) < total {
		r.scratch = make([]float32, total)
	}
	samples := r.scratch[:total]
	r.feed.fill(samples)

	for i, sample := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(sample))
	}
	return total * 4, nil
}

type otoStream struct {
	player *oto.Player
	reader *feederReader
	once   sync.Once
}

// Write blocks until the player has pulled every sample
func (s *otoStream) Write(samples []float32) error {
	if err := s.reader.feed.write(samples); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceWrite, err)
	}
	if err := s.player.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceWrite, err)
	}
	return nil
}

// Close stops the player
func (s *otoStream) Close() error {
	var err error
	s.once.Do(func() {
		s.reader.feed.close()
		err = s.player.Close()
	})
	return err
}
