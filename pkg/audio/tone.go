// ABOUTME: Test tone generator
// ABOUTME: Generates the sine wave played during latency calibration
package audio

import (
	"math"
	"time"
)

const (
	// DefaultToneFrequency is A4, the calibration reference pitch
	DefaultToneFrequency = 440.0
	// DefaultToneAmplitude keeps the tone at half scale
	DefaultToneAmplitude = 0.5
	// DefaultToneSampleRate is the calibration tone sample rate
	DefaultToneSampleRate = 44100
)

// Tone describes a sine test signal
type Tone struct {
	Frequency  float64
	Amplitude  float64
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// DefaultTone returns the 440Hz half-scale stereo tone at 44.1kHz
func DefaultTone(duration time.Duration) Tone {
	return Tone{
		Frequency:  DefaultToneFrequency,
		Amplitude:  DefaultToneAmplitude,
		Duration:   duration,
		SampleRate: DefaultToneSampleRate,
		Channels:   2,
	}
}

// Render generates the tone into a new buffer, duplicating the wave on every channel
func (t Tone) Render() *Buffer {
	channels := t.Channels
	if channels <= 0 {
		channels = 2
	}
	frames := int(t.Duration.Seconds() * float64(t.SampleRate))
	if frames < 0 {
		frames = 0
	}

	samples := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		ts := float64(i) / float64(t.SampleRate)
		v := float32(t.Amplitude * math.Sin(2*math.Pi*t.Frequency*ts))
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}

	return &Buffer{
		Samples:    samples,
		Channels:   channels,
		SampleRate: t.SampleRate,
	}
}
