// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion, buffer geometry, mono expansion and tones
package audio

import (
	"math"
	"testing"
	"time"
)

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"half", 16384, 0.5},
		{"negative half", -16384, -0.5},
		{"min", -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"clip high", 1.5, 32767},
		{"clip low", -1.5, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleFromInt(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		bitDepth int
		expected float32
	}{
		{"24bit half", 1 << 22, 24, 0.5},
		{"16bit min", -32768, 16, -1},
		{"8bit quarter", 32, 8, 0.25},
		{"invalid depth", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt(tt.input, tt.bitDepth)
			if result != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestSampleFrom24Bit(t *testing.T) {
	if got := SampleFrom24Bit([3]byte{0x56, 0x34, 0x12}); got != 0x123456 {
		t.Errorf("expected %d, got %d", 0x123456, got)
	}
	if got := SampleFrom24Bit([3]byte{0xFF, 0xFF, 0xFF}); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}

func TestBufferGeometry(t *testing.T) {
	buf := &Buffer{
		Samples:    make([]float32, 44100*2),
		Channels:   2,
		SampleRate: 44100,
	}

	if buf.Frames() != 44100 {
		t.Errorf("expected 44100 frames, got %d", buf.Frames())
	}
	if buf.Duration() != time.Second {
		t.Errorf("expected 1s, got %v", buf.Duration())
	}

	var empty *Buffer
	if empty.Frames() != 0 || empty.Duration() != 0 {
		t.Error("nil buffer should have no frames")
	}
}

func TestExpandMono(t *testing.T) {
	mono := &Buffer{
		Samples:    []float32{0.1, -0.2, 0.3},
		Channels:   1,
		SampleRate: 22050,
	}

	stereo := ExpandMono(mono)
	if stereo.Channels != 2 {
		t.Fatalf("expected 2 channels, got %d", stereo.Channels)
	}
	if stereo.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", stereo.Frames())
	}
	if stereo.SampleRate != 22050 {
		t.Errorf("sample rate changed: %d", stereo.SampleRate)
	}
	for i := 0; i < stereo.Frames(); i++ {
		frame := stereo.Frame(i)
		if frame[0] != frame[1] || frame[0] != mono.Samples[i] {
			t.Errorf("frame %d: expected %f on both channels, got %v", i, mono.Samples[i], frame)
		}
	}

	// Source must be left untouched
	if len(mono.Samples) != 3 || mono.Channels != 1 {
		t.Error("ExpandMono mutated its input")
	}
}

func TestExpandMono_PassThrough(t *testing.T) {
	for _, channels := range []int{2, 6} {
		buf := &Buffer{Samples: make([]float32, channels*4), Channels: channels, SampleRate: 48000}
		if got := ExpandMono(buf); got != buf {
			t.Errorf("%d channels: expected same buffer back", channels)
		}
	}
}

func TestToneRender(t *testing.T) {
	tone := DefaultTone(100 * time.Millisecond)
	buf := tone.Render()

	if buf.Channels != 2 {
		t.Fatalf("expected stereo tone, got %d channels", buf.Channels)
	}
	if buf.Frames() != 4410 {
		t.Fatalf("expected 4410 frames, got %d", buf.Frames())
	}

	var peak float64
	for i := 0; i < buf.Frames(); i++ {
		frame := buf.Frame(i)
		if frame[0] != frame[1] {
			t.Fatalf("frame %d: channels differ", i)
		}
		peak = math.Max(peak, math.Abs(float64(frame[0])))
	}
	if peak < 0.49 || peak > 0.5001 {
		t.Errorf("expected peak near 0.5, got %f", peak)
	}
}
