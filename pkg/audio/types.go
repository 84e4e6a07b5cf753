// ABOUTME: Audio type definitions
// ABOUTME: Defines the shared in-memory PCM buffer and sample conversions
package audio

import (
	"math"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Buffer is decoded PCM audio held entirely in memory.
// Samples are interleaved float32 in roughly [-1, 1]. A Buffer is never
// mutated after it has been loaded, so any number of playback tasks may
// read it concurrently.
type Buffer struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of frames (samples per channel)
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback duration at the buffer's sample rate
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Frame returns the samples of frame i, one per channel
func (b *Buffer) Frame(i int) []float32 {
	start := i * b.Channels
	return b.Samples[start : start+b.Channels]
}

// SampleFromInt16 converts an int16 sample to float32 in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// SampleToInt16 converts a float32 sample to int16 with clipping
func SampleToInt16(sample float32) int16 {
	scaled := math.Round(float64(sample) * 32768.0)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// SampleFromInt converts a signed integer sample of the given bit depth to float32
func SampleFromInt(sample int32, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	full := float64(uint64(1) << uint(bitDepth-1))
	return float32(float64(sample) / full)
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
