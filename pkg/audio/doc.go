// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Buffer type, channel expansion and test tones
// Package audio provides the in-memory audio types shared by the loader,
// the calibrator and the playback dispatcher.
//
// This package defines:
//   - Buffer: interleaved float32 PCM with channel count and sample rate
//   - ExpandMono: mono to stereo expansion (left = right)
//   - Tone: the sine test signal used for latency calibration
//
// It also provides utilities for converting integer PCM samples to float32.
//
// Example:
//
//	buf := audio.DefaultTone(time.Second).Render()
//	fmt.Println(buf.Frames(), buf.Duration())
package audio
