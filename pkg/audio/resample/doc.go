// ABOUTME: Sample rate conversion for decoded playback buffers
// ABOUTME: Linear interpolation over interleaved frames, run once before dispatch
// Package resample converts a whole in-memory buffer to a device-friendly rate.
//
// Playback resamples at most once per run, so the result can be shared
// read-only by every device task:
//
//	out, err := resample.Buffer(buf, 48000)
//
// For streaming use, New returns a Resampler that converts chunks of
// interleaved samples at a fixed ratio.
package resample
