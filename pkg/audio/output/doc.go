// ABOUTME: Audio output package for per-device playback
// ABOUTME: Provides Backend and Stream interfaces with PortAudio, malgo, oto and virtual backends
// Package output opens playback streams on specific output devices.
//
// Every backend implements Backend. Stream.Write blocks until the device has
// consumed the submitted samples, and StreamConfig.OnFirstAudio reports the
// moment the device first consumed them.
//
// PortAudio support requires the portaudio build tag.
//
// Example:
//
//	backend, err := output.New(output.BackendMalgo)
//	stream, err := backend.Open(output.StreamConfig{DeviceID: 1, SampleRate: 48000, Channels: 2})
//	err = stream.Write(samples)
//	err = stream.Close()
package output
