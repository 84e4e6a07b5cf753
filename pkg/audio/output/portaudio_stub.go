//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
)

// errPortAudioDisabled is returned by every stub operation
var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio backend (stub)
type PortAudio struct{}

// NewPortAudio reports that PortAudio support is not compiled in
func NewPortAudio() (Backend, error) {
	return nil, errPortAudioDisabled
}

// Name returns the backend identifier
func (p *PortAudio) Name() string { return BackendPortAudio }

// Devices is unavailable without PortAudio
func (p *PortAudio) Devices() ([]Device, error) {
	return nil, errPortAudioDisabled
}

// Open is unavailable without PortAudio
func (p *PortAudio) Open(cfg StreamConfig) (Stream, error) {
	return nil, errors.Join(ErrDeviceOpen, errPortAudioDisabled)
}

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}
