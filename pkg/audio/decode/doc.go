// ABOUTME: Audio file loading package
// ABOUTME: Provides Load for MP3, FLAC and WAV sources
// Package decode turns an audio file into an in-memory audio.Buffer.
//
// Supports: MP3 (go-mp3), FLAC (mewkiz/flac), PCM WAV (go-audio/wav)
//
// Every loader produces float32 samples normalised to [-1, 1]. Mono files
// are expanded to stereo so playback can always assume two channels.
// Failures wrap ErrDecode.
//
// Example:
//
//	buf, err := decode.Load("track.flac")
//	if errors.Is(err, decode.ErrDecode) {
//	    // abort the run
//	}
package decode
