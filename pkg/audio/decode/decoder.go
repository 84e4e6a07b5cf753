// ABOUTME: Audio file loader
// ABOUTME: Decodes a whole MP3, FLAC or WAV file into a shared in-memory buffer
package decode

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/multiplay/pkg/audio"
)

// ErrDecode marks any failure to turn the audio source into a playable buffer.
// Callers must abort the run rather than play a partial or empty buffer.
var ErrDecode = errors.New("audio decode failure")

// decoderFunc decodes an opened file into a buffer
type decoderFunc func(r io.ReadSeeker) (*audio.Buffer, error)

var decoders = map[string]decoderFunc{
	".mp3":  decodeMP3,
	".flac": decodeFLAC,
	".wav":  decodeWAV,
}

// SupportedExtensions lists the file extensions Load understands
func SupportedExtensions() []string {
	return []string{".flac", ".mp3", ".wav"}
}

// Load decodes the file at path. Mono sources are expanded to two identical
// channels; sources with two or more channels keep their layout.
func Load(path string) (*audio.Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported audio format %q (supported: %s)",
			ErrDecode, ext, strings.Join(SupportedExtensions(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open audio file: %w", ErrDecode, err)
	}
	defer func() { _ = f.Close() }()

	buf, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, filepath.Base(path), err)
	}
	if buf.Frames() == 0 {
		return nil, fmt.Errorf("%w: %s contains no audio frames", ErrDecode, filepath.Base(path))
	}

	buf = audio.ExpandMono(buf)

	slog.Default().With("module", "decode").Info("Loaded audio",
		"file", filepath.Base(path),
		"sample_rate", buf.SampleRate,
		"channels", buf.Channels,
		"duration", buf.Duration())

	return buf, nil
}
