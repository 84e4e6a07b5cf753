// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files to float32 samples via go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/multiplay/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// decodeMP3 reads a complete MP3 stream.
// go-mp3 always produces 16-bit little-endian stereo.
func decodeMP3(r io.ReadSeeker) (*audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := len(pcm) / 2
	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}

	return &audio.Buffer{
		Samples:    samples,
		Channels:   2,
		SampleRate: decoder.SampleRate(),
	}, nil
}
