// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC files frame by frame via mewkiz/flac
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/multiplay/pkg/audio"
	"github.com/mewkiz/flac"
)

// decodeFLAC reads every frame of a FLAC stream and interleaves the subframes
func decodeFLAC(r io.ReadSeeker) (*audio.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if channels == 0 {
		return nil, fmt.Errorf("FLAC stream reports zero channels")
	}

	var samples []float32
	if info.NSamples > 0 {
		samples = make([]float32, 0, int(info.NSamples)*channels)
	}

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("flac frame error: %w", err)
		}
		if len(frame.Subframes) < channels {
			return nil, fmt.Errorf("flac frame has %d subframes, expected %d", len(frame.Subframes), channels)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, audio.SampleFromInt(frame.Subframes[ch].Samples[i], bitDepth))
			}
		}
	}

	return &audio.Buffer{
		Samples:    samples,
		Channels:   channels,
		SampleRate: int(info.SampleRate),
	}, nil
}
