// ABOUTME: WAV audio decoder
// ABOUTME: Decodes integer PCM, extensible PCM and IEEE float WAV files via go-audio/wav
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/Resonate-Protocol/multiplay/pkg/audio"
	"github.com/go-audio/wav"
)

// WAV format tags
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// decodeWAV reads a complete WAV file
func decodeWAV(r io.ReadSeeker) (*audio.Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	channels := int(decoder.NumChans)
	if channels == 0 {
		return nil, fmt.Errorf("WAV header reports zero channels")
	}

	var samples []float32
	var err error
	switch decoder.WavAudioFormat {
	case wavFormatPCM, wavFormatExtensible:
		// extensible headers carry integer PCM in every file we accept
		samples, err = wavIntSamples(decoder)
	case wavFormatIEEEFloat:
		samples, err = wavFloatSamples(decoder)
	default:
		return nil, fmt.Errorf("unsupported WAV encoding: format tag %d (supported: PCM, extensible PCM, IEEE float)",
			decoder.WavAudioFormat)
	}
	if err != nil {
		return nil, err
	}

	return &audio.Buffer{
		Samples:    samples,
		Channels:   channels,
		SampleRate: int(decoder.SampleRate),
	}, nil
}

func wavIntSamples(decoder *wav.Decoder) ([]float32, error) {
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}

	bitDepth := int(decoder.BitDepth)
	samples := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		if bitDepth == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		samples[i] = audio.SampleFromInt(int32(v), bitDepth)
	}
	return samples, nil
}

// wavFloatSamples reads 32 or 64-bit float frames straight from the data chunk
func wavFloatSamples(decoder *wav.Decoder) ([]float32, error) {
	width := int(decoder.BitDepth) / 8
	if width != 4 && width != 8 {
		return nil, fmt.Errorf("unsupported float WAV bit depth %d (supported: 32, 64)", decoder.BitDepth)
	}

	if !decoder.WasPCMAccessed() {
		if err := decoder.FwdToPCM(); err != nil {
			return nil, fmt.Errorf("failed to find WAV data: %w", err)
		}
	}
	if decoder.PCMChunk == nil {
		return nil, fmt.Errorf("WAV data chunk not found")
	}

	raw := make([]byte, decoder.PCMLen())
	n, err := io.ReadFull(decoder.PCMChunk, raw)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}
	raw = raw[:n-n%width]

	samples := make([]float32, len(raw)/width)
	for i := range samples {
		b := raw[i*width:]
		if width == 4 {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		} else {
			samples[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	}
	return samples, nil
}
