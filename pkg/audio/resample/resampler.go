// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Converts a whole in-memory buffer using linear interpolation
package resample

import (
	"fmt"

	"github.com/Resonate-Protocol/multiplay/pkg/audio"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// OutputFrames returns how many frames Resample produces for inputFrames
func (r *Resampler) OutputFrames(inputFrames int) int {
	if inputFrames == 0 || r.inputRate <= 0 {
		return 0
	}
	return int(int64(inputFrames) * int64(r.outputRate) / int64(r.inputRate))
}

// Resample converts interleaved input samples to the output rate.
// output must hold OutputFrames(len(input)/channels)*channels samples;
// the number of samples written is returned.
func (r *Resampler) Resample(input []float32, output []float32) int {
	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels
	if inputFrames == 0 {
		return 0
	}

	outIdx := 0
	for ; outIdx < outputFrames; outIdx++ {
		pos := float64(outIdx) * r.ratio
		idx := int(pos)
		if idx >= inputFrames {
			break
		}
		next := idx + 1
		if next >= inputFrames {
			next = inputFrames - 1
		}
		frac := float32(pos - float64(idx))

		for ch := 0; ch < r.channels; ch++ {
			s1 := input[idx*r.channels+ch]
			s2 := input[next*r.channels+ch]
			output[outIdx*r.channels+ch] = s1*(1-frac) + s2*frac
		}
	}

	return outIdx * r.channels
}

// Buffer returns a copy of buf at the target sample rate.
// The input buffer is not modified; when the rates already match buf is returned as is.
func Buffer(buf *audio.Buffer, targetRate int) (*audio.Buffer, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("invalid target sample rate: %d", targetRate)
	}
	if buf.SampleRate == targetRate {
		return buf, nil
	}

	r := New(buf.SampleRate, targetRate, buf.Channels)
	out := make([]float32, r.OutputFrames(buf.Frames())*buf.Channels)
	n := r.Resample(buf.Samples, out)

	return &audio.Buffer{
		Samples:    out[:n],
		Channels:   buf.Channels,
		SampleRate: targetRate,
	}, nil
}
