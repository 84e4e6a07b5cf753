// ABOUTME: Channel layout helpers
// ABOUTME: Expands mono buffers so downstream code can assume stereo
package audio

// ExpandMono returns a two-channel copy of a mono buffer with left = right.
// Buffers with two or more channels are returned unchanged.
func ExpandMono(b *Buffer) *Buffer {
	if b == nil || b.Channels != 1 {
		return b
	}

	out := make([]float32, len(b.Samples)*2)
	for i, s := range b.Samples {
		out[i*2] = s
		out[i*2+1] = s
	}

	return &Buffer{
		Samples:    out,
		Channels:   2,
		SampleRate: b.SampleRate,
	}
}
