package audio

// ToMono reduces interleaved audio to its first channel. Averaging would be
// more faithful for uncorrelated channels; channel 0 is enough because
// speech sources are mono or near-identical across channels.
func ToMono(c Chunk) []float32 {
	if c.Channels <= 1 {
		out := make([]float32, len(c.Samples))
		copy(out, c.Samples)
		return out
	}

	frames := c.Frames()
	out := make([]float32, frames)
	for i := range frames {
		out[i] = c.Samples[i*c.Channels]
	}
	return out
}

// Resample converts a chunk to mono at outRate using nearest-neighbour
// index mapping: output sample i takes input frame floor(i*Rin/Rout).
// Source indices past the end are skipped rather than invented. The result
// is not band-limited, which speech recognition tolerates.
//
// Resample is pure and deterministic. Equal rates return the mono
// reduction unchanged.
func Resample(c Chunk, outRate int) []float32 {
	mono := ToMono(c)
	if len(mono) == 0 || outRate <= 0 || c.SampleRate <= 0 {
		return []float32{}
	}
	if c.SampleRate == outRate {
		return mono
	}

	inRate := int64(c.SampleRate)
	outLen := int(int64(len(mono)) * int64(outRate) / inRate)
	out := make([]float32, 0, outLen)

	for i := range outLen {
		src := int(int64(i) * inRate / int64(outRate))
		if src >= len(mono) {
			break
		}
		out = append(out, mono[src])
	}
	return out
}
