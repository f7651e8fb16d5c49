package myaudio

// ResampleAudio converts samples from originalRate to targetRate using cubic
// (Catmull-Rom) interpolation. Equal or invalid rates return the input
// unchanged. Neighbours outside the input repeat the edge sample.
func ResampleAudio(samples []float64, originalRate, targetRate int) []float64 {
	if originalRate <= 0 || targetRate <= 0 || originalRate == targetRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(targetRate) / float64(originalRate)
	newLength := int(float64(len(samples)) * ratio)
	if newLength < 1 {
		newLength = 1
	}
	resampled := make([]float64, newLength)

	last := len(samples) - 1
	at := func(i int) float64 {
		switch {
		case i < 0:
			return samples[0]
		case i > last:
			return samples[last]
		}
		return samples[i]
	}

	for i := range resampled {
		origPos := float64(i) / ratio
		index := int(origPos)
		frac := origPos - float64(index)

		y0, y1, y2, y3 := at(index-1), at(index), at(index+1), at(index+2)
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		resampled[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}
	return resampled
}

// Resampled returns a copy of the clip at the given rate.
func (c *Clip) Resampled(rate int) *Clip {
	return &Clip{Samples: ResampleAudio(c.Samples, c.SampleRate, rate), SampleRate: rate}
}
