package speaker

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// STFT framing and quality weights.
const (
	frameLength = 2048
	hopLength   = 512

	snrWeight      = 0.3
	activityWeight = 0.3
	centroidWeight = 0.2
	durationWeight = 0.2

	silencePercentile  = 0.30
	speechCentroidLow  = 500.0
	fullDurationSecond = 5.0
)

// QualityScore rates a prepared waveform in [0,1] from an energy-based SNR
// estimate, the share of voiced frames, the spectral centroid and the
// clip length. The score is informational.
func QualityScore(samples []float64, rate int) float64 {
	if len(samples) == 0 || rate <= 0 {
		return 0
	}

	energy, centroids := spectralFrames(samples, rate)

	var snrScore float64
	if len(energy) > 0 {
		mean, std := stat.PopMeanStdDev(energy, nil)
		snrScore = math.Min(mean/(std+1e-8)/10.0, 1.0)
	}

	var voiceRatio float64
	if len(energy) > 0 {
		threshold := percentile(energy, silencePercentile)
		var voiced int
		for _, e := range energy {
			if e > threshold {
				voiced++
			}
		}
		voiceRatio = float64(voiced) / float64(len(energy))
	}

	centroidScore := 0.5
	if len(centroids) > 0 && stat.Mean(centroids, nil) > speechCentroidLow {
		centroidScore = 1.0
	}

	duration := float64(len(samples)) / float64(rate)
	durationScore := math.Min(duration/fullDurationSecond, 1.0)

	return snrScore*snrWeight +
		voiceRatio*activityWeight +
		centroidScore*centroidWeight +
		durationScore*durationWeight
}

// spectralFrames runs a centered Hann-windowed STFT and returns per-frame
// energy (sum of squared magnitudes) and spectral centroid in Hz.
func spectralFrames(samples []float64, rate int) (energy, centroids []float64) {
	padded := reflectPad(samples, frameLength/2)
	frames := 1 + (len(padded)-frameLength)/hopLength
	if frames < 1 {
		return nil, nil
	}

	fft := fourier.NewFFT(frameLength)
	window := hann(frameLength)
	seq := make([]float64, frameLength)
	coeffs := make([]complex128, frameLength/2+1)
	binHz := float64(rate) / float64(frameLength)

	energy = make([]float64, 0, frames)
	centroids = make([]float64, 0, frames)
	for f := range frames {
		start := f * hopLength
		for i := range seq {
			seq[i] = padded[start+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, seq)

		var power, magSum, weighted float64
		for k, c := range coeffs {
			mag := cmplx.Abs(c)
			power += mag * mag
			magSum += mag
			weighted += float64(k) * binHz * mag
		}
		energy = append(energy, power)
		if magSum > 0 {
			centroids = append(centroids, weighted/magSum)
		} else {
			centroids = append(centroids, 0)
		}
	}
	return energy, centroids
}

// reflectPad mirrors pad samples at both ends without repeating the edge
// sample. Positions that cannot be mirrored are zero.
func reflectPad(samples []float64, pad int) []float64 {
	n := len(samples)
	out := make([]float64, n+2*pad)
	copy(out[pad:], samples)
	if n < 2 {
		return out
	}
	for i := 1; i <= pad; i++ {
		if i < n {
			out[pad-i] = samples[i]
		}
		if j := n - 1 - i; j >= 0 {
			out[pad+n-1+i] = samples[j]
		}
	}
	return out
}

// hann returns a periodic Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
