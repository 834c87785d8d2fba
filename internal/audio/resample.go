package audio

import "math"

// sincTaps is the half-width of the interpolation kernel in output
// sample periods. Wider kernels sharpen the transition band at more
// CPU; 16 is plenty for speech.
const sincTaps = 16

// Resample converts the buffer to targetRate using windowed-sinc
// interpolation. The kernel is low-passed at the narrower of the two
// Nyquist limits, so downsampling does not alias. Equal rates return
// the input untouched. Output length is round(len/ratio) with
// ratio = sourceRate/targetRate; the result is deterministic for a
// given input.
func Resample(b Buffer, targetRate int) Buffer {
	if b.Rate == targetRate {
		return b
	}
	if len(b.Samples) == 0 {
		return Buffer{Rate: targetRate}
	}
	ratio := float64(b.Rate) / float64(targetRate)
	outLen := int(math.Round(float64(len(b.Samples)) / ratio))
	if outLen < 1 {
		outLen = 1
	}

	// When reducing the rate the kernel must cover ratio source samples
	// per output sample and cut off at the target Nyquist.
	cutoff := 1.0
	halfWidth := float64(sincTaps)
	if ratio > 1 {
		cutoff = 1 / ratio
		halfWidth = float64(sincTaps) * ratio
	}

	out := make([]float32, outLen)
	last := len(b.Samples) - 1
	for i := range out {
		center := float64(i) * ratio
		lo := int(math.Ceil(center - halfWidth))
		hi := int(math.Floor(center + halfWidth))
		if lo < 0 {
			lo = 0
		}
		if hi > last {
			hi = last
		}
		var acc, norm float64
		for j := lo; j <= hi; j++ {
			x := float64(j) - center
			w := sinc(cutoff*x) * hann(x/halfWidth)
			acc += float64(b.Samples[j]) * w
			norm += w
		}
		// Normalizing by the window sum keeps unity gain near the
		// buffer edges where the kernel is clipped.
		if norm != 0 {
			out[i] = float32(acc / norm)
		}
	}
	return Buffer{Samples: out, Rate: targetRate}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// hann evaluates the Hann window at x in [-1, 1]; zero outside.
func hann(x float64) float64 {
	if x <= -1 || x >= 1 {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*x))
}
