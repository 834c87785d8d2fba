package audio

import "math"

// DefaultPeakTarget leaves 5% headroom above the normalized peak.
const DefaultPeakTarget = 0.95

// Normalize removes the DC offset and scales the signal so its peak
// magnitude lands on peak. Two read passes (mean, then max deviation)
// followed by a single write pass. A buffer with no deviation at all
// (pure silence or flat DC) comes back centered but unscaled, never
// NaN or Inf.
func Normalize(b Buffer, peak float64) Buffer {
	n := len(b.Samples)
	if n == 0 {
		return b
	}

	var sum float64
	for _, s := range b.Samples {
		sum += float64(s)
	}
	mean := sum / float64(n)

	var maxAbs float64
	for _, s := range b.Samples {
		d := math.Abs(float64(s) - mean)
		if d > maxAbs {
			maxAbs = d
		}
	}

	scale := 1.0
	if maxAbs > 0 {
		scale = peak / maxAbs
	}
	out := make([]float32, n)
	for i, s := range b.Samples {
		out[i] = float32((float64(s) - mean) * scale)
	}
	return Buffer{Samples: out, Rate: b.Rate}
}
