// Package audio holds the signal-processing stages that turn a raw
// microphone recording into a buffer ready for transcription. All
// functions are pure: they read their input and return a fresh buffer.
package audio

import "time"

// Buffer is a contiguous sequence of mono float32 samples at a fixed
// sample rate. Rate must be positive for any non-degenerate buffer.
type Buffer struct {
	Samples []float32
	Rate    int
}

// Flatten concatenates captured chunks in arrival order into a single
// buffer at the given rate. One allocation, O(n) copies.
func Flatten(chunks [][]float32, rate int) Buffer {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	samples := make([]float32, 0, total)
	for _, c := range chunks {
		samples = append(samples, c...)
	}
	return Buffer{Samples: samples, Rate: rate}
}

// Empty reports whether the buffer holds no samples.
func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.Rate) * float64(time.Second))
}
