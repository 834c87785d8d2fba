// Package capture records microphone audio. A Device produces raw
// sample chunks at its native rate; a Session tracks one recording run
// and hands the result to the processing pipeline.
package capture

// Result is the raw takeaway of one capture run.
type Result struct {
	// Chunks holds the captured audio in arrival order.
	Chunks [][]float32

	// SampleRate is the rate the chunks were captured at, in Hz.
	SampleRate int
}

// Device abstracts the audio input source.
type Device interface {
	// StartCapture begins recording. onAutoStop, when non-nil, fires
	// once in its own goroutine after the configured stretch of
	// trailing silence.
	StartCapture(onAutoStop func()) error

	// StopCapture ends recording and returns everything captured since
	// StartCapture. Calling it while not recording returns an empty
	// result.
	StopCapture() (Result, error)

	// SampleRate returns the capture rate in Hz.
	SampleRate() int

	// Close releases the input device.
	Close() error
}
