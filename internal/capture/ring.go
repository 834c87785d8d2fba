package capture

import (
	"sync"
)

// Ring is a thread-safe ring buffer for audio samples. The input
// callback writes into it and the pump goroutine drains it, so neither
// side ever blocks the other.
type Ring struct {
	buffer  []float32
	size    int
	read    int
	write   int
	dropped int
	mu      sync.RWMutex
}

// NewRing creates a ring buffer holding up to size-1 samples.
func NewRing(size int) *Ring {
	return &Ring{
		buffer: make([]float32, size),
		size:   size,
	}
}

// Write appends samples to the ring. Returns the number written; the
// rest is dropped when the ring is full.
func (r *Ring) Write(data []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := 0
	for i := 0; i < len(data); i++ {
		if (r.write+1)%r.size == r.read {
			break // Ring full
		}

		r.buffer[r.write] = data[i]
		r.write = (r.write + 1) % r.size
		written++
	}

	r.dropped += len(data) - written
	return written
}

// Read copies samples out of the ring. Returns the number read.
func (r *Ring) Read(data []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	read := 0
	for i := 0; i < len(data); i++ {
		if r.read == r.write {
			break // Ring empty
		}

		data[i] = r.buffer[r.read]
		r.read = (r.read + 1) % r.size
		read++
	}

	return read
}

// Available returns the number of samples ready to read.
func (r *Ring) Available() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available()
}

// Space returns the number of samples that can be written.
func (r *Ring) Space() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.size - r.available() - 1 // -1 to prevent full/empty ambiguity
}

// available must be called with the lock held.
func (r *Ring) available() int {
	if r.write >= r.read {
		return r.write - r.read
	}
	return r.size - r.read + r.write
}

// Dropped returns the number of samples lost to overruns.
func (r *Ring) Dropped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Clear resets the ring.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.read = 0
	r.write = 0
	r.dropped = 0
}

// IsEmpty returns true if no samples are buffered.
func (r *Ring) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.read == r.write
}

// IsFull returns true if the next write would drop.
func (r *Ring) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (r.write+1)%r.size == r.read
}
