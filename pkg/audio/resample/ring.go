// ABOUTME: Lock-free single-producer single-consumer ring buffer for float samples
// ABOUTME: Decouples the real-time capture callback from the resampling worker
package resample

import "sync/atomic"

// RingBuffer is a fixed-capacity FIFO of samples.
// Exactly one goroutine may Write and exactly one may Read. Neither side
// blocks or allocates, and unread samples are never overwritten: a Write
// into a full buffer stores only what fits.
type RingBuffer struct {
	buffer []float32
	size   uint64

	writePos atomic.Uint64 // total samples written
	readPos  atomic.Uint64 // total samples read
}

// NewRingBuffer creates a ring buffer with given capacity (in samples)
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		buffer: make([]float32, capacity),
		size:   uint64(capacity),
	}
}

// Write appends samples and returns how many fit
func (rb *RingBuffer) Write(samples []float32) int {
	w := rb.writePos.Load()
	free := rb.size - (w - rb.readPos.Load())
	n := uint64(len(samples))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	start := w % rb.size
	first := copy(rb.buffer[start:], samples[:n])
	copy(rb.buffer, samples[first:n])

	rb.writePos.Store(w + n)
	return int(n)
}

// Read moves up to len(samples) buffered samples into samples
func (rb *RingBuffer) Read(samples []float32) int {
	r := rb.readPos.Load()
	avail := rb.writePos.Load() - r
	n := uint64(len(samples))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	start := r % rb.size
	first := copy(samples[:n], rb.buffer[start:])
	copy(samples[first:n], rb.buffer)

	rb.readPos.Store(r + n)
	return int(n)
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	r := rb.readPos.Load()
	return int(rb.writePos.Load() - r)
}

// Free returns the number of free slots in the buffer
func (rb *RingBuffer) Free() int {
	return int(rb.size) - rb.Available()
}

// Cap returns the buffer capacity in samples
func (rb *RingBuffer) Cap() int {
	return int(rb.size)
}

// Reset discards buffered samples. Neither side may be active.
func (rb *RingBuffer) Reset() {
	rb.readPos.Store(rb.writePos.Load())
}
