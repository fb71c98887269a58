// ABOUTME: Byte buffer between the pipeline and the oto player
// ABOUTME: Drops the oldest audio when full and reads silence when empty
package output

import "sync"

// pcmBuffer is a bounded FIFO of 16-bit PCM bytes
type pcmBuffer struct {
	mu      sync.Mutex
	data    []byte
	start   int
	size    int
	dropped uint64
}

func newPCMBuffer(capacity int) *pcmBuffer {
	return &pcmBuffer{data: make([]byte, capacity)}
}

// Write appends p, evicting the oldest bytes when it does not fit
func (b *pcmBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if len(p) > len(b.data) {
		b.dropped += uint64(len(p) - len(b.data))
		p = p[len(p)-len(b.data):]
	}

	if over := b.size + len(p) - len(b.data); over > 0 {
		b.start = (b.start + over) % len(b.data)
		b.size -= over
		b.dropped += uint64(over)
	}

	end := (b.start + b.size) % len(b.data)
	copied := copy(b.data[end:], p)
	copy(b.data, p[copied:])
	b.size += len(p)

	return n, nil
}

// Read fills p with buffered audio followed by silence. It never blocks
// so the player keeps running while the pipeline is idle.
func (b *pcmBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n > b.size {
		n = b.size
	}
	// keep 16-bit samples whole
	n &^= 1

	first := copy(p[:n], b.data[b.start:])
	copy(p[first:n], b.data)
	b.start = (b.start + n) % len(b.data)
	b.size -= n

	clear(p[n:])
	return len(p), nil
}

// Len returns the number of buffered bytes
func (b *pcmBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped returns how many bytes were evicted
func (b *pcmBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
