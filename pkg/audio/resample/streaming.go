// ABOUTME: Streaming resampler that buffers arbitrary pushes in a FIFO
// ABOUTME: Drains whole blocks through the block converter and keeps the remainder
package resample

import (
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultCapacityBlocks is the ring capacity used when none is given, in input blocks
const DefaultCapacityBlocks = 8

// StreamingStats counts samples through a streaming resampler
type StreamingStats struct {
	Pushed   uint64 // samples accepted into the FIFO
	Dropped  uint64 // samples rejected because the FIFO was full
	Consumed uint64 // samples drained in full blocks
	Produced uint64 // output samples emitted
	Buffered int    // samples waiting for a full block
}

// Streaming resamples input of any push size.
//
// Push is the producer side and may run on the real-time callback. Drain is
// the consumer side and runs on a worker goroutine. Process combines both
// for callers that own a single context.
type Streaming struct {
	cfg   Config
	core  *fftBlock
	ring  *RingBuffer
	block []float32
	out   []float32

	pushed   atomic.Uint64
	dropped  atomic.Uint64
	consumed atomic.Uint64
	produced atomic.Uint64
}

// NewStreaming creates a streaming resampler whose FIFO holds capacity samples.
// A capacity of zero selects DefaultCapacityBlocks input blocks.
func NewStreaming(cfg Config, capacity int) (*Streaming, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if capacity == 0 {
		capacity = DefaultCapacityBlocks * cfg.BlockSizeIn
	}
	if capacity < cfg.BlockSizeIn {
		return nil, &ConfigError{
			Field:  "capacity",
			Reason: fmt.Sprintf("%d samples cannot hold one %d sample block", capacity, cfg.BlockSizeIn),
		}
	}
	return &Streaming{
		cfg:   cfg,
		core:  newFFTBlock(cfg.BlockSizeIn, cfg.BlockSizeOut),
		ring:  NewRingBuffer(capacity),
		block: make([]float32, cfg.BlockSizeIn),
		out:   make([]float32, cfg.BlockSizeOut),
	}, nil
}

// Push appends samples to the FIFO without blocking.
// It returns the number accepted; the rest are counted as dropped.
func (s *Streaming) Push(samples []float32) int {
	n := s.ring.Write(samples)
	s.pushed.Add(uint64(n))
	if n < len(samples) {
		s.dropped.Add(uint64(len(samples) - n))
	}
	return n
}

// Drain converts every full block currently buffered, in order, handing
// each BlockSizeOut result to emit. The slice passed to emit is reused.
// It returns the number of output samples emitted.
func (s *Streaming) Drain(emit func([]float32)) int {
	total := 0
	for s.ring.Available() >= s.cfg.BlockSizeIn {
		s.ring.Read(s.block)
		s.core.process(s.block, s.out)
		s.consumed.Add(uint64(len(s.block)))
		s.produced.Add(uint64(len(s.out)))
		total += len(s.out)
		if emit != nil {
			emit(s.out)
		}
	}
	return total
}

// Process pushes in and drains as it goes, so no sample is dropped
// however large in is. Only valid when one goroutine owns both sides.
func (s *Streaming) Process(in []float32, emit func([]float32)) (int, error) {
	total := 0
	for len(in) > 0 {
		// Samples that do not fit yet are retried after the drain, not dropped
		n := s.ring.Write(in)
		s.pushed.Add(uint64(n))
		in = in[n:]
		total += s.Drain(emit)
	}
	return total, nil
}

// Buffered returns the samples waiting for a full block
func (s *Streaming) Buffered() int {
	return s.ring.Available()
}

// Stats returns a snapshot of the counters
func (s *Streaming) Stats() StreamingStats {
	return StreamingStats{
		Pushed:   s.pushed.Load(),
		Dropped:  s.dropped.Load(),
		Consumed: s.consumed.Load(),
		Produced: s.produced.Load(),
		Buffered: s.ring.Available(),
	}
}

// Config returns the session configuration
func (s *Streaming) Config() Config {
	return s.cfg
}

// Latency is bounded by one block at the input rate on top of device buffering
func (s *Streaming) Latency() time.Duration {
	return s.cfg.Latency()
}

// Reset discards buffered input, filter overlap and counters.
// Neither side may be active.
func (s *Streaming) Reset() {
	s.ring.Reset()
	s.core.reset()
	s.pushed.Store(0)
	s.dropped.Store(0)
	s.consumed.Store(0)
	s.produced.Store(0)
}
