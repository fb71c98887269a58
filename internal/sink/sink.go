// ABOUTME: Output sink that queues resampled blocks for the transcription consumer
// ABOUTME: Bounded preallocated queue that drops instead of blocking the capture path
package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
)

// DefaultCapacity is the queue depth used when none is configured
const DefaultCapacity = 32

// ErrOverflow marks a sink that has dropped blocks. It is informational only.
var ErrOverflow = errors.New("sink: blocks dropped on overflow")

// Policy decides which block is lost when the queue is full
type Policy int

const (
	// DropOldest evicts the oldest queued block to make room
	DropOldest Policy = iota
	// DropNewest rejects the incoming block
	DropNewest
)

func (p Policy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a flag value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "drop-oldest", "oldest":
		return DropOldest, nil
	case "drop-newest", "newest":
		return DropNewest, nil
	default:
		return 0, fmt.Errorf("unknown overflow policy %q (want drop-oldest or drop-newest)", s)
	}
}

// Config holds sink configuration
type Config struct {
	Capacity   int    // queued blocks
	BlockSize  int    // samples per block, used to preallocate slots
	SampleRate int    // stamped on every block
	Policy     Policy // overflow policy
}

// Stats is a snapshot of sink counters
type Stats struct {
	Queued       int
	Pushed       uint64 // blocks offered by the producer
	Delivered    uint64 // blocks accepted by the consumer
	Overflows    uint64 // blocks lost because the queue was full
	Backpressure uint64 // blocks lost because the consumer refused them
	Samples      uint64 // samples offered by the producer
}

// Err returns ErrOverflow if any block was lost
func (s Stats) Err() error {
	if s.Overflows > 0 || s.Backpressure > 0 {
		return ErrOverflow
	}
	return nil
}

type slot struct {
	seq     uint64
	offset  uint64
	samples []float32
}

// Sink forwards blocks to a consumer in order.
//
// Push copies into a preallocated slot and never waits for the consumer;
// the lock it takes is only ever held for a copy. Every block is stamped
// with a sequence number and its sample offset in the stream, so gaps left
// by dropped blocks are visible downstream.
type Sink struct {
	cfg      Config
	consumer transcribe.Consumer

	mu         sync.Mutex
	slots      []slot
	head       int
	count      int
	nextSeq    uint64
	nextOffset uint64
	closed     bool
	spare      []float32

	notify   chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  atomic.Bool

	pushed       atomic.Uint64
	delivered    atomic.Uint64
	overflows    atomic.Uint64
	backpressure atomic.Uint64
	samples      atomic.Uint64
	warnedGrow   atomic.Bool
}

// New creates a sink feeding consumer
func New(cfg Config, consumer transcribe.Consumer) (*Sink, error) {
	if consumer == nil {
		return nil, errors.New("sink: consumer is required")
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("sink: capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.BlockSize < 0 {
		return nil, fmt.Errorf("sink: block size must not be negative, got %d", cfg.BlockSize)
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.TargetSampleRate
	}
	if cfg.Policy != DropOldest && cfg.Policy != DropNewest {
		return nil, fmt.Errorf("sink: unknown overflow policy %d", cfg.Policy)
	}

	s := &Sink{
		cfg:      cfg,
		consumer: consumer,
		slots:    make([]slot, cfg.Capacity),
		spare:    make([]float32, 0, cfg.BlockSize),
		notify:   make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	for i := range s.slots {
		s.slots[i].samples = make([]float32, 0, cfg.BlockSize)
	}
	return s, nil
}

// Push queues a copy of samples as the next block.
// It returns false if this block was dropped or the sink is closed.
func (s *Sink) Push(samples []float32) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	seq, offset := s.nextSeq, s.nextOffset
	s.nextSeq++
	s.nextOffset += uint64(len(samples))
	s.pushed.Add(1)
	s.samples.Add(uint64(len(samples)))

	if s.count == len(s.slots) {
		s.overflows.Add(1)
		if s.cfg.Policy == DropNewest {
			s.mu.Unlock()
			return false
		}
		s.head = (s.head + 1) % len(s.slots)
		s.count--
	}

	sl := &s.slots[(s.head+s.count)%len(s.slots)]
	if cap(sl.samples) < len(samples) && !s.warnedGrow.Swap(true) {
		log.Printf("Warning: sink slot holds %d samples, block has %d, growing", cap(sl.samples), len(samples))
	}
	sl.seq = seq
	sl.offset = offset
	sl.samples = append(sl.samples[:0], samples...)
	s.count++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest block. The returned samples belong to the caller
// until the next pop; the slot takes the caller's previous buffer.
func (s *Sink) pop(buf []float32) (audio.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return audio.Block{}, false
	}

	sl := &s.slots[s.head]
	block := audio.Block{
		Seq:        sl.seq,
		Offset:     sl.offset,
		SampleRate: s.cfg.SampleRate,
		Samples:    sl.samples,
	}
	sl.samples = buf[:0]
	s.head = (s.head + 1) % len(s.slots)
	s.count--
	return block, true
}

// Start runs the forwarding goroutine until ctx is done or Close is called
func (s *Sink) Start(ctx context.Context) {
	if s.started.Swap(true) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.notify:
				s.forward()
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			}
		}
	}()
}

// forward delivers everything queued. Only one goroutine forwards at a time.
func (s *Sink) forward() {
	for {
		block, ok := s.pop(s.spare)
		if !ok {
			return
		}
		s.deliver(block)
		s.spare = block.Samples
	}
}

func (s *Sink) deliver(block audio.Block) {
	err := s.consumer.Feed(block)
	switch {
	case err == nil:
		s.delivered.Add(1)
	case errors.Is(err, transcribe.ErrBackpressure):
		// The consumer refused the oldest block; it is gone like an overflow
		s.backpressure.Add(1)
	default:
		s.backpressure.Add(1)
		log.Printf("Consumer rejected block %d: %v", block.Seq, err)
	}
}

// Close stops forwarding, delivers what is still queued and ends the stream
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()

	s.forward()
	if err := s.consumer.EndOfStream(); err != nil {
		return fmt.Errorf("end of stream: %w", err)
	}
	return nil
}

// Len returns the number of queued blocks
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Stats returns a snapshot of the counters
func (s *Sink) Stats() Stats {
	return Stats{
		Queued:       s.Len(),
		Pushed:       s.pushed.Load(),
		Delivered:    s.delivered.Load(),
		Overflows:    s.overflows.Load(),
		Backpressure: s.backpressure.Load(),
		Samples:      s.samples.Load(),
	}
}

// Config returns the sink configuration
func (s *Sink) Config() Config {
	return s.cfg
}
