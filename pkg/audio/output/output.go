// ABOUTME: Audio output interface and monitor consumer
// ABOUTME: Lets the 16 kHz stream be heard locally while it is transcribed
package output

import (
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
)

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write queues samples for playback without blocking
	Write(samples []float32) error

	// Close releases output resources
	Close() error
}

// Monitor plays the transcription stream through an Output.
// It is a transcribe.Consumer that never reports backpressure: a device
// that falls behind loses audio, the pipeline does not.
type Monitor struct {
	out    Output
	mu     sync.Mutex
	rate   int
	failed bool
	closed bool
}

// NewMonitor wraps out. The device is opened on the first block.
func NewMonitor(out Output) *Monitor {
	return &Monitor{out: out}
}

// Feed plays one block
func (m *Monitor) Feed(block audio.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return transcribe.ErrClosed
	}
	if m.failed {
		return nil
	}

	if m.rate == 0 {
		rate := block.SampleRate
		if rate == 0 {
			rate = audio.TargetSampleRate
		}
		if err := m.out.Open(rate, 1); err != nil {
			log.Printf("Monitor disabled: %v", err)
			m.failed = true
			return nil
		}
		m.rate = rate
	}

	if err := m.out.Write(block.Samples); err != nil {
		log.Printf("Monitor write failed: %v", err)
	}
	return nil
}

// EndOfStream closes the output device
func (m *Monitor) EndOfStream() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.rate == 0 {
		return nil
	}
	return m.out.Close()
}
