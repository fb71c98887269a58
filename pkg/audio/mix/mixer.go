// ABOUTME: Channel mixer that downmixes interleaved frames to mono
// ABOUTME: Reuses a single output buffer so the capture callback never allocates
package mix

import (
	"log"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// Mixer downmixes interleaved batches to mono.
// The returned slice is only valid until the next call to Mix.
type Mixer struct {
	buf     []float32
	weights []float32
	grown   bool
}

// Option configures a Mixer
type Option func(*Mixer)

// WithWeights mixes channel i with weight w[i] instead of the plain mean.
// Weights are normalised to sum to one so a bounded input stays bounded.
// They only apply to batches with exactly len(w) channels.
func WithWeights(w ...float32) Option {
	return func(m *Mixer) {
		var sum float32
		for _, v := range w {
			if v < 0 {
				log.Printf("Ignoring mixer weights with negative entry: %v", w)
				return
			}
			sum += v
		}
		if sum == 0 {
			return
		}
		m.weights = make([]float32, len(w))
		for i, v := range w {
			m.weights[i] = v / sum
		}
	}
}

// New creates a mixer with room for maxFrames frames per batch
func New(maxFrames int, opts ...Option) *Mixer {
	m := &Mixer{buf: make([]float32, maxFrames)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mix returns one sample per frame of batch.
// Mono batches are returned as-is without copying. Callers reject batches
// without channels via FrameBatch.Validate before mixing.
func (m *Mixer) Mix(batch audio.FrameBatch) []float32 {
	frames := batch.Frames
	channels := batch.Channels
	if channels == 1 {
		return batch.Samples[:frames]
	}

	if frames > len(m.buf) {
		if !m.grown {
			log.Printf("Warning: mixer buffer too small (%d frames, batch has %d), growing", len(m.buf), frames)
			m.grown = true
		}
		m.buf = make([]float32, frames)
	}
	out := m.buf[:frames]
	in := batch.Samples

	if len(m.weights) == channels {
		for i := range out {
			var acc float32
			frame := in[i*channels : i*channels+channels]
			for ch, w := range m.weights {
				acc += frame[ch] * w
			}
			out[i] = acc
		}
		return out
	}

	scale := 1 / float32(channels)
	if channels == 2 {
		for i := range out {
			out[i] = (in[2*i] + in[2*i+1]) * scale
		}
		return out
	}
	for i := range out {
		var acc float32
		for _, s := range in[i*channels : i*channels+channels] {
			acc += s
		}
		out[i] = acc * scale
	}
	return out
}

// Capacity returns the number of frames the mixer holds without growing
func (m *Mixer) Capacity() int {
	return len(m.buf)
}
