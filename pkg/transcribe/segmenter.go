// ABOUTME: Utterance segmenter that turns the block stream into engine calls
// ABOUTME: Buffers speech between silences and runs the engine off the sink goroutine
package transcribe

import (
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// SegmenterConfig controls utterance boundaries
type SegmenterConfig struct {
	// SilenceThreshold is the block RMS below which a block counts as silence
	SilenceThreshold float64
	// SilenceDuration of trailing silence ends an utterance
	SilenceDuration time.Duration
	// MaxDuration forces an utterance out even without silence
	MaxDuration time.Duration
	// QueueBlocks bounds the blocks waiting for the engine
	QueueBlocks int
}

// DefaultSegmenterConfig returns the settings used by the caption tools
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SilenceThreshold: 0.01,
		SilenceDuration:  500 * time.Millisecond,
		MaxDuration:      5 * time.Second,
		QueueBlocks:      64,
	}
}

// Segmenter is a Consumer that groups speech into utterances and transcribes them
type Segmenter struct {
	cfg          SegmenterConfig
	engine       Engine
	onTranscript func(Transcript)

	mu     sync.RWMutex
	closed bool
	blocks chan audio.Block
	wg     sync.WaitGroup
}

// NewSegmenter starts a segmenter feeding engine.
// onTranscript is called from the segmenter goroutine.
func NewSegmenter(engine Engine, cfg SegmenterConfig, onTranscript func(Transcript)) *Segmenter {
	def := DefaultSegmenterConfig()
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = def.SilenceThreshold
	}
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = def.SilenceDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = def.MaxDuration
	}
	if cfg.QueueBlocks <= 0 {
		cfg.QueueBlocks = def.QueueBlocks
	}

	s := &Segmenter{
		cfg:          cfg,
		engine:       engine,
		onTranscript: onTranscript,
		blocks:       make(chan audio.Block, cfg.QueueBlocks),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Feed queues a copy of block, or reports backpressure if the engine is behind
func (s *Segmenter) Feed(block audio.Block) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	block.Samples = append([]float32(nil), block.Samples...)
	select {
	case s.blocks <- block:
		return nil
	default:
		return ErrBackpressure
	}
}

// EndOfStream transcribes any pending speech and waits for the engine
func (s *Segmenter) EndOfStream() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.blocks)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Segmenter) run() {
	defer s.wg.Done()

	var (
		buffer    []float32
		start     uint64
		hadSpeech bool
		silence   time.Duration
	)

	flush := func() {
		if !hadSpeech || len(buffer) == 0 {
			buffer = buffer[:0]
			hadSpeech = false
			silence = 0
			return
		}

		text, err := s.engine.Transcribe(buffer)
		if err != nil {
			log.Printf("Transcription failed: %v", err)
		} else if text != "" && s.onTranscript != nil {
			s.onTranscript(Transcript{
				Text:    text,
				Offset:  start,
				Samples: len(buffer),
				Final:   true,
			})
		}

		buffer = buffer[:0]
		hadSpeech = false
		silence = 0
	}

	maxSamples := int(s.cfg.MaxDuration.Seconds() * audio.TargetSampleRate)

	for block := range s.blocks {
		if audio.RMS(block.Samples) < s.cfg.SilenceThreshold {
			if !hadSpeech {
				continue
			}
			silence += block.Duration()
			buffer = append(buffer, block.Samples...)
			if silence >= s.cfg.SilenceDuration {
				flush()
			}
			continue
		}

		if !hadSpeech {
			start = block.Offset
			hadSpeech = true
		}
		silence = 0
		buffer = append(buffer, block.Samples...)
		if len(buffer) >= maxSamples {
			flush()
		}
	}

	flush()
}
