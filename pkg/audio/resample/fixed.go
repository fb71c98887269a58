// ABOUTME: Fixed-block resampler for pre-negotiated device buffer sizes
// ABOUTME: Converts exactly BlockSizeIn samples into exactly BlockSizeOut samples per call
package resample

import (
	"fmt"
	"time"
)

// Fixed resamples blocks whose size was agreed with the device up front.
// It keeps no buffered samples between calls, only the converter's filter
// overlap, so it is safe to run directly inside the capture callback.
type Fixed struct {
	cfg    Config
	core   *fftBlock
	out    []float32
	blocks uint64
}

// NewFixed creates a fixed-block resampler for cfg
func NewFixed(cfg Config) (*Fixed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Fixed{
		cfg:  cfg,
		core: newFFTBlock(cfg.BlockSizeIn, cfg.BlockSizeOut),
		out:  make([]float32, cfg.BlockSizeOut),
	}, nil
}

// Process converts one block and hands the result to emit.
// The slice passed to emit is reused by the next call.
// It returns the number of output samples emitted.
func (f *Fixed) Process(in []float32, emit func([]float32)) (int, error) {
	if len(in) != f.cfg.BlockSizeIn {
		return 0, &ConfigError{
			Field:  "block",
			Reason: fmt.Sprintf("got %d samples, fixed block is %d", len(in), f.cfg.BlockSizeIn),
		}
	}
	f.core.process(in, f.out)
	f.blocks++
	if emit != nil {
		emit(f.out)
	}
	return len(f.out), nil
}

// Config returns the session configuration
func (f *Fixed) Config() Config {
	return f.cfg
}

// Blocks returns the number of blocks converted
func (f *Fixed) Blocks() uint64 {
	return f.blocks
}

// Latency is exactly one block at the input rate
func (f *Fixed) Latency() time.Duration {
	return f.cfg.Latency()
}

// Reset clears the filter overlap
func (f *Fixed) Reset() {
	f.core.reset()
	f.blocks = 0
}
