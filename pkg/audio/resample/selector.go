// ABOUTME: Resampling strategy selection from negotiated device parameters
// ABOUTME: Chooses a fixed block size aligned to the rate ratio or falls back to streaming
package resample

import (
	"fmt"
	"time"
)

// DefaultLatency is the block duration aimed for when nothing else constrains it
const DefaultLatency = 32 * time.Millisecond

// Strategy tags which resampler a session runs
type Strategy int

const (
	// StrategyFixed feeds device buffers straight into the block resampler
	StrategyFixed Strategy = iota
	// StrategyStreaming buffers arbitrary pushes in a FIFO and drains full blocks
	StrategyStreaming
)

func (s Strategy) String() string {
	switch s {
	case StrategyFixed:
		return "fixed"
	case StrategyStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// BufferKind describes what the audio backend promises about callback sizes
type BufferKind int

const (
	// BufferUnknown means the backend delivers whatever it likes
	BufferUnknown BufferKind = iota
	// BufferRange means any size in [Min, Max] can be requested
	BufferRange
	// BufferFixed means the backend enforces exactly Min frames per callback
	BufferFixed
)

// BufferSizes is the supported buffer-size range reported by a device
type BufferSizes struct {
	Kind BufferKind
	Min  int
	Max  int
}

// RangeSizes reports a negotiable buffer size range
func RangeSizes(min, max int) BufferSizes {
	return BufferSizes{Kind: BufferRange, Min: min, Max: max}
}

// FixedSize reports a single enforced buffer size
func FixedSize(n int) BufferSizes {
	return BufferSizes{Kind: BufferFixed, Min: n, Max: n}
}

// UnknownSizes reports a backend without buffer size guarantees
func UnknownSizes() BufferSizes {
	return BufferSizes{Kind: BufferUnknown}
}

func (b BufferSizes) String() string {
	switch b.Kind {
	case BufferRange:
		return fmt.Sprintf("range[%d,%d]", b.Min, b.Max)
	case BufferFixed:
		return fmt.Sprintf("fixed(%d)", b.Min)
	default:
		return "unknown"
	}
}

// Config is the immutable per-session resampling decision
type Config struct {
	InputRate    int
	OutputRate   int
	Ratio        Ratio
	BlockSizeIn  int
	BlockSizeOut int
	Strategy     Strategy
}

// Validate checks the block arithmetic holds exactly
func (c Config) Validate() error {
	r, err := NewRatio(c.InputRate, c.OutputRate)
	if err != nil {
		return err
	}
	if r != c.Ratio {
		return &ConfigError{Field: "ratio", Reason: fmt.Sprintf("%s is not the reduced form of %d/%d", c.Ratio, c.OutputRate, c.InputRate)}
	}
	if !c.Ratio.Aligned(c.BlockSizeIn) {
		return &ConfigError{Field: "block_size_in", Reason: fmt.Sprintf("%d is not a positive multiple of %d", c.BlockSizeIn, c.Ratio.Q)}
	}
	if c.BlockSizeOut != c.Ratio.Out(c.BlockSizeIn) {
		return &ConfigError{Field: "block_size_out", Reason: fmt.Sprintf("%d != %d*%d/%d", c.BlockSizeOut, c.BlockSizeIn, c.Ratio.P, c.Ratio.Q)}
	}
	return nil
}

// Latency is one input block at the input rate
func (c Config) Latency() time.Duration {
	if c.InputRate <= 0 {
		return 0
	}
	return time.Duration(int64(c.BlockSizeIn) * int64(time.Second) / int64(c.InputRate))
}

func (c Config) String() string {
	return fmt.Sprintf("%s %dHz->%dHz ratio=%s block=%d->%d",
		c.Strategy, c.InputRate, c.OutputRate, c.Ratio, c.BlockSizeIn, c.BlockSizeOut)
}

type selectOptions struct {
	preferred      int
	streamingBlock int
	forceStreaming bool
}

// SelectOption tunes Select
type SelectOption func(*selectOptions)

// WithPreferredBlock sets the block size the selector aims for, usually the
// device buffer-size hint. Zero keeps the DefaultLatency target.
func WithPreferredBlock(frames int) SelectOption {
	return func(o *selectOptions) {
		o.preferred = frames
	}
}

// WithStreamingBlock sets the streaming block size, rounded to the nearest multiple of q
func WithStreamingBlock(frames int) SelectOption {
	return func(o *selectOptions) {
		o.streamingBlock = frames
	}
}

// WithForceStreaming skips the fixed-size search. Used after a device
// broke its buffer size promise.
func WithForceStreaming() SelectOption {
	return func(o *selectOptions) {
		o.forceStreaming = true
	}
}

// Select decides the resampling strategy for one session.
func Select(inputRate, targetRate int, sizes BufferSizes, opts ...SelectOption) (Config, error) {
	var o selectOptions
	for _, opt := range opts {
		opt(&o)
	}

	ratio, err := NewRatio(inputRate, targetRate)
	if err != nil {
		return Config{}, err
	}
	if o.preferred < 0 {
		return Config{}, &ConfigError{Field: "preferred_block", Reason: fmt.Sprintf("must not be negative, got %d", o.preferred)}
	}

	preferred := o.preferred
	if preferred == 0 {
		preferred = int(int64(inputRate) * int64(DefaultLatency) / int64(time.Second))
	}

	var (
		block int
		found bool
	)
	switch sizes.Kind {
	case BufferRange:
		if sizes.Min < 1 || sizes.Max < sizes.Min {
			return Config{}, &ConfigError{Field: "buffer_sizes", Reason: fmt.Sprintf("invalid %s", sizes)}
		}
		block, found = fitRange(preferred, ratio.Q, sizes.Min, sizes.Max)
	case BufferFixed:
		if sizes.Min < 1 {
			return Config{}, &ConfigError{Field: "buffer_sizes", Reason: fmt.Sprintf("invalid %s", sizes)}
		}
		block, found = sizes.Min, ratio.Aligned(sizes.Min)
	case BufferUnknown:
		// Pass-through accepts any size, so the preferred size is still a usable contract
		if ratio.Unity() {
			block, found = preferred, true
		}
	default:
		return Config{}, &ConfigError{Field: "buffer_sizes", Reason: fmt.Sprintf("unknown kind %d", sizes.Kind)}
	}

	if found && !o.forceStreaming {
		return newConfig(inputRate, targetRate, ratio, block, StrategyFixed), nil
	}

	streaming := o.streamingBlock
	if streaming <= 0 {
		streaming = preferred
	}
	return newConfig(inputRate, targetRate, ratio, nearestMultiple(streaming, ratio.Q), StrategyStreaming), nil
}

func newConfig(inputRate, outputRate int, ratio Ratio, block int, strategy Strategy) Config {
	return Config{
		InputRate:    inputRate,
		OutputRate:   outputRate,
		Ratio:        ratio,
		BlockSizeIn:  block,
		BlockSizeOut: ratio.Out(block),
		Strategy:     strategy,
	}
}

// fitRange returns the multiple of q nearest to preferred inside [min, max]
func fitRange(preferred, q, min, max int) (int, bool) {
	block := nearestMultiple(preferred, q)
	switch {
	case block < min:
		block = (min + q - 1) / q * q
	case block > max:
		block = max / q * q
	}
	if block < min || block > max || block < q {
		return 0, false
	}
	return block, true
}
