// ABOUTME: Strategy-tagged converter chosen once per session
// ABOUTME: Dispatches to the fixed or streaming resampler with a shared contract
package resample

import "time"

// Converter holds exactly one of the two resamplers, selected by the
// config's Strategy. The switch keeps the fixed path free of interface calls.
type Converter struct {
	cfg       Config
	fixed     *Fixed
	streaming *Streaming
}

// NewConverter builds the resampler named by cfg.Strategy.
// capacity sizes the streaming FIFO and is ignored for fixed sessions.
func NewConverter(cfg Config, capacity int) (*Converter, error) {
	c := &Converter{cfg: cfg}
	var err error
	switch cfg.Strategy {
	case StrategyFixed:
		c.fixed, err = NewFixed(cfg)
	case StrategyStreaming:
		c.streaming, err = NewStreaming(cfg, capacity)
	default:
		return nil, &ConfigError{Field: "strategy", Reason: cfg.Strategy.String()}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Process consumes in and emits converted output in order.
// Fixed sessions require len(in) == BlockSizeIn.
func (c *Converter) Process(in []float32, emit func([]float32)) (int, error) {
	switch c.cfg.Strategy {
	case StrategyFixed:
		return c.fixed.Process(in, emit)
	default:
		return c.streaming.Process(in, emit)
	}
}

// Strategy returns the session strategy
func (c *Converter) Strategy() Strategy {
	return c.cfg.Strategy
}

// Config returns the session configuration
func (c *Converter) Config() Config {
	return c.cfg
}

// Fixed returns the fixed resampler, or nil for streaming sessions
func (c *Converter) Fixed() *Fixed {
	return c.fixed
}

// Streaming returns the streaming resampler, or nil for fixed sessions
func (c *Converter) Streaming() *Streaming {
	return c.streaming
}

// Latency returns the added conversion latency
func (c *Converter) Latency() time.Duration {
	return c.cfg.Latency()
}

// Reset clears all conversion state
func (c *Converter) Reset() {
	if c.fixed != nil {
		c.fixed.Reset()
	}
	if c.streaming != nil {
		c.streaming.Reset()
	}
}
