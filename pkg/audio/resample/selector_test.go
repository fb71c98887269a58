// ABOUTME: Tests for resampling strategy selection
// ABOUTME: Tests ratio reduction, block alignment and streaming fallback
package resample

import (
	"errors"
	"testing"
	"time"
)

func TestNewRatio(t *testing.T) {
	tests := []struct {
		in, out int
		want    Ratio
	}{
		{48000, 16000, Ratio{P: 1, Q: 3}},
		{44100, 16000, Ratio{P: 160, Q: 441}},
		{16000, 16000, Ratio{P: 1, Q: 1}},
		{8000, 16000, Ratio{P: 2, Q: 1}},
		{96000, 16000, Ratio{P: 1, Q: 6}},
		{22050, 16000, Ratio{P: 320, Q: 441}},
	}

	for _, tt := range tests {
		got, err := NewRatio(tt.in, tt.out)
		if err != nil {
			t.Fatalf("NewRatio(%d, %d): %v", tt.in, tt.out, err)
		}
		if got != tt.want {
			t.Errorf("NewRatio(%d, %d) = %v, want %v", tt.in, tt.out, got, tt.want)
		}
		if gcd(got.P, got.Q) != 1 {
			t.Errorf("ratio %v is not coprime", got)
		}
	}
}

func TestRatio48kAcceptsMultiplesOfThree(t *testing.T) {
	r, err := NewRatio(48000, 16000)
	if err != nil {
		t.Fatal(err)
	}

	for n := 1; n <= 3000; n++ {
		if r.Aligned(n) != (n%3 == 0) {
			t.Fatalf("Aligned(%d) = %v", n, r.Aligned(n))
		}
	}
	if got := r.Out(1536); got != 512 {
		t.Errorf("expected 1536 -> 512, got %d", got)
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name         string
		inputRate    int
		sizes        BufferSizes
		opts         []SelectOption
		wantStrategy Strategy
		wantIn       int
		wantOut      int
	}{
		{"48k range prefers 32ms", 48000, RangeSizes(256, 4096), nil, StrategyFixed, 1536, 512},
		{"48k fixed non-conforming", 48000, FixedSize(1000), nil, StrategyStreaming, 1536, 512},
		{"48k fixed conforming", 48000, FixedSize(480), nil, StrategyFixed, 480, 160},
		{"48k unknown", 48000, UnknownSizes(), nil, StrategyStreaming, 1536, 512},
		{"48k small preference clamps to min", 48000, RangeSizes(256, 4096), []SelectOption{WithPreferredBlock(100)}, StrategyFixed, 258, 86},
		{"48k large preference clamps to max", 48000, RangeSizes(256, 4096), []SelectOption{WithPreferredBlock(9000)}, StrategyFixed, 4095, 1365},
		{"48k range without multiple", 48000, RangeSizes(1000, 1001), nil, StrategyStreaming, 1536, 512},
		{"44.1k fixed 512", 44100, FixedSize(512), nil, StrategyStreaming, 1323, 480},
		{"44.1k range", 44100, RangeSizes(256, 4096), nil, StrategyFixed, 1323, 480},
		{"44.1k streaming override", 44100, UnknownSizes(), []SelectOption{WithStreamingBlock(100)}, StrategyStreaming, 441, 160},
		{"16k fixed passthrough", 16000, FixedSize(512), nil, StrategyFixed, 512, 512},
		{"16k unknown passthrough", 16000, UnknownSizes(), []SelectOption{WithPreferredBlock(320)}, StrategyFixed, 320, 320},
		{"forced streaming", 48000, FixedSize(480), []SelectOption{WithForceStreaming()}, StrategyStreaming, 1536, 512},
		{"8k upsampling", 8000, FixedSize(256), nil, StrategyFixed, 256, 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Select(tt.inputRate, 16000, tt.sizes, tt.opts...)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if cfg.Strategy != tt.wantStrategy {
				t.Errorf("expected %s, got %s", tt.wantStrategy, cfg.Strategy)
			}
			if cfg.BlockSizeIn != tt.wantIn || cfg.BlockSizeOut != tt.wantOut {
				t.Errorf("expected block %d->%d, got %d->%d", tt.wantIn, tt.wantOut, cfg.BlockSizeIn, cfg.BlockSizeOut)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("selected config invalid: %v", err)
			}
			if tt.sizes.Kind == BufferRange && cfg.Strategy == StrategyFixed {
				if cfg.BlockSizeIn < tt.sizes.Min || cfg.BlockSizeIn > tt.sizes.Max {
					t.Errorf("block %d outside %s", cfg.BlockSizeIn, tt.sizes)
				}
			}
		})
	}
}

func TestSelectErrors(t *testing.T) {
	tests := []struct {
		name      string
		inputRate int
		target    int
		sizes     BufferSizes
		opts      []SelectOption
	}{
		{"zero input rate", 0, 16000, UnknownSizes(), nil},
		{"negative target", 48000, -1, UnknownSizes(), nil},
		{"inverted range", 48000, 16000, RangeSizes(4096, 256), nil},
		{"empty range", 48000, 16000, RangeSizes(0, 256), nil},
		{"zero fixed size", 48000, 16000, FixedSize(0), nil},
		{"negative preference", 48000, 16000, UnknownSizes(), []SelectOption{WithPreferredBlock(-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Select(tt.inputRate, tt.target, tt.sizes, tt.opts...)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	good := Config{InputRate: 48000, OutputRate: 16000, Ratio: Ratio{1, 3}, BlockSizeIn: 1536, BlockSizeOut: 512}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unreduced ratio", func(c *Config) { c.Ratio = Ratio{2, 6} }},
		{"unaligned block", func(c *Config) { c.BlockSizeIn = 1000 }},
		{"wrong output size", func(c *Config) { c.BlockSizeOut = 511 }},
		{"zero block", func(c *Config) { c.BlockSizeIn, c.BlockSizeOut = 0, 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := good
			tt.mutate(&cfg)
			var cfgErr *ConfigError
			if err := cfg.Validate(); !errors.As(err, &cfgErr) {
				t.Errorf("expected *ConfigError, got %v", err)
			}
		})
	}
}

func TestConfigLatency(t *testing.T) {
	cfg, err := Select(48000, 16000, FixedSize(480))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Latency() != 10*time.Millisecond {
		t.Errorf("expected 10ms, got %v", cfg.Latency())
	}
}

func TestNearestMultiple(t *testing.T) {
	tests := []struct{ n, q, want int }{
		{1536, 3, 1536},
		{1411, 441, 1323},
		{100, 441, 441},
		{0, 3, 3},
		{700, 441, 882},
		{5, 2, 4},
	}
	for _, tt := range tests {
		if got := nearestMultiple(tt.n, tt.q); got != tt.want {
			t.Errorf("nearestMultiple(%d, %d) = %d, want %d", tt.n, tt.q, got, tt.want)
		}
	}
}
