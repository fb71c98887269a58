// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversions and batch validation
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"half", 16384, 0.5},
		{"negative half", -16384, -0.5},
		{"min", -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"full scale", 1, 32767},
		{"clip positive", 1.5, 32767},
		{"clip negative", -1.5, -32768},
		{"half", 0.5, 16383},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleFrom24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    [3]byte
		expected float32
	}{
		{"zero", [3]byte{0, 0, 0}, 0},
		{"half", [3]byte{0x00, 0x00, 0x40}, 0.5},
		{"negative full", [3]byte{0x00, 0x00, 0x80}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFrom24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestDecodeInto(t *testing.T) {
	t.Run("s16", func(t *testing.T) {
		src := make([]byte, 4)
		binary.LittleEndian.PutUint16(src, uint16(16384))
		v := int16(-16384)
		binary.LittleEndian.PutUint16(src[2:], uint16(v))

		dst := make([]float32, 2)
		n := DecodeInto(dst, src, FormatS16)
		if n != 2 {
			t.Fatalf("expected 2 samples, got %d", n)
		}
		if dst[0] != 0.5 || dst[1] != -0.5 {
			t.Errorf("unexpected samples %v", dst)
		}
	})

	t.Run("f32", func(t *testing.T) {
		src := make([]byte, 8)
		binary.LittleEndian.PutUint32(src, math.Float32bits(0.25))
		binary.LittleEndian.PutUint32(src[4:], math.Float32bits(-0.75))

		dst := make([]float32, 2)
		if n := DecodeInto(dst, src, FormatF32); n != 2 {
			t.Fatalf("expected 2 samples, got %d", n)
		}
		if dst[0] != 0.25 || dst[1] != -0.75 {
			t.Errorf("unexpected samples %v", dst)
		}
	})

	t.Run("bounded by destination", func(t *testing.T) {
		src := make([]byte, 16)
		dst := make([]float32, 3)
		if n := DecodeInto(dst, src, FormatS16); n != 3 {
			t.Errorf("expected 3 samples, got %d", n)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if n := DecodeInto(make([]float32, 4), make([]byte, 8), FormatUnknown); n != 0 {
			t.Errorf("expected 0 samples, got %d", n)
		}
	})
}

func TestEncodeInt16Into(t *testing.T) {
	dst := make([]byte, 6)
	n := EncodeInt16Into(dst, []float32{0, 1, -1})
	if n != 6 {
		t.Fatalf("expected 6 bytes, got %d", n)
	}
	if got := int16(binary.LittleEndian.Uint16(dst[2:])); got != 32767 {
		t.Errorf("expected 32767, got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(dst[4:])); got != -32767 {
		t.Errorf("expected -32767, got %d", got)
	}
}

func TestFrameBatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		batch   FrameBatch
		wantErr bool
	}{
		{"stereo", FrameBatch{SampleRate: 48000, Channels: 2, Frames: 2, Samples: make([]float32, 4)}, false},
		{"zero channels", FrameBatch{SampleRate: 48000, Channels: 0, Frames: 2, Samples: make([]float32, 4)}, true},
		{"short samples", FrameBatch{SampleRate: 48000, Channels: 2, Frames: 4, Samples: make([]float32, 4)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.batch.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := (FrameBatch{}).Validate(); !errors.Is(err, ErrNoChannels) {
		t.Errorf("expected ErrNoChannels, got %v", err)
	}
}

func TestDurations(t *testing.T) {
	b := FrameBatch{SampleRate: 48000, Channels: 2, Frames: 480}
	if b.Duration() != 10*time.Millisecond {
		t.Errorf("expected 10ms, got %v", b.Duration())
	}

	blk := Block{SampleRate: TargetSampleRate, Samples: make([]float32, 16000)}
	if blk.Duration() != time.Second {
		t.Errorf("expected 1s, got %v", blk.Duration())
	}

	if SamplesDuration(100, 0) != 0 {
		t.Error("expected zero duration for zero rate")
	}
}
