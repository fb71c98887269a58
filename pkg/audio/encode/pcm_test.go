// ABOUTME: Unit tests for PCM encoder
// ABOUTME: Tests 16-bit and 24-bit PCM encoding
package encode

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	mono16k := func(codec string, depth int) audio.Format {
		return audio.Format{Codec: codec, SampleRate: audio.TargetSampleRate, Channels: 1, BitDepth: depth}
	}

	tests := []struct {
		name   string
		format audio.Format
		errSub string // empty when the format is accepted
	}{
		{"16-bit", mono16k("pcm", 16), ""},
		{"24-bit", mono16k("pcm", 24), ""},
		{"opus is not pcm", mono16k("opus", 16), "invalid codec"},
		{"32-bit", mono16k("pcm", 32), "unsupported bit depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewPCM(tt.format)
			switch {
			case tt.errSub == "" && err != nil:
				t.Fatalf("NewPCM(%+v): %v", tt.format, err)
			case tt.errSub == "" && encoder == nil:
				t.Fatal("NewPCM returned nil encoder")
			case tt.errSub != "" && err == nil:
				t.Fatalf("NewPCM(%+v) accepted, want error containing %q", tt.format, tt.errSub)
			case tt.errSub != "" && !strings.Contains(err.Error(), tt.errSub):
				t.Errorf("error %q does not mention %q", err, tt.errSub)
			}
		})
	}
}

func TestPCMEncoder_Encode16Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}
	defer encoder.Close()

	samples := []float32{0, 1, -1, 0.25, -2}

	output, err := encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	// Check output size: 2 bytes per sample for 16-bit
	if len(output) != len(samples)*2 {
		t.Errorf("Encode() output size = %d, want %d", len(output), len(samples)*2)
	}

	for i, sample := range samples {
		expected := audio.SampleToInt16(sample)
		actual := int16(binary.LittleEndian.Uint16(output[i*2:]))
		if actual != expected {
			t.Errorf("Sample %d: got %d, want %d", i, actual, expected)
		}
	}
	if encoder.Pending() != 0 {
		t.Errorf("PCM must not hold samples back, got %d", encoder.Pending())
	}
}

func TestPCMEncoder_Encode24Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 24})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}
	defer encoder.Close()

	samples := []float32{0, 0.5, -0.5, 1.5}

	output, err := encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if len(output) != len(samples)*3 {
		t.Errorf("Encode() output size = %d, want %d", len(output), len(samples)*3)
	}

	for i, sample := range samples {
		expected := audio.SampleTo24Bit(sample)
		actual := [3]byte{output[i*3], output[i*3+1], output[i*3+2]}
		if actual != expected {
			t.Errorf("Sample %d: got %v, want %v", i, actual, expected)
		}
	}

	// Clipped sample must be full scale
	if got := audio.SampleFrom24Bit(audio.SampleTo24Bit(1.5)); got < 0.9999 {
		t.Errorf("expected clipping to full scale, got %f", got)
	}
}

func TestNewUnsupportedCodec(t *testing.T) {
	if _, err := New(audio.Format{Codec: "flac"}); err == nil {
		t.Error("expected error for unsupported codec")
	}
}
