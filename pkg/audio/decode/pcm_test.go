// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests 16-bit and 24-bit PCM decoding
package decode

import (
	"testing"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		wantErr bool
	}{
		{"16-bit", audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16}, false},
		{"24-bit", audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 24}, false},
		{"32-bit", audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 32}, true},
		{"wrong codec", audio.Format{Codec: "opus", SampleRate: 16000, Channels: 1, BitDepth: 16}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPCM() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && decoder == nil {
				t.Fatal("expected decoder to be created")
			}
		})
	}
}

func TestPCMDecode16Bit(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// 0x4000 = 16384 -> 0.5, 0xC000 = -16384 -> -0.5
	input := []byte{0x00, 0x40, 0x00, 0xC0}
	output, err := decoder.Decode(input)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(output) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(output))
	}
	if output[0] != 0.5 || output[1] != -0.5 {
		t.Errorf("expected [0.5 -0.5], got %v", output)
	}
}

func TestPCMDecode24Bit(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 24})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	input := []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0}
	output, err := decoder.Decode(input)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(output) != 2 || output[0] != 0.5 || output[1] != -0.5 {
		t.Errorf("expected [0.5 -0.5], got %v", output)
	}
}

func TestNewUnsupportedCodec(t *testing.T) {
	if _, err := New(audio.Format{Codec: "mp3"}); err == nil {
		t.Error("expected error for unsupported codec")
	}
}
