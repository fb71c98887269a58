// ABOUTME: Unit tests for Opus encoder
// ABOUTME: Tests Opus frame buffering and packet framing
package encode

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name        string
		format      audio.Format
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid Opus 16kHz mono",
			format:  audio.Format{Codec: "opus", SampleRate: 16000, Channels: 1, BitDepth: 16},
			wantErr: false,
		},
		{
			name:    "valid Opus 48kHz stereo",
			format:  audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16},
			wantErr: false,
		},
		{
			name:        "invalid codec",
			format:      audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16},
			wantErr:     true,
			errContains: "invalid codec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewOpus(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewOpus() expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewOpus() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpus() unexpected error = %v", err)
			}
			encoder.Close()
		})
	}
}

func TestOpusEncoder_BuffersPartialFrames(t *testing.T) {
	encoder, err := NewOpus(audio.Format{Codec: "opus", SampleRate: 16000, Channels: 1, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	// 200 samples is less than one 320-sample frame
	output, err := encoder.Encode(make([]float32, 200))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) != 0 || encoder.Pending() != 200 {
		t.Fatalf("expected nothing encoded and 200 pending, got %d bytes, %d pending", len(output), encoder.Pending())
	}

	// 200 more completes one frame
	output, err = encoder.Encode(make([]float32, 200))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) < 2 {
		t.Fatal("expected one length-prefixed packet")
	}
	size := int(binary.BigEndian.Uint16(output))
	if size+2 != len(output) || size > MaxPacketSize {
		t.Errorf("packet size %d does not match output of %d bytes", size, len(output))
	}
	if encoder.Pending() != 80 {
		t.Errorf("expected 80 pending, got %d", encoder.Pending())
	}

	encoder.Reset()
	if encoder.Pending() != 0 {
		t.Errorf("expected reset to drop pending samples, got %d", encoder.Pending())
	}
}
