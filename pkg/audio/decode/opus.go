// ABOUTME: Opus audio decoder
// ABOUTME: Decodes length-prefixed Opus packets to float samples
package decode

import (
	"encoding/binary"
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
	pcm     []float32
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
		pcm:     make([]float32, 5760*format.Channels), // Max frame size
	}, nil
}

// Decode converts a run of [len u16][packet] entries to samples
func (d *OpusDecoder) Decode(data []byte) ([]float32, error) {
	var out []float32
	for len(data) > 0 {
		if len(data) < 2 {
			return out, fmt.Errorf("opus decode failed: truncated packet header")
		}
		size := int(binary.BigEndian.Uint16(data))
		data = data[2:]
		if size > len(data) {
			return out, fmt.Errorf("opus decode failed: packet of %d bytes, %d left", size, len(data))
		}

		n, err := d.decoder.DecodeFloat32(data[:size], d.pcm)
		if err != nil {
			return out, fmt.Errorf("opus decode failed: %w", err)
		}
		out = append(out, d.pcm[:n*d.format.Channels]...)
		data = data[size:]
	}
	return out, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
