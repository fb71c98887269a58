// ABOUTME: Opus audio encoder
// ABOUTME: Encodes float samples to length-prefixed 20ms Opus packets
package encode

import (
	"encoding/binary"
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// MaxPacketSize bounds a single Opus packet
const MaxPacketSize = 4000

// OpusEncoder encodes Opus audio.
// Resampled blocks rarely line up with Opus frame sizes, so samples are
// buffered and every complete 20ms frame is emitted as [len u16][packet].
type OpusEncoder struct {
	encoder   *opus.Encoder
	channels  int
	frameSize int // samples per packet across all channels
	pending   []float32
	packet    []byte
}

// NewOpus creates a new Opus encoder
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// Opus frame size depends on sample rate
	frameSize := format.SampleRate / 50 * format.Channels // 20ms frame

	return &OpusEncoder{
		encoder:   encoder,
		channels:  format.Channels,
		frameSize: frameSize,
		pending:   make([]float32, 0, frameSize*4),
		packet:    make([]byte, MaxPacketSize),
	}, nil
}

// Encode appends samples and encodes every complete frame
func (e *OpusEncoder) Encode(samples []float32) ([]byte, error) {
	e.pending = append(e.pending, samples...)

	var out []byte
	consumed := 0
	for len(e.pending)-consumed >= e.frameSize {
		n, err := e.encoder.EncodeFloat32(e.pending[consumed:consumed+e.frameSize], e.packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode error: %w", err)
		}
		out = binary.BigEndian.AppendUint16(out, uint16(n))
		out = append(out, e.packet[:n]...)
		consumed += e.frameSize
	}
	e.pending = append(e.pending[:0], e.pending[consumed:]...)

	return out, nil
}

// Pending returns the samples waiting for a complete frame
func (e *OpusEncoder) Pending() int {
	return len(e.pending)
}

// Reset drops the partial frame
func (e *OpusEncoder) Reset() {
	e.pending = e.pending[:0]
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
