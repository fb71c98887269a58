// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit PCM audio to float samples
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	format audio.SampleFormat
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	switch format.BitDepth {
	case 16:
		return &PCMDecoder{format: audio.FormatS16}, nil
	case 24:
		return &PCMDecoder{format: audio.FormatS24}, nil
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
}

// Decode converts PCM bytes to float samples
func (d *PCMDecoder) Decode(data []byte) ([]float32, error) {
	samples := make([]float32, len(data)/d.format.BytesPerSample())
	audio.DecodeInto(samples, data, d.format)
	return samples, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
