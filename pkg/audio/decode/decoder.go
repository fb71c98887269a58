// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for all audio decoders
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// Decoder decodes wire audio to float samples
type Decoder interface {
	// Decode converts encoded audio data to samples
	Decode(data []byte) ([]float32, error)

	// Close releases decoder resources
	Close() error
}

// New creates the decoder named by format.Codec
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s (supported: pcm, opus)", format.Codec)
	}
}
