// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// Encoder encodes float samples to a wire format
type Encoder interface {
	// Encode converts samples to encoded audio data. Frame-based codecs may
	// hold back a partial frame and return fewer samples' worth of data.
	Encode(samples []float32) ([]byte, error)

	// Pending returns samples held back for the next Encode
	Pending() int

	// Reset drops held back samples
	Reset()

	// Close releases encoder resources
	Close() error
}

// New creates the encoder named by format.Codec
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s (supported: pcm, opus)", format.Codec)
	}
}
