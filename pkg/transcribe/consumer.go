// ABOUTME: Transcription consumer contract fed by the capture pipeline
// ABOUTME: Defines Consumer, backpressure signalling and fan-out
package transcribe

import (
	"errors"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

var (
	// ErrBackpressure is returned by Feed when the consumer cannot take the block now.
	// The pipeline drops the block rather than waiting.
	ErrBackpressure = errors.New("transcribe: consumer backpressure")

	// ErrClosed is returned by Feed after EndOfStream
	ErrClosed = errors.New("transcribe: consumer closed")
)

// Consumer receives the 16 kHz mono stream in order
type Consumer interface {
	// Feed hands over one block. The consumer must copy block.Samples if it
	// keeps them past the call. A nil error means the block was accepted.
	Feed(block audio.Block) error

	// EndOfStream flushes pending work and closes the consumer
	EndOfStream() error
}

// Tee fans every block out to several consumers
type Tee []Consumer

// Feed feeds every consumer. The block counts as refused only when every
// consumer refused it; a consumer that falls behind keeps its own count.
// Other failures are always reported.
func (t Tee) Feed(block audio.Block) error {
	var errs []error
	refused := 0
	for _, c := range t {
		err := c.Feed(block)
		switch {
		case err == nil:
		case errors.Is(err, ErrBackpressure):
			refused++
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if refused > 0 && refused == len(t) {
		return ErrBackpressure
	}
	return nil
}

// EndOfStream closes every consumer
func (t Tee) EndOfStream() error {
	var errs []error
	for _, c := range t {
		if err := c.EndOfStream(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard accepts and forgets every block
type Discard struct{}

func (Discard) Feed(audio.Block) error { return nil }
func (Discard) EndOfStream() error     { return nil }
