// ABOUTME: Transcript values produced by transcription engines
// ABOUTME: Anchors recognised text to sample offsets in the 16 kHz stream
package transcribe

import (
	"time"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// Transcript is a piece of recognised text covering [Offset, Offset+Samples)
type Transcript struct {
	Text    string
	Offset  uint64
	Samples int
	Final   bool
}

// Start returns the position of the transcript in the stream
func (t Transcript) Start() time.Duration {
	return audio.SamplesDuration(int(t.Offset), audio.TargetSampleRate)
}

// Duration returns how much audio the transcript covers
func (t Transcript) Duration() time.Duration {
	return audio.SamplesDuration(t.Samples, audio.TargetSampleRate)
}

// Engine turns a finished utterance into text
type Engine interface {
	Transcribe(samples []float32) (string, error)
	Close() error
}
