// ABOUTME: Level meter engine used when no speech model is available
// ABOUTME: Reports utterance length and loudness instead of recognised text
package transcribe

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// LevelEngine describes each utterance by duration and loudness
type LevelEngine struct{}

// Transcribe returns a bracketed level description of samples
func (LevelEngine) Transcribe(samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	return fmt.Sprintf("[audio %.1fs %.1f dBFS]",
		audio.SamplesDuration(len(samples), audio.TargetSampleRate).Seconds(),
		audio.DBFS(audio.RMS(samples))), nil
}

// Close is a no-op
func (LevelEngine) Close() error { return nil }
