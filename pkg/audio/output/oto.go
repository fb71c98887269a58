// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays 16-bit PCM with software volume control using the oto library
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// DefaultBufferDuration is how much audio the player may lag before
// the oldest samples are dropped
const DefaultBufferDuration = 500 * time.Millisecond

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	buffer     *pcmBuffer
	scratch    []byte
	sampleRate int
	channels   int
	volume     int
	muted      bool
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{
		volume: 100,
		muted:  false,
	}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return nil
	}

	// oto allows one context per process, so a reopened output keeps it
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Printf("Warning: format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
				o.sampleRate, o.channels, sampleRate, channels)
		}
		if err := o.otoCtx.Resume(); err != nil {
			return fmt.Errorf("failed to resume oto context: %w", err)
		}
	} else {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}

		<-readyChan

		o.otoCtx = ctx
		o.sampleRate = sampleRate
		o.channels = channels
	}

	o.buffer = newPCMBuffer(bufferBytes(o.sampleRate, o.channels, DefaultBufferDuration))
	o.player = o.otoCtx.NewPlayer(o.buffer)
	o.player.Play()

	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels", o.sampleRate, o.channels)

	return nil
}

// bufferBytes sizes the PCM buffer for d of audio
func bufferBytes(sampleRate, channels int, d time.Duration) int {
	n := int(int64(sampleRate)*int64(d)/int64(time.Second)) * channels * 2
	if n < 2 {
		n = 2
	}
	return n
}

// Write queues samples for playback
func (o *Oto) Write(samples []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return fmt.Errorf("output not initialized")
	}

	if cap(o.scratch) < len(samples)*2 {
		o.scratch = make([]byte, len(samples)*2)
	}
	out := o.scratch[:len(samples)*2]

	multiplier := getVolumeMultiplier(o.volume, o.muted)
	for i, s := range samples {
		v := audio.SampleToInt16(s * multiplier)
		out[2*i] = byte(v)
		out[2*i+1] = byte(uint16(v) >> 8)
	}

	_, err := o.buffer.Write(out)
	return err
}

// Dropped returns samples lost because playback fell behind
func (o *Oto) Dropped() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.buffer == nil {
		return 0
	}
	return o.buffer.Dropped() / 2
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	o.ready = false
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float32 {
	if muted {
		return 0.0
	}
	return float32(volume) / 100.0
}
