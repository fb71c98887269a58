// ABOUTME: Audio source contract for the capture pipeline
// ABOUTME: Defines device negotiation results, frame delivery and device errors
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/resample"
)

var (
	// ErrEndOfStream is reported through OnError when a finite source runs out
	ErrEndOfStream = errors.New("capture: end of stream")

	// ErrNotOpen is returned by Start before a successful Open
	ErrNotOpen = errors.New("capture: source not open")
)

// OpenParams are the caller's hints. Zero values leave the choice to the backend.
type OpenParams struct {
	DeviceID     string
	Loopback     bool
	Channels     int
	SampleRate   int
	BufferFrames int
}

// DeviceInfo is what the backend actually negotiated
type DeviceInfo struct {
	ID          string
	Name        string
	SampleRate  int
	Channels    int
	Format      audio.SampleFormat
	BufferSizes resample.BufferSizes
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (%dHz, %dch, %s, buffers %s)", d.Name, d.SampleRate, d.Channels, d.Format, d.BufferSizes)
}

// FrameFunc receives one batch per backend callback. It runs on the
// backend's real-time thread and must not block. The batch's samples are
// only valid for the duration of the call.
type FrameFunc func(batch audio.FrameBatch)

// Source is an audio backend delivering interleaved frames
type Source interface {
	// Open negotiates the device and reports its parameters without starting it
	Open(ctx context.Context, params OpenParams) (DeviceInfo, error)
	// OnFrames sets the frame callback. Call before Start.
	OnFrames(fn FrameFunc)
	// OnError sets the callback for asynchronous failures. Call before Start.
	OnError(fn func(error))
	// Start begins delivery, asking for blockFrames frames per callback
	Start(blockFrames int) error
	// Stop halts delivery; the source may be started again
	Stop() error
	// Close releases the device
	Close() error
}

// DeviceError is a backend failure that ends the current session.
// The caller must reopen the device to continue.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("capture: %s %q: %v", e.Op, e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
