//go:build !whisper

// ABOUTME: Stub whisper engine for builds without the whisper tag
// ABOUTME: Reports that local transcription is unavailable
package whisper

import "errors"

// Available reports whether this binary was built with whisper support
const Available = false

// ErrUnavailable is returned by New in builds without the whisper tag
var ErrUnavailable = errors.New("whisper: not available (rebuild with -tags whisper)")

// Engine is unavailable in this build
type Engine struct{}

// New always fails in this build
func New(modelPath string, opts ...Option) (*Engine, error) {
	return nil, ErrUnavailable
}

func (e *Engine) Transcribe(samples []float32) (string, error) {
	return "", ErrUnavailable
}

func (e *Engine) Close() error {
	return nil
}
