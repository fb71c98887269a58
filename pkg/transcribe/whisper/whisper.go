//go:build whisper

// ABOUTME: whisper.cpp transcription engine backed by the CGO bindings
// ABOUTME: Loads a ggml model once and transcribes each utterance in a fresh context
package whisper

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Available reports whether this binary was built with whisper support
const Available = true

// Engine transcribes 16 kHz mono utterances with whisper.cpp
type Engine struct {
	model    whisperlib.Model
	language string
}

// New loads the model at modelPath
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{model: model, language: DefaultLanguage}
	for _, opt := range opts {
		opt(&e.language)
	}
	log.Printf("Loaded whisper model %s (language %s)", modelPath, e.language)
	return e, nil
}

// Transcribe runs inference over samples and joins the segment texts
func (e *Engine) Transcribe(samples []float32) (string, error) {
	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		log.Printf("Warning: whisper language %q not accepted: %v", e.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the model
func (e *Engine) Close() error {
	return e.model.Close()
}
