// ABOUTME: Source that replays a Reader as if it were a capture device
// ABOUTME: Paces delivery in real time and can emulate backend buffer constraints
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/resample"
)

// Buffer sizes a replayed source accepts when not constrained
const (
	MinBufferFrames = 32
	MaxBufferFrames = 16384
)

// ReaderSource delivers a Reader's samples through the Source contract
type ReaderSource struct {
	reader Reader
	sizes  resample.BufferSizes
	paced  bool

	mu      sync.Mutex
	opened  bool
	onFrame FrameFunc
	onError func(error)

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// ReaderOption configures a ReaderSource
type ReaderOption func(*ReaderSource)

// WithBufferSizes makes the source report and enforce sizes like a real
// backend would. FixedSize delivers exactly that many frames whatever
// Start asked for.
func WithBufferSizes(sizes resample.BufferSizes) ReaderOption {
	return func(s *ReaderSource) {
		s.sizes = sizes
	}
}

// WithPacing delivers one batch per batch duration instead of as fast as possible
func WithPacing(paced bool) ReaderOption {
	return func(s *ReaderSource) {
		s.paced = paced
	}
}

// NewReaderSource wraps r. Sources are paced by default.
func NewReaderSource(r Reader, opts ...ReaderOption) *ReaderSource {
	s := &ReaderSource{
		reader: r,
		sizes:  resample.RangeSizes(MinBufferFrames, MaxBufferFrames),
		paced:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open reports the reader's format. Rate and channel hints cannot change a file.
func (s *ReaderSource) Open(ctx context.Context, params OpenParams) (DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return DeviceInfo{}, err
	}
	if s.reader.SampleRate() <= 0 || s.reader.Channels() <= 0 {
		return DeviceInfo{}, &DeviceError{Device: s.reader.Name(), Op: "open", Err: errors.New("reader has no format")}
	}
	if params.SampleRate != 0 && params.SampleRate != s.reader.SampleRate() {
		log.Printf("Ignoring sample rate hint %d Hz, %s is %d Hz", params.SampleRate, s.reader.Name(), s.reader.SampleRate())
	}

	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()

	return DeviceInfo{
		ID:          s.reader.Name(),
		Name:        s.reader.Name(),
		SampleRate:  s.reader.SampleRate(),
		Channels:    s.reader.Channels(),
		Format:      audio.FormatF32,
		BufferSizes: s.sizes,
	}, nil
}

func (s *ReaderSource) OnFrames(fn FrameFunc) {
	s.mu.Lock()
	s.onFrame = fn
	s.mu.Unlock()
}

func (s *ReaderSource) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Start begins delivering batches of blockFrames frames
func (s *ReaderSource) Start(blockFrames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return ErrNotOpen
	}
	if s.stopChan != nil {
		return fmt.Errorf("capture: %s already started", s.reader.Name())
	}

	frames := blockFrames
	switch s.sizes.Kind {
	case resample.BufferFixed:
		frames = s.sizes.Min
	case resample.BufferRange:
		frames = max(s.sizes.Min, min(frames, s.sizes.Max))
	}
	if frames < 1 {
		return fmt.Errorf("capture: invalid block size %d", blockFrames)
	}

	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	go s.run(frames, s.onFrame, s.onError, s.stopChan)
	return nil
}

func (s *ReaderSource) run(frames int, onFrame FrameFunc, onError func(error), stop chan struct{}) {
	defer s.wg.Done()

	rate := s.reader.SampleRate()
	channels := s.reader.Channels()
	samples := make([]float32, frames*channels)

	var ticker *time.Ticker
	if s.paced {
		ticker = time.NewTicker(audio.SamplesDuration(frames, rate))
		defer ticker.Stop()
	}

	fail := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	for {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-stop:
				return
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}

		n, err := readFull(s.reader, samples)
		n -= n % channels
		if n > 0 && n < len(samples) && s.sizes.Kind != resample.BufferUnknown {
			// A sized backend always fills its buffer, so the tail is padded with silence
			clear(samples[n:])
			n = len(samples)
		}
		if n >= channels && onFrame != nil {
			got := n / channels
			onFrame(audio.FrameBatch{
				SampleRate: rate,
				Channels:   channels,
				Frames:     got,
				Format:     audio.FormatF32,
				Samples:    samples[:got*channels],
			})
		}
		if errors.Is(err, io.EOF) {
			fail(ErrEndOfStream)
			return
		}
		if err != nil {
			fail(&DeviceError{Device: s.reader.Name(), Op: "read", Err: err})
			return
		}
	}
}

// Stop halts delivery. It must not be called from the frame or error callbacks.
func (s *ReaderSource) Stop() error {
	s.mu.Lock()
	stop := s.stopChan
	s.stopChan = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		s.wg.Wait()
	}
	return nil
}

// Close stops delivery and closes the reader
func (s *ReaderSource) Close() error {
	s.Stop()
	return s.reader.Close()
}

// readFull reads until buf is full or the reader fails
func readFull(r Reader, buf []float32) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.ErrNoProgress
		}
	}
	return n, nil
}
