// ABOUTME: One capture session from negotiated device parameters to the sink
// ABOUTME: Mixes, resamples and queues 16 kHz blocks with a config fixed for its lifetime
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/resonate-captions/internal/sink"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/capture"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/mix"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
)

// Config holds pipeline tuning shared by every session
type Config struct {
	TargetRate     int         // output rate, defaults to audio.TargetSampleRate
	PreferredBlock int         // device buffer-size hint in input frames, 0 for ~32ms
	StreamingBlock int         // streaming block in input frames, 0 for the preferred size
	ForceStreaming bool        // never use the fixed strategy
	RingBlocks     int         // streaming FIFO capacity in input blocks
	QueueBlocks    int         // sink capacity in output blocks
	Policy         sink.Policy // sink overflow policy
	Weights        []float32   // optional per-channel mix weights
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		TargetRate:  audio.TargetSampleRate,
		RingBlocks:  resample.DefaultCapacityBlocks,
		QueueBlocks: sink.DefaultCapacity,
		Policy:      sink.DropOldest,
	}
}

func (c Config) selectOptions(forceStreaming bool) []resample.SelectOption {
	opts := []resample.SelectOption{
		resample.WithPreferredBlock(c.PreferredBlock),
		resample.WithStreamingBlock(c.StreamingBlock),
	}
	if c.ForceStreaming || forceStreaming {
		opts = append(opts, resample.WithForceStreaming())
	}
	return opts
}

// Stats is a snapshot of a session's counters
type Stats struct {
	ID        string
	Device    capture.DeviceInfo
	Resampler resample.Config
	Sink      sink.Stats
	Streaming resample.StreamingStats // zero for fixed sessions

	Batches    uint64 // batches handed to the session
	Invalid    uint64 // batches rejected before mixing
	Mismatched uint64 // fixed-session batches of the wrong size
}

// Reason explains why a session asked to be replaced
type Reason struct {
	// Streaming is set when the fixed contract was broken and only the
	// streaming strategy can cope with the device
	Streaming bool
	// SampleRate is the rate the device actually delivered, if it changed
	SampleRate int
	Detail     string
}

// Info identifies a session to the consumer it feeds
type Info struct {
	ID        string
	Device    capture.DeviceInfo
	Resampler resample.Config
}

// ConsumerFactory creates the transcription consumer for a new session.
// Each session is a separate stream whose offsets start at zero.
type ConsumerFactory func(info Info) (transcribe.Consumer, error)

// Session runs the pipeline for one negotiated device configuration.
// Its resampler config never changes; a new device contract needs a new Session.
type Session struct {
	id       string
	device   capture.DeviceInfo
	cfg      resample.Config
	mixer    *mix.Mixer
	conv     *resample.Converter
	sink     *sink.Sink
	emitFunc func([]float32)

	batches    atomic.Uint64
	invalid    atomic.Uint64
	mismatched atomic.Uint64

	reconfigure chan Reason
	wake        chan struct{}
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	closed      atomic.Bool
}

// New selects a resampling strategy for device and builds the pipeline
// feeding the consumer made by newConsumer. forceStreaming skips the fixed strategy.
func New(device capture.DeviceInfo, cfg Config, newConsumer ConsumerFactory, forceStreaming bool) (*Session, error) {
	if cfg.TargetRate == 0 {
		cfg.TargetRate = audio.TargetSampleRate
	}
	if cfg.RingBlocks <= 0 {
		cfg.RingBlocks = resample.DefaultCapacityBlocks
	}

	rcfg, err := resample.Select(device.SampleRate, cfg.TargetRate, device.BufferSizes, cfg.selectOptions(forceStreaming)...)
	if err != nil {
		return nil, fmt.Errorf("select resampler for %s: %w", device.Name, err)
	}

	conv, err := resample.NewConverter(rcfg, cfg.RingBlocks*rcfg.BlockSizeIn)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	id := uuid.New().String()

	consumer, err := newConsumer(Info{ID: id, Device: device, Resampler: rcfg})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	out, err := sink.New(sink.Config{
		Capacity:   cfg.QueueBlocks,
		BlockSize:  rcfg.BlockSizeOut,
		SampleRate: rcfg.OutputRate,
		Policy:     cfg.Policy,
	}, consumer)
	if err != nil {
		if eerr := consumer.EndOfStream(); eerr != nil && !errors.Is(eerr, transcribe.ErrClosed) {
			log.Printf("Session %s: closing consumer: %v", id, eerr)
		}
		return nil, fmt.Errorf("create sink: %w", err)
	}

	var mixOpts []mix.Option
	if len(cfg.Weights) > 0 {
		mixOpts = append(mixOpts, mix.WithWeights(cfg.Weights...))
	}

	s := &Session{
		id:          id,
		device:      device,
		cfg:         rcfg,
		mixer:       mix.New(maxFrames(rcfg, device.BufferSizes), mixOpts...),
		conv:        conv,
		sink:        out,
		reconfigure: make(chan Reason, 1),
		wake:        make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
	}
	s.emitFunc = s.emit

	log.Printf("Session %s: %s -> %s", s.id, device, rcfg)
	return s, nil
}

// maxFrames sizes the mixer for the largest batch the device may deliver
func maxFrames(cfg resample.Config, sizes resample.BufferSizes) int {
	n := cfg.BlockSizeIn
	if sizes.Kind == resample.BufferRange && sizes.Max > n {
		n = sizes.Max
	}
	if sizes.Kind == resample.BufferUnknown && capture.MaxBufferFrames > n {
		n = capture.MaxBufferFrames
	}
	return n
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Info returns the identity handed to the consumer factory
func (s *Session) Info() Info {
	return Info{ID: s.id, Device: s.device, Resampler: s.cfg}
}

// Config returns the resampler configuration chosen for the session
func (s *Session) Config() resample.Config {
	return s.cfg
}

// Device returns the device parameters the session was built for
func (s *Session) Device() capture.DeviceInfo {
	return s.device
}

// Reconfigure delivers at most one request to replace the session
func (s *Session) Reconfigure() <-chan Reason {
	return s.reconfigure
}

// Start begins forwarding to the consumer and, for streaming sessions,
// starts the drain worker
func (s *Session) Start(ctx context.Context) {
	s.sink.Start(ctx)

	if s.cfg.Strategy == resample.StrategyStreaming {
		s.wg.Add(1)
		go s.drainLoop()
	}
}

// HandleFrames is the capture callback. It never blocks: fixed sessions
// convert in place, streaming sessions only mix and push into the FIFO.
func (s *Session) HandleFrames(batch audio.FrameBatch) {
	s.batches.Add(1)

	if err := batch.Validate(); err != nil {
		s.invalid.Add(1)
		return
	}
	if batch.SampleRate != 0 && batch.SampleRate != s.cfg.InputRate {
		s.invalid.Add(1)
		s.requestReconfigure(Reason{
			SampleRate: batch.SampleRate,
			Detail:     fmt.Sprintf("device switched to %d Hz", batch.SampleRate),
		})
		return
	}

	mono := s.mixer.Mix(batch)

	switch s.cfg.Strategy {
	case resample.StrategyFixed:
		if len(mono) != s.cfg.BlockSizeIn {
			s.mismatched.Add(1)
			s.requestReconfigure(Reason{
				Streaming: true,
				Detail:    fmt.Sprintf("device delivered %d frames, negotiated %d", len(mono), s.cfg.BlockSizeIn),
			})
			return
		}
		s.conv.Fixed().Process(mono, s.emitFunc)

	default:
		s.conv.Streaming().Push(mono)
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// emit hands one resampled block to the sink, which copies it
func (s *Session) emit(out []float32) {
	s.sink.Push(out)
}

func (s *Session) requestReconfigure(r Reason) {
	select {
	case s.reconfigure <- r:
	default:
	}
}

// drainLoop converts buffered input off the capture thread
func (s *Session) drainLoop() {
	defer s.wg.Done()

	streaming := s.conv.Streaming()
	for {
		select {
		case <-s.wake:
			streaming.Drain(s.emitFunc)
		case <-s.stopChan:
			streaming.Drain(s.emitFunc)
			return
		}
	}
}

// Close finishes the session. The capture source must already be stopped.
// Blocks still buffered are converted and delivered, then the consumer
// sees end of stream. Samples short of a full block are discarded.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()

	if streaming := s.conv.Streaming(); streaming != nil && streaming.Buffered() > 0 {
		log.Printf("Session %s: discarding %d samples short of a full block", s.id, streaming.Buffered())
	}

	err := s.sink.Close()

	st := s.sink.Stats()
	if serr := st.Err(); serr != nil {
		log.Printf("Session %s: %v (%d overflowed, %d refused)", s.id, serr, st.Overflows, st.Backpressure)
	}
	log.Printf("Session %s closed: %d blocks delivered", s.id, st.Delivered)

	if err != nil && !errors.Is(err, transcribe.ErrClosed) {
		return fmt.Errorf("session %s: %w", s.id, err)
	}
	return nil
}

// Stats returns a snapshot of the session counters
func (s *Session) Stats() Stats {
	st := Stats{
		ID:         s.id,
		Device:     s.device,
		Resampler:  s.cfg,
		Sink:       s.sink.Stats(),
		Batches:    s.batches.Load(),
		Invalid:    s.invalid.Load(),
		Mismatched: s.mismatched.Load(),
	}
	if streaming := s.conv.Streaming(); streaming != nil {
		st.Streaming = streaming.Stats()
	}
	return st
}
