// ABOUTME: One caption stream received from a capture client
// ABOUTME: Decodes audio frames, tracks offset gaps and feeds the segmenter
package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-captions/pkg/protocol"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
)

// StreamStats is a snapshot of a stream's counters
type StreamStats struct {
	ID       string
	Codec    string
	Frames   uint64
	Received time.Duration
	Gaps     uint64 // samples missing between frames
	Refused  uint64 // frames dropped because the engine was behind
	LastText string
}

// Stream transcribes one stream/start ... stream/end session
type Stream struct {
	id        string
	format    audio.Format
	decoder   decode.Decoder
	segmenter *transcribe.Segmenter

	mu      sync.Mutex
	started bool
	next    uint64
	closed  bool

	frames   atomic.Uint64
	samples  atomic.Uint64
	gaps     atomic.Uint64
	refused  atomic.Uint64
	lastText atomic.Value
}

// NewStream validates start and begins transcribing.
// onTranscript is called from the segmenter goroutine.
func NewStream(start protocol.StreamStart, engine transcribe.Engine, cfg transcribe.SegmenterConfig, onTranscript func(protocol.Transcript)) (*Stream, error) {
	if start.SampleRate != audio.TargetSampleRate {
		return nil, fmt.Errorf("unsupported sample rate %d (want %d)", start.SampleRate, audio.TargetSampleRate)
	}
	if start.Channels != 1 {
		return nil, fmt.Errorf("unsupported channel count %d (want mono)", start.Channels)
	}

	format := audio.Format{
		Codec:      start.Codec,
		SampleRate: start.SampleRate,
		Channels:   start.Channels,
		BitDepth:   start.BitDepth,
	}
	decoder, err := decode.New(format)
	if err != nil {
		return nil, err
	}

	st := &Stream{
		id:      start.SessionID,
		format:  format,
		decoder: decoder,
	}
	st.lastText.Store("")

	st.segmenter = transcribe.NewSegmenter(engine, cfg, func(tr transcribe.Transcript) {
		st.lastText.Store(tr.Text)
		if onTranscript != nil {
			onTranscript(protocol.Transcript{
				SessionID: st.id,
				Text:      tr.Text,
				Offset:    tr.Offset,
				Samples:   tr.Samples,
				Final:     tr.Final,
			})
		}
	})

	return st, nil
}

// ID returns the client's session id
func (st *Stream) ID() string {
	return st.id
}

// Write decodes one frame and hands it to the segmenter
func (st *Stream) Write(frame protocol.AudioFrame) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return transcribe.ErrClosed
	}

	samples, err := st.decoder.Decode(frame.Payload)
	if err != nil {
		return fmt.Errorf("decode frame %d: %w", frame.Seq, err)
	}

	if st.started && frame.Offset > st.next {
		st.gaps.Add(frame.Offset - st.next)
	}
	st.started = true
	st.next = frame.Offset + uint64(len(samples))

	st.frames.Add(1)
	st.samples.Add(uint64(len(samples)))

	err = st.segmenter.Feed(audio.Block{
		Seq:        frame.Seq,
		Offset:     frame.Offset,
		SampleRate: st.format.SampleRate,
		Samples:    samples,
	})
	if err != nil {
		st.refused.Add(1)
		return err
	}
	return nil
}

// Close transcribes what is left and releases the decoder
func (st *Stream) Close() error {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil
	}
	st.closed = true
	st.mu.Unlock()

	err := st.segmenter.EndOfStream()
	st.decoder.Close()
	return err
}

// Stats returns a snapshot of the stream counters
func (st *Stream) Stats() StreamStats {
	return StreamStats{
		ID:       st.id,
		Codec:    st.format.Codec,
		Frames:   st.frames.Load(),
		Received: audio.SamplesDuration(int(st.samples.Load()), st.format.SampleRate),
		Gaps:     st.gaps.Load(),
		Refused:  st.refused.Load(),
		LastText: st.lastText.Load().(string),
	}
}
