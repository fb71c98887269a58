// ABOUTME: Consumer that streams the 16 kHz mono stream to a caption server
// ABOUTME: Encodes blocks, uploads them over WebSocket and relays transcripts back
package remote

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/encode"
	"github.com/Resonate-Protocol/resonate-captions/pkg/protocol"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
)

const (
	// DefaultQueueFrames is the number of encoded frames waiting for the socket
	DefaultQueueFrames = 32

	// FlushTimeout bounds the wait for final transcripts after stream/end
	FlushTimeout = 3 * time.Second
)

// Config holds uploader configuration
type Config struct {
	ServerAddr  string
	Name        string
	Codec       string // "pcm" or "opus"
	QueueFrames int
	DeviceInfo  protocol.DeviceInfo

	// Announced in stream/start for server-side diagnostics
	Device    string
	Strategy  string
	BlockSize int
}

// Uploader is a transcribe.Consumer backed by a remote caption server.
// Feed never blocks on the network: frames go through a bounded queue and
// a full queue is reported as backpressure.
type Uploader struct {
	config       Config
	client       *protocol.Client
	encoder      encode.Encoder
	sessionID    string
	onTranscript func(transcribe.Transcript)

	mu      sync.Mutex
	queue   chan protocol.AudioFrame
	closed  bool
	started bool
	next    uint64 // offset expected from the next block

	sent      atomic.Uint64
	samples   atomic.Uint64
	dropped   atomic.Uint64
	overflows func() uint64

	writerDone chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// Option configures an Uploader
type Option func(*Uploader)

// WithOverflowCounter reports upstream drops in stream/end
func WithOverflowCounter(fn func() uint64) Option {
	return func(u *Uploader) {
		u.overflows = fn
	}
}

// Dial connects to the caption server and announces a new stream
func Dial(ctx context.Context, cfg Config, onTranscript func(transcribe.Transcript), opts ...Option) (*Uploader, error) {
	if cfg.Codec == "" {
		cfg.Codec = "opus"
	}
	if cfg.QueueFrames <= 0 {
		cfg.QueueFrames = DefaultQueueFrames
	}

	format := audio.Format{
		Codec:      cfg.Codec,
		SampleRate: audio.TargetSampleRate,
		Channels:   1,
		BitDepth:   16,
	}

	encoder, err := encode.New(format)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	client := protocol.NewClient(protocol.Config{
		ServerAddr:      cfg.ServerAddr,
		ClientID:        uuid.New().String(),
		Name:            cfg.Name,
		DeviceInfo:      cfg.DeviceInfo,
		SupportedCodecs: []string{cfg.Codec},
	})

	if err := client.Connect(ctx); err != nil {
		encoder.Close()
		return nil, err
	}

	u := &Uploader{
		config:       cfg,
		client:       client,
		encoder:      encoder,
		sessionID:    uuid.New().String(),
		onTranscript: onTranscript,
		queue:        make(chan protocol.AudioFrame, cfg.QueueFrames),
		writerDone:   make(chan struct{}),
		stopChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}

	start := protocol.StreamStart{
		SessionID:  u.sessionID,
		Codec:      format.Codec,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BitDepth:   format.BitDepth,
		Device:     cfg.Device,
		Strategy:   cfg.Strategy,
		BlockSize:  cfg.BlockSize,
	}
	if err := client.SendStreamStart(start); err != nil {
		client.Close()
		encoder.Close()
		return nil, fmt.Errorf("failed to send stream/start: %w", err)
	}

	log.Printf("Caption session %s started (%s, %d Hz)", u.sessionID, format.Codec, format.SampleRate)

	u.wg.Add(1)
	go u.writeLoop()
	go u.transcriptLoop()

	return u, nil
}

// SessionID identifies the stream on the server
func (u *Uploader) SessionID() string {
	return u.sessionID
}

// Server returns the server's hello
func (u *Uploader) Server() protocol.ServerHello {
	return u.client.Server()
}

// Feed encodes one block and queues the resulting frame
func (u *Uploader) Feed(block audio.Block) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return transcribe.ErrClosed
	}

	// A gap means the sink dropped blocks; held back samples are no longer
	// contiguous with the new block.
	if u.started && block.Offset != u.next {
		u.encoder.Reset()
	}
	u.started = true
	u.next = block.Offset + uint64(len(block.Samples))

	offset := block.Offset - uint64(u.encoder.Pending())
	payload, err := u.encoder.Encode(block.Samples)
	if err != nil {
		return fmt.Errorf("encode block %d: %w", block.Seq, err)
	}
	if len(payload) == 0 {
		return nil
	}

	select {
	case u.queue <- protocol.AudioFrame{Seq: block.Seq, Offset: offset, Payload: payload}:
		u.samples.Add(uint64(len(block.Samples)))
		return nil
	default:
		u.dropped.Add(1)
		return transcribe.ErrBackpressure
	}
}

// writeLoop drains the frame queue onto the socket
func (u *Uploader) writeLoop() {
	defer close(u.writerDone)

	for frame := range u.queue {
		if !u.client.IsConnected() {
			u.dropped.Add(1)
			continue
		}
		if err := u.client.SendAudio(frame); err != nil {
			log.Printf("Failed to send audio frame %d: %v", frame.Seq, err)
			u.dropped.Add(1)
			continue
		}
		u.sent.Add(1)
	}
}

// transcriptLoop relays server transcripts to the callback
func (u *Uploader) transcriptLoop() {
	defer u.wg.Done()

	for {
		select {
		case tr := <-u.client.Transcripts:
			u.deliver(tr)
		case <-u.client.Done():
			u.drainTranscripts()
			return
		case <-u.stopChan:
			u.drainTranscripts()
			return
		}
	}
}

func (u *Uploader) drainTranscripts() {
	for {
		select {
		case tr := <-u.client.Transcripts:
			u.deliver(tr)
		default:
			return
		}
	}
}

func (u *Uploader) deliver(tr protocol.Transcript) {
	if u.onTranscript == nil || tr.SessionID != u.sessionID {
		return
	}
	u.onTranscript(transcribe.Transcript{
		Text:    tr.Text,
		Offset:  tr.Offset,
		Samples: tr.Samples,
		Final:   tr.Final,
	})
}

// EndOfStream flushes queued frames, ends the session and waits briefly
// for the server's final transcripts
func (u *Uploader) EndOfStream() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	close(u.queue)
	u.mu.Unlock()

	var err error
	u.stopOnce.Do(func() {
		err = u.shutdown()
	})
	return err
}

func (u *Uploader) shutdown() error {
	// Frames must reach the server before stream/end
	<-u.writerDone

	end := protocol.StreamEnd{
		SessionID:    u.sessionID,
		Blocks:       u.sent.Load(),
		Samples:      u.samples.Load(),
		Backpressure: u.dropped.Load(),
	}
	if u.overflows != nil {
		end.Overflows = u.overflows()
	}

	var sendErr error
	if u.client.IsConnected() {
		sendErr = u.client.SendStreamEnd(end)
		if sendErr == nil {
			select {
			case <-u.client.Done():
			case <-time.After(FlushTimeout):
				log.Printf("Timed out waiting for final transcripts")
			}
		}
		if u.client.IsConnected() {
			u.client.SendGoodbye("stream ended")
		}
	}

	u.client.Close()
	close(u.stopChan)
	u.wg.Wait()
	u.encoder.Close()

	log.Printf("Caption session %s ended: %d frames sent, %d dropped", u.sessionID, end.Blocks, end.Backpressure)

	if sendErr != nil {
		return fmt.Errorf("failed to send stream/end: %w", sendErr)
	}
	return nil
}
