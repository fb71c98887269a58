// ABOUTME: Tests for the session manager
// ABOUTME: Runs whole captures end to end, including reconfiguration and device failure
package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/capture"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
)

// multiRecorder hands a fresh recorder to every session
type multiRecorder struct {
	mu        sync.Mutex
	recorders []*recorder
}

func (m *multiRecorder) factory(info Info) (transcribe.Consumer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &recorder{info: info}
	m.recorders = append(m.recorders, r)
	return r, nil
}

func (m *multiRecorder) all() []*recorder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*recorder(nil), m.recorders...)
}

func runManager(t *testing.T, m *Manager) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-time.After(15 * time.Second):
		t.Fatal("Run never returned")
		return nil
	}
}

func TestEndToEnd44100Stereo(t *testing.T) {
	// 10 callbacks of 512 stereo frames from a device that cannot change its buffer size
	tone := capture.NewToneReader(44100, 2, 440, 0.5, 10*512)
	src := capture.NewReaderSource(tone,
		capture.WithBufferSizes(resample.FixedSize(512)),
		capture.WithPacing(false))

	rec := &multiRecorder{}
	m := NewManager(src, capture.OpenParams{}, DefaultConfig(), rec.factory)

	if err := runManager(t, m); err != nil {
		t.Fatalf("Run: %v", err)
	}

	recorders := rec.all()
	if len(recorders) != 1 {
		t.Fatalf("expected one session, got %d", len(recorders))
	}
	r := recorders[0]
	if r.info.Resampler.Strategy != resample.StrategyStreaming {
		t.Errorf("512 is not a multiple of 441, expected streaming, got %s", r.info.Resampler.Strategy)
	}

	blocks, ended := r.snapshot()
	if !ended {
		t.Error("expected end of stream")
	}
	checkContiguous(t, blocks)

	total := 0
	for _, b := range blocks {
		if len(b.Samples) != r.info.Resampler.BlockSizeOut {
			t.Errorf("block %d has %d samples, want %d", b.Seq, len(b.Samples), r.info.Resampler.BlockSizeOut)
		}
		total += len(b.Samples)
	}

	// 5120 input frames are ~116ms; the partial last block stays behind
	got := audio.SamplesDuration(total, audio.TargetSampleRate)
	want := audio.SamplesDuration(10*512, 44100)
	if got > want || want-got > 30*time.Millisecond {
		t.Errorf("output covers %v, input %v", got, want)
	}

	snap := m.Snapshot()
	if snap.Active || snap.Sessions != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Session.Sink.Overflows != 0 || snap.Session.Streaming.Dropped != 0 {
		t.Errorf("unexpected drops %+v", snap.Session)
	}
}

func TestManagerFixedPath(t *testing.T) {
	tone := capture.NewToneReader(48000, 2, 1000, 0.5, 4*1536)
	src := capture.NewReaderSource(tone,
		capture.WithBufferSizes(resample.RangeSizes(256, 4096)),
		capture.WithPacing(false))

	rec := &multiRecorder{}
	m := NewManager(src, capture.OpenParams{}, DefaultConfig(), rec.factory)

	if err := runManager(t, m); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := rec.all()[0]
	if r.info.Resampler.Strategy != resample.StrategyFixed || r.info.Resampler.BlockSizeIn != 1536 {
		t.Fatalf("unexpected config %s", r.info.Resampler)
	}
	blocks, _ := r.snapshot()
	if len(blocks) != 4 {
		t.Errorf("expected 4 blocks, got %d", len(blocks))
	}
	checkContiguous(t, blocks)
}

func TestManagerFileTailKeepsOneSession(t *testing.T) {
	// The file ends 100 frames into a block
	tone := capture.NewToneReader(48000, 2, 1000, 0.5, 4*1536+100)
	src := capture.NewReaderSource(tone,
		capture.WithBufferSizes(resample.RangeSizes(256, 4096)),
		capture.WithPacing(false))

	rec := &multiRecorder{}
	m := NewManager(src, capture.OpenParams{}, DefaultConfig(), rec.factory)

	if err := runManager(t, m); err != nil {
		t.Fatalf("Run: %v", err)
	}

	recorders := rec.all()
	if len(recorders) != 1 {
		t.Fatalf("expected one session, got %d", len(recorders))
	}
	r := recorders[0]
	if r.info.Resampler.Strategy != resample.StrategyFixed {
		t.Errorf("expected the fixed session to survive end of stream, got %s", r.info.Resampler.Strategy)
	}

	// The padded tail is a fifth full block
	blocks, ended := r.snapshot()
	if !ended || len(blocks) != 5 {
		t.Errorf("expected 5 blocks and end of stream, got %d ended=%v", len(blocks), ended)
	}
	checkContiguous(t, blocks)

	snap := m.Snapshot()
	if snap.Sessions != 1 || snap.Session.Mismatched != 0 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

// fakeSource claims one buffer size and delivers another
type fakeSource struct {
	info     capture.DeviceInfo
	deliver  int   // frames per batch actually delivered
	batches  int   // batches per Start
	endOnRun int   // Start call after which end of stream is reported
	failWith error // reported instead of end of stream

	mu      sync.Mutex
	starts  []int
	onFrame capture.FrameFunc
	onError func(error)
	stop    chan struct{}
	wg      sync.WaitGroup
}

func (f *fakeSource) Open(ctx context.Context, params capture.OpenParams) (capture.DeviceInfo, error) {
	return f.info, nil
}

func (f *fakeSource) OnFrames(fn capture.FrameFunc) { f.onFrame = fn }
func (f *fakeSource) OnError(fn func(error))        { f.onError = fn }

func (f *fakeSource) Start(blockFrames int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.starts = append(f.starts, blockFrames)
	run := len(f.starts)
	f.stop = make(chan struct{})
	stop := f.stop

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for i := 0; i < f.batches; i++ {
			select {
			case <-stop:
				return
			default:
			}
			f.onFrame(stereoBatch(f.info.SampleRate, f.deliver))
		}
		switch {
		case f.failWith != nil:
			f.onError(f.failWith)
		case run == f.endOnRun:
			f.onError(capture.ErrEndOfStream)
		}
	}()
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	stop := f.stop
	f.stop = nil
	f.mu.Unlock()
	if stop != nil {
		close(stop)
		f.wg.Wait()
	}
	return nil
}

func (f *fakeSource) Close() error { return f.Stop() }

func (f *fakeSource) startCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.starts...)
}

func TestManagerReconfiguresToStreaming(t *testing.T) {
	src := &fakeSource{
		info:     capture.DeviceInfo{Name: "liar", SampleRate: 48000, Channels: 2, BufferSizes: resample.FixedSize(1536)},
		deliver:  1000,
		batches:  6,
		endOnRun: 2,
	}

	rec := &multiRecorder{}
	var hooked []string
	m := NewManager(src, capture.OpenParams{}, DefaultConfig(), rec.factory,
		WithSessionHook(func(s *Session) { hooked = append(hooked, s.Config().Strategy.String()) }))

	if err := runManager(t, m); err != nil {
		t.Fatalf("Run: %v", err)
	}

	starts := src.startCalls()
	if len(starts) != 2 || starts[0] != 1536 {
		t.Fatalf("unexpected Start calls %v", starts)
	}
	if len(hooked) != 2 || hooked[0] != "fixed" || hooked[1] != "streaming" {
		t.Errorf("unexpected session strategies %v", hooked)
	}

	recorders := rec.all()
	if len(recorders) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(recorders))
	}
	if recorders[0].info.ID == recorders[1].info.ID {
		t.Error("sessions must have distinct ids")
	}

	first, ended := recorders[0].snapshot()
	if len(first) != 0 || !ended {
		t.Errorf("first session: %d blocks, ended=%v", len(first), ended)
	}

	// 6000 frames at block 1536 -> 3 blocks of 512
	second, ended := recorders[1].snapshot()
	if !ended || len(second) != 3 {
		t.Errorf("second session: %d blocks, ended=%v", len(second), ended)
	}
	checkContiguous(t, second)

	if snap := m.Snapshot(); snap.Sessions != 2 {
		t.Errorf("expected 2 sessions, got %d", snap.Sessions)
	}
}

func TestManagerDeviceError(t *testing.T) {
	unplugged := errors.New("device unplugged")
	src := &fakeSource{
		info:     capture.DeviceInfo{Name: "usb", SampleRate: 16000, Channels: 2, BufferSizes: resample.RangeSizes(64, 4096)},
		deliver:  512,
		batches:  2,
		failWith: unplugged,
	}

	rec := &multiRecorder{}
	m := NewManager(src, capture.OpenParams{}, DefaultConfig(), rec.factory)

	err := runManager(t, m)
	var devErr *capture.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if !errors.Is(err, unplugged) {
		t.Errorf("expected the cause to be kept, got %v", err)
	}

	// Blocks captured before the failure still reach the consumer
	blocks, ended := rec.all()[0].snapshot()
	if !ended {
		t.Error("expected end of stream after device error")
	}
	checkContiguous(t, blocks)
}

func TestManagerContextCancel(t *testing.T) {
	tone := capture.NewToneReader(48000, 2, 440, 0.5, 0)
	src := capture.NewReaderSource(tone)

	rec := &multiRecorder{}
	m := NewManager(src, capture.OpenParams{}, DefaultConfig(), rec.factory)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run ignored cancellation")
	}

	if m.Active() != nil {
		t.Error("no session should be active after Run")
	}
}
