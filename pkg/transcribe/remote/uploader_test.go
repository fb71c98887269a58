// ABOUTME: Tests for the remote caption uploader
// ABOUTME: Runs a local WebSocket caption server and checks frames and transcripts
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/protocol"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
)

// fakeServer records what a client uploads and answers stream/end with one transcript
type fakeServer struct {
	mu     sync.Mutex
	start  protocol.StreamStart
	frames []protocol.AudioFrame
	end    protocol.StreamEnd
	done   chan struct{}
}

func newFakeServer(t *testing.T) (*fakeServer, string) {
	t.Helper()

	fs := &fakeServer{done: make(chan struct{})}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc(protocol.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		defer close(fs.done)
		fs.serve(t, conn)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return fs, strings.TrimPrefix(srv.URL, "http://")
}

func (fs *fakeServer) serve(t *testing.T, conn *websocket.Conn) {
	var hello protocol.Message
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != protocol.TypeClientHello {
		t.Errorf("expected client/hello, got %v (%v)", hello.Type, err)
		return
	}
	conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeServerHello,
		Payload: protocol.ServerHello{ServerID: "srv", Name: "fake", Version: protocol.Version, Engine: "test"},
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if kind == websocket.BinaryMessage {
			frame, err := protocol.ParseFrame(data)
			if err != nil {
				t.Errorf("bad frame: %v", err)
				continue
			}
			frame.Payload = append([]byte(nil), frame.Payload...)
			fs.mu.Lock()
			fs.frames = append(fs.frames, frame)
			fs.mu.Unlock()
			continue
		}

		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Errorf("bad json: %v", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeStreamStart:
			fs.mu.Lock()
			json.Unmarshal(msg.Payload, &fs.start)
			fs.mu.Unlock()
		case protocol.TypeStreamEnd:
			fs.mu.Lock()
			json.Unmarshal(msg.Payload, &fs.end)
			session := fs.start.SessionID
			fs.mu.Unlock()
			conn.WriteJSON(protocol.Message{
				Type:    protocol.TypeTranscript,
				Payload: protocol.Transcript{SessionID: session, Text: "hello", Offset: 0, Samples: 960, Final: true},
			})
			return
		}
	}
}

func block(seq, offset uint64, n int) audio.Block {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.25
	}
	return audio.Block{Seq: seq, Offset: offset, SampleRate: audio.TargetSampleRate, Samples: samples}
}

func TestUploaderPCM(t *testing.T) {
	fs, addr := newFakeServer(t)

	var mu sync.Mutex
	var got []transcribe.Transcript
	onTranscript := func(tr transcribe.Transcript) {
		mu.Lock()
		got = append(got, tr)
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	up, err := Dial(ctx, Config{ServerAddr: addr, Name: "test", Codec: "pcm", BlockSize: 320},
		onTranscript, WithOverflowCounter(func() uint64 { return 2 }))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	for i := uint64(0); i < 3; i++ {
		if err := up.Feed(block(i, i*320, 320)); err != nil {
			t.Fatalf("Feed %d: %v", i, err)
		}
	}

	if err := up.EndOfStream(); err != nil {
		t.Fatalf("EndOfStream: %v", err)
	}

	select {
	case <-fs.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server never finished")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.start.SampleRate != audio.TargetSampleRate || fs.start.Codec != "pcm" || fs.start.Channels != 1 {
		t.Errorf("unexpected stream/start %+v", fs.start)
	}
	if fs.start.SessionID != up.SessionID() {
		t.Errorf("session mismatch: %s vs %s", fs.start.SessionID, up.SessionID())
	}
	if len(fs.frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(fs.frames))
	}
	for i, f := range fs.frames {
		if f.Seq != uint64(i) || f.Offset != uint64(i)*320 {
			t.Errorf("frame %d: seq=%d offset=%d", i, f.Seq, f.Offset)
		}
		if len(f.Payload) != 640 {
			t.Errorf("frame %d: expected 640 payload bytes, got %d", i, len(f.Payload))
		}
	}
	if fs.end.Blocks != 3 || fs.end.Samples != 960 || fs.end.Overflows != 2 {
		t.Errorf("unexpected stream/end %+v", fs.end)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Text != "hello" || !got[0].Final {
		t.Errorf("unexpected transcripts %+v", got)
	}
}

func TestUploaderOpusOffsets(t *testing.T) {
	fs, addr := newFakeServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	up, err := Dial(ctx, Config{ServerAddr: addr, Codec: "opus"}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// 480 samples -> one 320 packet, 160 held back
	if err := up.Feed(block(0, 0, 480)); err != nil {
		t.Fatal(err)
	}
	// contiguous: 160 + 480 = 640 -> two packets starting at 320
	if err := up.Feed(block(1, 480, 480)); err != nil {
		t.Fatal(err)
	}
	// block 2 was dropped upstream, so the encoder restarts at 1440
	if err := up.Feed(block(3, 1440, 480)); err != nil {
		t.Fatal(err)
	}

	if err := up.EndOfStream(); err != nil {
		t.Fatalf("EndOfStream: %v", err)
	}
	<-fs.done

	fs.mu.Lock()
	defer fs.mu.Unlock()

	want := []uint64{0, 320, 1440}
	if len(fs.frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(fs.frames))
	}
	for i, f := range fs.frames {
		if f.Offset != want[i] {
			t.Errorf("frame %d: expected offset %d, got %d", i, want[i], f.Offset)
		}
	}
}

func TestUploaderFeedAfterEnd(t *testing.T) {
	_, addr := newFakeServer(t)

	up, err := Dial(context.Background(), Config{ServerAddr: addr, Codec: "pcm"}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := up.EndOfStream(); err != nil {
		t.Fatalf("EndOfStream: %v", err)
	}

	if err := up.Feed(block(0, 0, 320)); !errors.Is(err, transcribe.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := up.EndOfStream(); err != nil {
		t.Errorf("second EndOfStream: %v", err)
	}
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, Config{ServerAddr: "127.0.0.1:1", Codec: "pcm"}, nil); err == nil {
		t.Fatal("expected dial error")
	}
}
