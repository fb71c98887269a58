// ABOUTME: Entry point for the live caption capture client
// ABOUTME: Parses CLI flags, captures audio and streams 16 kHz mono to a transcriber
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/resonate-captions/internal/discovery"
	"github.com/Resonate-Protocol/resonate-captions/internal/session"
	"github.com/Resonate-Protocol/resonate-captions/internal/sink"
	"github.com/Resonate-Protocol/resonate-captions/internal/ui"
	"github.com/Resonate-Protocol/resonate-captions/internal/version"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/capture"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-captions/pkg/protocol"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe/remote"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe/whisper"
)

var (
	deviceID       = flag.String("device", "", "Capture device ID or name (default: system default)")
	listDevices    = flag.Bool("list-devices", false, "List capture devices and exit")
	loopback       = flag.Bool("loopback", false, "Capture system output instead of a microphone (where supported)")
	sourcePath     = flag.String("source", "", "Replay an MP3/FLAC file, or \"tone\", instead of a device")
	serverAddr     = flag.String("server", "", "Caption server address, or \"auto\" for mDNS discovery (default: transcribe locally)")
	name           = flag.String("name", "", "Client friendly name (default: hostname-captions)")
	codec          = flag.String("codec", "opus", "Upload codec: opus or pcm")
	monitor        = flag.Bool("monitor", false, "Play the 16 kHz stream through the default output device")
	whisperModel   = flag.String("whisper-model", "", "Whisper model for local transcription (default: level meter)")
	language       = flag.String("language", whisper.DefaultLanguage, "Transcription language")
	queueBlocks    = flag.Int("queue", sink.DefaultCapacity, "Blocks buffered between capture and the transcriber")
	overflow       = flag.String("overflow", "drop-oldest", "Queue overflow policy: drop-oldest or drop-newest")
	bufferHint     = flag.Int("buffer-hint", 0, "Preferred device buffer in frames (default: ~32ms)")
	streamingBlock = flag.Int("streaming-block", 0, "Streaming resampler block in input frames (default: buffer hint)")
	forceStreaming = flag.Bool("force-streaming", false, "Always use the streaming resampler")
	logFile        = flag.String("log-file", "captions.log", "Log file path")
	noTUI          = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug          = flag.Bool("debug", false, "Enable debug logging")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	if *listDevices {
		if err := printDevices(); err != nil {
			log.Fatalf("Failed to list devices: %v", err)
		}
		return
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	clientName := *name
	if clientName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		clientName = fmt.Sprintf("%s-captions", hostname)
	}

	policy, err := sink.ParsePolicy(*overflow)
	if err != nil {
		log.Fatalf("Invalid -overflow: %v", err)
	}

	log.Printf("Starting %s %s: %s", version.Product, version.Version, clientName)

	// TUI setup
	var tuiProg *tea.Program
	var controls *ui.Controls

	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls, *monitor)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		} else if caption, ok := msg.(ui.Caption); ok {
			log.Printf("[%v] %s", caption.Start.Round(time.Millisecond), caption.Text)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve the transcriber
	address := *serverAddr
	if address == "auto" {
		log.Printf("Starting server discovery...")
		server, err := discovery.FindServer(ctx, 10*time.Second)
		if err != nil {
			log.Fatalf("Server discovery failed: %v", err)
		}
		address = server.Addr()
		log.Printf("Discovered %s (%s) at %s", server.Name, server.Engine, address)
	}

	var engine transcribe.Engine
	if address == "" {
		engine, err = newEngine(*whisperModel, *language)
		if err != nil {
			log.Fatalf("Failed to create transcription engine: %v", err)
		}
		defer func() { _ = engine.Close() }()
		updateTUI(ui.StatusMsg{Engine: engineName(*whisperModel)})
	}

	var out *output.Oto
	if *monitor {
		out = output.NewOto()
		defer func() { _ = out.Close() }()
	}

	onTranscript := func(tr transcribe.Transcript) {
		updateTUI(ui.Caption{Start: tr.Start(), Text: tr.Text, Final: tr.Final})
	}

	factory := func(info session.Info) (transcribe.Consumer, error) {
		if *debug {
			log.Printf("[DEBUG] Building consumers for session %s (%s)", info.ID, info.Resampler)
		}

		var consumers transcribe.Tee

		if address != "" {
			uploader, err := remote.Dial(ctx, remote.Config{
				ServerAddr: address,
				Name:       clientName,
				Codec:      *codec,
				DeviceInfo: protocol.DeviceInfo{
					ProductName:     version.Product,
					Manufacturer:    version.Manufacturer,
					SoftwareVersion: version.Version,
				},
				Device:    info.Device.Name,
				Strategy:  info.Resampler.Strategy.String(),
				BlockSize: info.Resampler.BlockSizeOut,
			}, onTranscript)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to caption server: %w", err)
			}
			server := uploader.Server()
			connected := true
			updateTUI(ui.StatusMsg{Connected: &connected, ServerName: server.Name, Engine: server.Engine})
			consumers = append(consumers, uploader)
		} else {
			consumers = append(consumers, transcribe.NewSegmenter(engine, transcribe.DefaultSegmenterConfig(), onTranscript))
		}

		if out != nil {
			consumers = append(consumers, output.NewMonitor(out))
		}
		return consumers, nil
	}

	cfg := session.DefaultConfig()
	cfg.PreferredBlock = *bufferHint
	cfg.StreamingBlock = *streamingBlock
	cfg.ForceStreaming = *forceStreaming
	cfg.QueueBlocks = *queueBlocks
	cfg.Policy = policy

	source, err := openSource(*sourcePath)
	if err != nil {
		log.Fatalf("Failed to open source: %v", err)
	}

	params := capture.OpenParams{
		DeviceID: *deviceID,
		Loopback: *loopback,
	}

	sessions := 0
	manager := session.NewManager(source, params, cfg, factory,
		session.WithSessionHook(func(s *session.Session) {
			sessions++
			rc := s.Config()
			log.Printf("Session %s: %s, %s", s.ID(), s.Device(), rc)
			updateTUI(ui.StatusMsg{
				Device:     s.Device().Name,
				Strategy:   rc.Strategy.String(),
				InputRate:  rc.InputRate,
				OutputRate: rc.OutputRate,
				Channels:   s.Device().Channels,
				BlockIn:    rc.BlockSizeIn,
				BlockOut:   rc.BlockSizeOut,
				Latency:    rc.Latency(),
				Sessions:   sessions,
			})
		}))

	if controls != nil && out != nil {
		go handleVolumeControl(out, controls)
	}

	if tuiProg != nil {
		go statsUpdateLoop(ctx, manager, updateTUI)
	} else if *debug {
		go statsLogLoop(ctx, manager)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var quit <-chan struct{}
		if controls != nil {
			quit = controls.Quit
		}
		select {
		case <-quit:
			log.Printf("Received quit signal from TUI")
		case sig := <-sigChan:
			log.Printf("Received %v signal, shutting down...", sig)
		case <-ctx.Done():
			return
		}
		cancel()
	}()

	runErr := manager.Run(ctx)

	snap := manager.Snapshot()
	logStats(snap)

	if tuiProg != nil {
		tuiProg.Quit()
	}

	var deviceErr *capture.DeviceError
	if errors.As(runErr, &deviceErr) {
		log.Fatalf("Capture device failed: %v", deviceErr)
	}
	if runErr != nil {
		log.Fatalf("Capture stopped: %v", runErr)
	}

	log.Printf("Capture stopped")
}

// newEngine picks the local transcription engine
func newEngine(modelPath, lang string) (transcribe.Engine, error) {
	if modelPath == "" {
		return transcribe.LevelEngine{}, nil
	}
	return whisper.New(modelPath, whisper.WithLanguage(lang))
}

func engineName(modelPath string) string {
	if modelPath == "" {
		return "level"
	}
	return "whisper"
}

// openSource returns the capture backend for -source
func openSource(path string) (capture.Source, error) {
	switch path {
	case "":
		return capture.NewMalgo(), nil
	case "tone":
		return capture.NewReaderSource(capture.NewToneReader(48000, 2, 440, 0.5, 0)), nil
	default:
		reader, err := capture.OpenReader(path)
		if err != nil {
			return nil, err
		}
		return capture.NewReaderSource(reader), nil
	}
}

// printDevices lists capture devices on stdout
func printDevices() error {
	devices, err := capture.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %s\t%s\n", marker, d.ID, d.Name)
	}
	return nil
}

// handleVolumeControl processes monitor volume changes from TUI
func handleVolumeControl(out *output.Oto, controls *ui.Controls) {
	for change := range controls.Volume {
		out.SetVolume(change.Volume)
		out.SetMuted(change.Muted)
		log.Printf("Monitor volume: %d%% muted=%v", change.Volume, change.Muted)
	}
}

// statsUpdateLoop periodically sends pipeline counters to the TUI
func statsUpdateLoop(ctx context.Context, manager *session.Manager, updateTUI func(tea.Msg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)

			updateTUI(ui.StatusMsg{
				Stats:      counters(manager.Snapshot()),
				Goroutines: runtime.NumGoroutine(),
				MemAlloc:   mem.Alloc,
				MemSys:     mem.Sys,
			})
		}
	}
}

// statsLogLoop logs pipeline counters when running without the TUI
func statsLogLoop(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logStats(manager.Snapshot())
		}
	}
}

func counters(snap session.Snapshot) *ui.Counters {
	st := snap.Session
	return &ui.Counters{
		Delivered:    st.Sink.Delivered,
		Queued:       st.Sink.Queued,
		Overflows:    st.Sink.Overflows,
		Backpressure: st.Sink.Backpressure,
		Xruns:        st.Streaming.Dropped,
		Mismatched:   st.Mismatched,
		Orphaned:     snap.Orphaned,
	}
}

func logStats(snap session.Snapshot) {
	c := counters(snap)
	log.Printf("Stats: sessions=%d delivered=%d queued=%d overflows=%d backpressure=%d xruns=%d mismatched=%d orphaned=%d",
		snap.Sessions, c.Delivered, c.Queued, c.Overflows, c.Backpressure, c.Xruns, c.Mismatched, c.Orphaned)
}
