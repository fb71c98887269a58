// ABOUTME: Entry point for the caption server
// ABOUTME: Parses CLI flags and serves transcription to capture clients
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-captions/internal/server"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe/whisper"
)

var (
	port         = flag.Int("port", 8927, "WebSocket server port")
	name         = flag.String("name", "", "Server friendly name (default: hostname-caption-server)")
	logFile      = flag.String("log-file", "caption-server.log", "Log file path")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	noMDNS       = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	whisperModel = flag.String("whisper-model", "", "Whisper model path (default: level meter engine)")
	language     = flag.String("language", whisper.DefaultLanguage, "Transcription language")
	silence      = flag.Duration("silence", 500*time.Millisecond, "Trailing silence that ends an utterance")
	maxUtterance = flag.Duration("max-utterance", 5*time.Second, "Longest utterance sent to the engine")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		log.SetOutput(f)
	} else {
		// Log to both file and stdout
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	// Determine server name
	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-caption-server", hostname)
	}

	var engine transcribe.Engine = transcribe.LevelEngine{}
	engineName := "level"
	if *whisperModel != "" {
		engine, err = whisper.New(*whisperModel, whisper.WithLanguage(*language))
		if err != nil {
			log.Fatalf("Failed to load whisper model: %v", err)
		}
		engineName = "whisper"
	}

	log.Printf("Starting Caption Server: %s on port %d (engine %s)", serverName, *port, engineName)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	segCfg := transcribe.DefaultSegmenterConfig()
	segCfg.SilenceDuration = *silence
	segCfg.MaxDuration = *maxUtterance

	config := server.Config{
		Port:       *port,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		Debug:      *debug,
		UseTUI:     useTUI,
		EngineName: engineName,
		Segmenter:  segCfg,
	}

	srv := server.New(config, engine)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
