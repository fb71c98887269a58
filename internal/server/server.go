// ABOUTME: Caption server implementation
// ABOUTME: Accepts audio streams over WebSocket, transcribes them and sends captions back
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/resonate-captions/internal/discovery"
	"github.com/Resonate-Protocol/resonate-captions/pkg/protocol"
	"github.com/Resonate-Protocol/resonate-captions/pkg/transcribe"
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
	UseTUI     bool

	// EngineName is reported in server/hello and mDNS
	EngineName string
	Segmenter  transcribe.SegmenterConfig
}

// Server represents the caption server
type Server struct {
	config   Config
	serverID string
	engine   transcribe.Engine

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux

	// Client management
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// mDNS discovery
	mdnsManager *discovery.Manager

	// TUI
	tui       *ServerTUI
	startTime time.Time

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected capture client
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	stream *Stream

	// Output channel for messages
	sendChan chan interface{}

	mu sync.RWMutex
}

// closeMsg asks the writer to close the connection once everything before it is sent
type closeMsg struct{}

// New creates a new server instance around engine. The server serialises
// engine calls, so one engine serves every stream.
func New(config Config, engine transcribe.Engine) *Server {
	if config.EngineName == "" {
		config.EngineName = "unknown"
	}

	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		engine:   &lockedEngine{engine: engine},
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Allow non-browser clients (no Origin header)
					return true
				}
				log.Printf("Warning: accepting WebSocket from origin: %s", origin)
				return true
			},
		},
		clients:   make(map[string]*Client),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
}

// Handler returns the HTTP handler serving the caption endpoint
func (s *Server) Handler() http.Handler {
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s.mux
}

// Start runs the server until Stop is called or the TUI quits
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tui.Start(s.config.Name, s.config.Port, s.config.EngineName)
		}()

		// Give TUI time to initialize
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("Server starting: %s (ID: %s, engine: %s)", s.config.Name, s.serverID, s.config.EngineName)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Engine:      s.config.EngineName,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s%s", addr, protocol.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdown()

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// shutdown stops accepting streams and waits for open ones to finish
func (s *Server) shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	// Hijacked WebSocket connections are not closed by Shutdown
	s.clientsMu.RLock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()

	if err := s.engine.Close(); err != nil {
		log.Printf("Engine close error: %v", err)
	}
	log.Printf("Server stopped cleanly")
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)

	// Registering under the lock keeps wg.Add ahead of shutdown's Wait
	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		conn.Close()
		return
	}
	s.wg.Add(1)
	s.shutdownMu.RUnlock()

	defer s.wg.Done()
	s.handleConnection(conn)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	if s.config.Debug {
		log.Printf("[DEBUG] New connection, waiting for handshake")
	}

	conn.SetReadDeadline(time.Now().Add(protocol.HandshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected client/hello, got %s", msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error unmarshaling client hello: %v", err)
		return
	}

	if hello.ClientID == "" {
		log.Printf("Client hello missing ClientID")
		return
	}
	if hello.Name == "" {
		hello.Name = hello.ClientID
	}

	log.Printf("Client hello: %s (ID: %s, codecs: %v)", hello.Name, hello.ClientID, hello.SupportedCodecs)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, 100),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", hello.ClientID, existing.Name)

		errorMsg := protocol.Message{
			Type: "server/error",
			Payload: map[string]string{
				"error":   "duplicate_client_id",
				"message": "Client ID already connected",
			},
		}
		if data, err := json.Marshal(errorMsg); err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	s.updateTUI()

	writerDone := make(chan struct{})
	defer func() {
		s.endStream(client)

		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		<-writerDone
		log.Printf("Client disconnected: %s", client.Name)

		s.updateTUI()
	}()

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
		Engine:   s.config.EngineName,
	}

	go func() {
		defer close(writerDone)
		s.clientWriter(client)
	}()

	if err := s.sendMessage(client, protocol.TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if kind == websocket.BinaryMessage {
			s.handleAudio(client, data)
			continue
		}
		if done := s.handleClientMessage(client, data); done {
			break
		}
	}
}

// clientWriter sends messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			switch v := msg.(type) {
			case closeMsg:
				client.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"),
					time.Now().Add(writeDeadline))
				// keep draining so senders never block
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Printf("Error marshaling message: %v", err)
					continue
				}
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Printf("Error writing text message: %v", err)
				}
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				if s.config.Debug {
					log.Printf("[DEBUG] Ping to %s failed: %v", client.Name, err)
				}
			}
		}
	}
}

// handleClientMessage processes JSON messages. It reports true when the
// connection should end.
func (s *Server) handleClientMessage(client *Client, data []byte) bool {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return false
	}

	switch msg.Type {
	case protocol.TypeStreamStart:
		var start protocol.StreamStart
		if err := decodePayload(msg.Payload, &start); err != nil {
			log.Printf("Error unmarshaling stream/start: %v", err)
			return false
		}
		s.startStream(client, start)

	case protocol.TypeStreamEnd:
		var end protocol.StreamEnd
		if err := decodePayload(msg.Payload, &end); err != nil {
			log.Printf("Error unmarshaling stream/end: %v", err)
		}
		log.Printf("Stream end from %s: %d blocks, %d overflowed, %d refused upstream",
			client.Name, end.Blocks, end.Overflows, end.Backpressure)
		s.endStream(client)
		s.queue(client, closeMsg{})

	case protocol.TypeGoodbye:
		var bye protocol.ClientGoodbye
		decodePayload(msg.Payload, &bye)
		log.Printf("Client %s said goodbye: %s", client.Name, bye.Reason)
		return true

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
	return false
}

// startStream replaces the client's stream with a new one
func (s *Server) startStream(client *Client, start protocol.StreamStart) {
	s.endStream(client)

	stream, err := NewStream(start, s.engine, s.config.Segmenter, func(tr protocol.Transcript) {
		if err := s.sendMessage(client, protocol.TypeTranscript, tr); err != nil {
			log.Printf("Dropping transcript for %s: %v", client.Name, err)
		}
		s.updateTUI()
	})
	if err != nil {
		log.Printf("Rejecting stream from %s: %v", client.Name, err)
		return
	}

	client.mu.Lock()
	client.stream = stream
	client.mu.Unlock()

	log.Printf("Stream %s from %s: %s %d Hz, %d ch (client strategy %s, block %d)",
		start.SessionID, client.Name, start.Codec, start.SampleRate, start.Channels, start.Strategy, start.BlockSize)
	s.updateTUI()
}

// endStream flushes and forgets the client's stream, if any
func (s *Server) endStream(client *Client) {
	client.mu.Lock()
	stream := client.stream
	client.stream = nil
	client.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
}

// handleAudio feeds one binary frame to the client's stream
func (s *Server) handleAudio(client *Client, data []byte) {
	frame, err := protocol.ParseFrame(data)
	if err != nil {
		log.Printf("Bad audio frame from %s: %v", client.Name, err)
		return
	}

	client.mu.RLock()
	stream := client.stream
	client.mu.RUnlock()

	if stream == nil {
		if s.config.Debug {
			log.Printf("[DEBUG] Audio from %s before stream/start, dropping", client.Name)
		}
		return
	}

	if err := stream.Write(frame); err != nil && s.config.Debug {
		log.Printf("[DEBUG] Stream %s: %v", stream.ID(), err)
	}
}

// sendMessage queues a JSON message for a client
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	return s.queue(client, protocol.Message{
		Type:    msgType,
		Payload: payload,
	})
}

func (s *Server) queue(client *Client, msg interface{}) error {
	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// decodePayload re-marshals a generic payload into a typed struct
func decodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// lockedEngine serialises calls into an engine shared by every stream
type lockedEngine struct {
	mu     sync.Mutex
	engine transcribe.Engine
}

func (e *lockedEngine) Transcribe(samples []float32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Transcribe(samples)
}

func (e *lockedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Close()
}
