// ABOUTME: WebSocket client for the caption protocol
// ABOUTME: Handles connection, handshake, audio upload and transcript routing
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HandshakeTimeout bounds the wait for server/hello
const HandshakeTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	ServerAddr      string
	ClientID        string
	Name            string
	DeviceInfo      DeviceInfo
	SupportedCodecs []string
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex

	// Message channels
	Transcripts chan Transcript

	server ServerHello

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	if len(config.SupportedCodecs) == 0 {
		config.SupportedCodecs = []string{"opus", "pcm"}
	}

	return &Client{
		config:      config,
		Transcripts: make(chan Transcript, 32),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:        c.config.ClientID,
		Name:            c.config.Name,
		Version:         Version,
		DeviceInfo:      &c.config.DeviceInfo,
		SupportedCodecs: c.config.SupportedCodecs,
	}

	if err := c.sendJSON(Message{Type: TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var serverMsg Message
	if err := json.Unmarshal(data, &serverMsg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	if serverMsg.Type != TypeServerHello {
		return fmt.Errorf("expected server/hello, got %s", serverMsg.Type)
	}

	var server ServerHello
	if err := decodePayload(serverMsg.Payload, &server); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	log.Printf("Handshake complete with %s (engine %s)", server.Name, server.Engine)
	return nil
}

// decodePayload re-marshals a generic payload into a typed struct
func decodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// SendAudio sends one binary audio frame
func (c *Client) SendAudio(frame AudioFrame) error {
	data := AppendFrame(make([]byte, 0, FrameHeaderSize+len(frame.Payload)), frame)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// SendStreamStart announces a new audio session
func (c *Client) SendStreamStart(start StreamStart) error {
	return c.sendJSON(Message{Type: TypeStreamStart, Payload: start})
}

// SendStreamEnd closes the current audio session
func (c *Client) SendStreamEnd(end StreamEnd) error {
	return c.sendJSON(Message{Type: TypeStreamEnd, Payload: end})
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(Message{Type: TypeGoodbye, Payload: ClientGoodbye{Reason: reason}})
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsConnected() {
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			c.handleJSONMessage(data)
		} else {
			log.Printf("Unexpected WebSocket message type from server: %d", messageType)
		}
	}
}

// handleJSONMessage routes server messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case TypeTranscript:
		var tr Transcript
		if err := decodePayload(msg.Payload, &tr); err != nil {
			log.Printf("Failed to parse server/transcript: %v", err)
			return
		}
		select {
		case c.Transcripts <- tr:
		case <-time.After(100 * time.Millisecond):
			log.Printf("Transcript channel full, dropping message")
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
