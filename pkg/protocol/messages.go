// ABOUTME: Caption protocol message type definitions
// ABOUTME: Defines structs for the JSON control messages exchanged with caption servers
package protocol

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypeStreamStart = "stream/start"
	TypeStreamEnd   = "stream/end"
	TypeTranscript  = "server/transcript"
	TypeGoodbye     = "client/goodbye"
)

// Path is the WebSocket endpoint served by caption servers
const Path = "/captions"

// Version is the protocol version spoken by this package
const Version = 1

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID        string      `json:"client_id"`
	Name            string      `json:"name"`
	Version         int         `json:"version"`
	DeviceInfo      *DeviceInfo `json:"device_info,omitempty"`
	SupportedCodecs []string    `json:"supported_codecs"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Engine   string `json:"engine"`
}

// StreamStart announces the format of the binary audio frames that follow
type StreamStart struct {
	SessionID  string `json:"session_id"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	Device     string `json:"device,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	BlockSize  int    `json:"block_size,omitempty"`
}

// StreamEnd closes a session and reports what the client lost
type StreamEnd struct {
	SessionID    string `json:"session_id"`
	Blocks       uint64 `json:"blocks"`
	Samples      uint64 `json:"samples"`
	Overflows    uint64 `json:"overflows"`
	Backpressure uint64 `json:"backpressure"`
}

// Transcript carries recognised text anchored to the stream's sample offsets
type Transcript struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Offset    uint64 `json:"offset"`
	Samples   int    `json:"samples"`
	Final     bool   `json:"final"`
}

// ClientGoodbye is sent before a client disconnects
type ClientGoodbye struct {
	Reason string `json:"reason"`
}
