// ABOUTME: Binary audio frame codec for the caption stream
// ABOUTME: Frames are [type u8][seq u64][offset u64][payload], big-endian
package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// AudioFrameType is the binary message type for audio frames
	AudioFrameType = 1

	// FrameHeaderSize is the size of the binary frame header (type + seq + offset)
	FrameHeaderSize = 1 + 8 + 8
)

// AudioFrame is one encoded block of the 16 kHz stream.
// Offset is the stream position of the first sample in Payload.
type AudioFrame struct {
	Seq     uint64
	Offset  uint64
	Payload []byte
}

// AppendFrame appends the wire form of f to dst
func AppendFrame(dst []byte, f AudioFrame) []byte {
	dst = append(dst, AudioFrameType)
	dst = binary.BigEndian.AppendUint64(dst, f.Seq)
	dst = binary.BigEndian.AppendUint64(dst, f.Offset)
	return append(dst, f.Payload...)
}

// ParseFrame decodes a binary message. Payload aliases data.
func ParseFrame(data []byte) (AudioFrame, error) {
	if len(data) < FrameHeaderSize {
		return AudioFrame{}, fmt.Errorf("invalid binary message: %d bytes is shorter than header", len(data))
	}
	if data[0] != AudioFrameType {
		return AudioFrame{}, fmt.Errorf("unknown binary message type: %d", data[0])
	}
	return AudioFrame{
		Seq:     binary.BigEndian.Uint64(data[1:9]),
		Offset:  binary.BigEndian.Uint64(data[9:17]),
		Payload: data[FrameHeaderSize:],
	}, nil
}
