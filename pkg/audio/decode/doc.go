// ABOUTME: Audio decoder package for the caption stream codecs
// ABOUTME: Provides Decoder interface and implementations for PCM, Opus
// Package decode provides audio decoders for the caption stream.
//
// Supports: PCM (16-bit and 24-bit), Opus (length-prefixed packets)
//
// All decoders output float samples in [-1, 1].
//
// Example:
//
//	decoder, err := decode.New(format)
//	samples, err := decoder.Decode(frame.Payload)
package decode
