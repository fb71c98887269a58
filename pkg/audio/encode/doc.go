// ABOUTME: Audio encoder package for encoding samples to wire formats
// ABOUTME: Provides Encoder interface and implementations for PCM, Opus
// Package encode provides audio encoders for the caption stream.
//
// Supports: PCM (16-bit and 24-bit), Opus (20ms packets, length-prefixed)
//
// All encoders accept float samples in [-1, 1].
//
// Example:
//
//	encoder, err := encode.New(audio.Format{Codec: "opus", SampleRate: 16000, Channels: 1})
//	data, err := encoder.Encode(block.Samples)
package encode
