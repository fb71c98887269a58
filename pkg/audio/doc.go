// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines frame batches, output blocks and sample conversion functions
// Package audio provides the shared types of the capture pipeline.
//
// Audio enters as a FrameBatch of interleaved float samples at the device
// rate and leaves as a sequence of mono Blocks at TargetSampleRate:
//   - FrameBatch: one backend delivery (rate, channels, frame count, samples)
//   - Block: an ordered chunk of 16 kHz mono samples with Seq and Offset
//
// It also converts between packed PCM and float samples:
//
//	dst := make([]float32, frames*channels)
//	n := audio.DecodeInto(dst, raw, audio.FormatS16)
//
//	pcm := make([]byte, len(block.Samples)*2)
//	audio.EncodeInt16Into(pcm, block.Samples)
package audio
