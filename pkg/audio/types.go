// ABOUTME: Audio type definitions
// ABOUTME: Defines frame batches, resampled blocks and sample conversions
package audio

import (
	"errors"
	"fmt"
	"time"
)

const (
	// TargetSampleRate is the canonical rate handed to transcription
	TargetSampleRate = 16000

	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// SampleFormat is the sample encoding delivered by the audio backend
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

// String returns the short name of the sample format
func (f SampleFormat) String() string {
	switch f {
	case FormatS16:
		return "s16"
	case FormatS24:
		return "s24"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the packed size of one sample, or 0 if unknown
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32, FormatF32:
		return 4
	default:
		return 0
	}
}

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// FrameBatch is one delivery of interleaved samples from the audio backend.
// Samples holds Frames*Channels values normalised to [-1, 1].
type FrameBatch struct {
	SampleRate int
	Channels   int
	Frames     int
	Format     SampleFormat
	Samples    []float32
}

// ErrNoChannels is returned by Validate for batches without channels
var ErrNoChannels = errors.New("audio: frame batch has no channels")

// Validate rejects malformed batches before they reach the mixer
func (b FrameBatch) Validate() error {
	if b.Channels < 1 {
		return ErrNoChannels
	}
	if b.Frames < 0 || len(b.Samples) < b.Frames*b.Channels {
		return fmt.Errorf("audio: frame batch holds %d samples, need %d frames x %d channels",
			len(b.Samples), b.Frames, b.Channels)
	}
	return nil
}

// Duration returns the wall-clock length of the batch
func (b FrameBatch) Duration() time.Duration {
	return SamplesDuration(b.Frames, b.SampleRate)
}

// Block is an ordered chunk of mono samples at the target rate.
// Seq increases by one per block and Offset is the index of the first
// sample in the session's output stream, so consecutive blocks satisfy
// next.Offset == prev.Offset + len(prev.Samples).
type Block struct {
	Seq        uint64
	Offset     uint64
	SampleRate int
	Samples    []float32
}

// Duration returns the wall-clock length of the block
func (b Block) Duration() time.Duration {
	return SamplesDuration(len(b.Samples), b.SampleRate)
}

// SamplesDuration converts a sample count at rate to a duration
func SamplesDuration(samples, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(samples) * int64(time.Second) / int64(rate))
}

// SampleToInt16 converts a float sample to int16 with clamping
func SampleToInt16(sample float32) int16 {
	v := sample * 32767.0
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SampleTo24Bit converts a float sample to 24-bit packed bytes (little-endian) with clamping
func SampleTo24Bit(sample float32) [3]byte {
	f := float64(sample) * Max24Bit
	if f > Max24Bit {
		f = Max24Bit
	}
	if f < Min24Bit {
		f = Min24Bit
	}
	v := int32(f)
	return [3]byte{byte(v), byte(v >> 8), byte(v >> 16)}
}

// SampleFromInt16 converts an int16 sample to float
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// SampleFrom24Bit converts 24-bit packed bytes (little-endian) to float
func SampleFrom24Bit(b [3]byte) float32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return float32(val) / 8388608.0
}

// SampleFromInt32 converts a full-scale int32 sample to float
func SampleFromInt32(sample int32) float32 {
	return float32(float64(sample) / 2147483648.0)
}
