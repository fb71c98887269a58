// ABOUTME: Raw PCM to float conversion for backend buffers
// ABOUTME: Converts packed device samples in place without allocating
package audio

import (
	"encoding/binary"
	"math"
)

// DecodeInto converts packed little-endian samples in src to floats in dst.
// It returns the number of samples written, bounded by len(dst).
func DecodeInto(dst []float32, src []byte, format SampleFormat) int {
	size := format.BytesPerSample()
	if size == 0 {
		return 0
	}
	n := len(src) / size
	if n > len(dst) {
		n = len(dst)
	}

	switch format {
	case FormatS16:
		for i := 0; i < n; i++ {
			dst[i] = SampleFromInt16(int16(binary.LittleEndian.Uint16(src[i*2:])))
		}
	case FormatS24:
		for i := 0; i < n; i++ {
			dst[i] = SampleFrom24Bit([3]byte{src[i*3], src[i*3+1], src[i*3+2]})
		}
	case FormatS32:
		for i := 0; i < n; i++ {
			dst[i] = SampleFromInt32(int32(binary.LittleEndian.Uint32(src[i*4:])))
		}
	case FormatF32:
		for i := 0; i < n; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	}
	return n
}

// EncodeInt16Into writes samples as 16-bit little-endian PCM into dst.
// It returns the number of bytes written, bounded by len(dst).
func EncodeInt16Into(dst []byte, samples []float32) int {
	n := len(samples)
	if n*2 > len(dst) {
		n = len(dst) / 2
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(SampleToInt16(samples[i])))
	}
	return n * 2
}
