// ABOUTME: FFT overlap-add block converter shared by both resampling strategies
// ABOUTME: Converts exactly n input samples into exactly m output samples per call
package resample

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// cutoffMargin keeps the anti-aliasing cutoff below the lower Nyquist frequency
const cutoffMargin = 0.92

// fftBlock converts fixed-size blocks between rates whose ratio is m/n.
//
// Each input block is zero-padded to 2n, filtered in the frequency domain
// and re-synthesised on a 2m grid. Both grids share the same bin spacing
// (fs_in/2n == fs_out/2m), so resampling is a copy of the low bins. The tail
// of every block overlaps the head of the next one. All buffers are
// allocated up front; process never allocates.
type fftBlock struct {
	in, out int

	fwd *fourier.FFT
	inv *fourier.FFT

	filter  []complex128 // n+1 bins of the lowpass kernel
	spec    []complex128 // n+1 bins of the current input block
	outSpec []complex128 // m+1 bins handed to the inverse transform

	x       []float64 // 2n time-domain input
	y       []float64 // 2m time-domain output
	overlap []float64 // m samples carried into the next block

	bins  int
	scale float64
	unity bool
}

func newFFTBlock(in, out int) *fftBlock {
	b := &fftBlock{
		in:    in,
		out:   out,
		unity: in == out,
	}
	if b.unity {
		return b
	}

	b.fwd = fourier.NewFFT(2 * in)
	b.inv = fourier.NewFFT(2 * out)
	b.spec = make([]complex128, in+1)
	b.outSpec = make([]complex128, out+1)
	b.x = make([]float64, 2*in)
	b.y = make([]float64, 2*out)
	b.overlap = make([]float64, out)
	b.bins = min(in, out) + 1
	b.scale = 1 / float64(2*in)

	cutoff := 0.5 * cutoffMargin
	if out < in {
		cutoff *= float64(out) / float64(in)
	}
	kernel := make([]float64, 2*in)
	lowpass(kernel[:in], cutoff)
	b.filter = b.fwd.Coefficients(nil, kernel)

	return b
}

// lowpass fills h with a Blackman-windowed sinc with unity DC gain.
// cutoff is in cycles per input sample.
func lowpass(h []float64, cutoff float64) {
	n := len(h)
	if n == 1 {
		h[0] = 1
		return
	}
	center := float64(n-1) / 2
	var sum float64
	for i := range h {
		t := float64(i) - center
		v := 2 * cutoff
		if t != 0 {
			v = math.Sin(2*math.Pi*cutoff*t) / (math.Pi * t)
		}
		phase := 2 * math.Pi * float64(i) / float64(n-1)
		w := 0.42 - 0.5*math.Cos(phase) + 0.08*math.Cos(2*phase)
		h[i] = v * w
		sum += h[i]
	}
	if sum == 0 {
		return
	}
	for i := range h {
		h[i] /= sum
	}
}

// process converts src (len n) into dst (len m)
func (b *fftBlock) process(src, dst []float32) {
	if b.unity {
		copy(dst, src)
		return
	}

	for i, s := range src {
		b.x[i] = float64(s)
	}
	for i := b.in; i < len(b.x); i++ {
		b.x[i] = 0
	}

	b.fwd.Coefficients(b.spec, b.x)
	for k := 0; k < b.bins; k++ {
		b.outSpec[k] = b.spec[k] * b.filter[k]
	}
	for k := b.bins; k < len(b.outSpec); k++ {
		b.outSpec[k] = 0
	}
	b.inv.Sequence(b.y, b.outSpec)

	for i := 0; i < b.out; i++ {
		dst[i] = float32(b.y[i]*b.scale + b.overlap[i])
		b.overlap[i] = b.y[b.out+i] * b.scale
	}
}

func (b *fftBlock) reset() {
	for i := range b.overlap {
		b.overlap[i] = 0
	}
}
