// ABOUTME: Reduced sample-rate ratios and block-size arithmetic
// ABOUTME: Expresses output/input rates as a coprime fraction p/q
package resample

import "fmt"

// Ratio is output_rate/input_rate reduced to coprime integers.
// Any input block that is a multiple of Q yields exactly block*P/Q output samples.
type Ratio struct {
	P int
	Q int
}

// NewRatio reduces outputRate/inputRate via greatest common divisor
func NewRatio(inputRate, outputRate int) (Ratio, error) {
	if inputRate <= 0 {
		return Ratio{}, &ConfigError{Field: "input_rate", Reason: fmt.Sprintf("must be positive, got %d", inputRate)}
	}
	if outputRate <= 0 {
		return Ratio{}, &ConfigError{Field: "output_rate", Reason: fmt.Sprintf("must be positive, got %d", outputRate)}
	}
	g := gcd(inputRate, outputRate)
	return Ratio{P: outputRate / g, Q: inputRate / g}, nil
}

// Aligned reports whether n input samples convert without a fractional remainder
func (r Ratio) Aligned(n int) bool {
	return n > 0 && r.Q > 0 && n%r.Q == 0
}

// Out returns the output length for an aligned input length
func (r Ratio) Out(n int) int {
	return n / r.Q * r.P
}

// Unity reports whether the conversion is a pass-through
func (r Ratio) Unity() bool {
	return r.P == r.Q
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.P, r.Q)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// nearestMultiple returns the multiple of q closest to n, never below q
func nearestMultiple(n, q int) int {
	if n <= q {
		return q
	}
	lo := n / q * q
	hi := lo + q
	if n-lo <= hi-n {
		return lo
	}
	return hi
}
