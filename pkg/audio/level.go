// ABOUTME: Signal level measurement helpers
// ABOUTME: Computes RMS and dBFS for meters and silence detection
package audio

import "math"

// SilenceFloor is the dBFS reported for digital silence
const SilenceFloor = -120.0

// RMS returns the root mean square of samples
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts a linear level to decibels relative to full scale
func DBFS(level float64) float64 {
	if level <= 0 {
		return SilenceFloor
	}
	db := 20 * math.Log10(level)
	if db < SilenceFloor {
		return SilenceFloor
	}
	return db
}
