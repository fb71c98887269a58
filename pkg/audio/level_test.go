// ABOUTME: Tests for level measurement
// ABOUTME: Tests RMS and dBFS conversions
package audio

import (
	"math"
	"testing"
)

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", []float32{0, 0, 0}, 0},
		{"constant", []float32{0.5, -0.5, 0.5, -0.5}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestDBFS(t *testing.T) {
	if got := DBFS(1); got != 0 {
		t.Errorf("expected 0 dBFS at full scale, got %f", got)
	}
	if got := DBFS(0.5); math.Abs(got+6.0206) > 1e-3 {
		t.Errorf("expected about -6 dBFS, got %f", got)
	}
	if got := DBFS(0); got != SilenceFloor {
		t.Errorf("expected silence floor, got %f", got)
	}
}
