// ABOUTME: Tests for the SPSC ring buffer
// ABOUTME: Tests wraparound, capacity limits and concurrent ordering
package resample

import (
	"sync"
	"testing"
)

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(5)

	if n := rb.Write([]float32{1, 2, 3, 4}); n != 4 {
		t.Fatalf("expected 4 written, got %d", n)
	}
	out := make([]float32, 3)
	if n := rb.Read(out); n != 3 {
		t.Fatalf("expected 3 read, got %d", n)
	}
	if n := rb.Write([]float32{5, 6, 7, 8}); n != 4 {
		t.Fatalf("expected 4 written, got %d", n)
	}
	if rb.Free() != 0 || rb.Available() != 5 {
		t.Fatalf("expected full buffer, got free=%d available=%d", rb.Free(), rb.Available())
	}

	out = make([]float32, 5)
	rb.Read(out)
	want := []float32{4, 5, 6, 7, 8}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: expected %f, got %f", i, want[i], out[i])
		}
	}
}

func TestRingBufferNeverOverwrites(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]float32{1, 2, 3})

	if n := rb.Write([]float32{4, 5, 6}); n != 1 {
		t.Fatalf("expected 1 written into full buffer, got %d", n)
	}

	out := make([]float32, 8)
	n := rb.Read(out)
	if n != 4 {
		t.Fatalf("expected 4 read, got %d", n)
	}
	for i := 0; i < n; i++ {
		if out[i] != float32(i+1) {
			t.Errorf("index %d: expected %d, got %f", i, i+1, out[i])
		}
	}
}

func TestRingBufferConcurrentOrder(t *testing.T) {
	rb := NewRingBuffer(64)
	const total = 100000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		next := 0
		chunk := make([]float32, 17)
		for next < total {
			n := 0
			for n < len(chunk) && next+n < total {
				chunk[n] = float32(next + n)
				n++
			}
			next += rb.Write(chunk[:n])
		}
	}()

	got := 0
	buf := make([]float32, 23)
	for got < total {
		n := rb.Read(buf)
		for i := 0; i < n; i++ {
			if buf[i] != float32(got) {
				t.Fatalf("expected %d, got %f", got, buf[i])
			}
			got++
		}
	}
	wg.Wait()
}
