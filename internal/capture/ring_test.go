package capture

import (
	"testing"
)

func TestRing_WriteRead(t *testing.T) {
	ring := NewRing(16)

	in := []float32{0.1, 0.2, 0.3, 0.4, 0.5}
	if n := ring.Write(in); n != len(in) {
		t.Fatalf("Expected to write %d samples, wrote %d", len(in), n)
	}
	if got := ring.Available(); got != len(in) {
		t.Errorf("Expected %d available, got %d", len(in), got)
	}

	out := make([]float32, len(in))
	if n := ring.Read(out); n != len(in) {
		t.Fatalf("Expected to read %d samples, read %d", len(in), n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}
	if !ring.IsEmpty() {
		t.Error("Expected ring to be empty after full read")
	}
}

func TestRing_WrapAround(t *testing.T) {
	ring := NewRing(8) // capacity 7

	first := []float32{1, 2, 3, 4, 5}
	ring.Write(first)
	out := make([]float32, 5)
	ring.Read(out)

	// The next write crosses the end of the backing slice.
	second := []float32{6, 7, 8, 9, 10, 11}
	if n := ring.Write(second); n != len(second) {
		t.Fatalf("Expected to write %d samples, wrote %d", len(second), n)
	}

	out = make([]float32, len(second))
	if n := ring.Read(out); n != len(second) {
		t.Fatalf("Expected to read %d samples, read %d", len(second), n)
	}
	for i := range second {
		if out[i] != second[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, second[i], out[i])
		}
	}
}

func TestRing_DropsWhenFull(t *testing.T) {
	ring := NewRing(5) // capacity 4

	in := []float32{1, 2, 3, 4, 5, 6}
	if n := ring.Write(in); n != 4 {
		t.Errorf("Expected to write 4 samples, wrote %d", n)
	}
	if got := ring.Dropped(); got != 2 {
		t.Errorf("Expected 2 dropped samples, got %d", got)
	}
	if !ring.IsFull() {
		t.Error("Expected ring to be full")
	}

	// The first four samples survive intact.
	out := make([]float32, 4)
	ring.Read(out)
	for i, want := range []float32{1, 2, 3, 4} {
		if out[i] != want {
			t.Errorf("Sample %d: expected %f, got %f", i, want, out[i])
		}
	}
}

func TestRing_AvailableAndSpace(t *testing.T) {
	ring := NewRing(10)

	for _, fill := range []int{0, 3, 6, 9} {
		ring.Clear()
		ring.Write(make([]float32, fill))

		if got := ring.Available(); got != fill {
			t.Errorf("Fill %d: expected %d available, got %d", fill, fill, got)
		}
		if sum := ring.Available() + ring.Space(); sum != 9 {
			t.Errorf("Fill %d: expected available+space to be 9, got %d", fill, sum)
		}
	}
}

func TestRing_Clear(t *testing.T) {
	ring := NewRing(4)
	ring.Write(make([]float32, 10))

	ring.Clear()
	if !ring.IsEmpty() {
		t.Error("Expected ring to be empty after clear")
	}
	if got := ring.Dropped(); got != 0 {
		t.Errorf("Expected dropped count reset, got %d", got)
	}
}
