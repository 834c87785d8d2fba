package audio

import (
	"math"
	"testing"
)

func TestFloatToPCM16_RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1.0, -1.0, 0.25, -0.125}

	out := PCM16ToFloat(FloatToPCM16(in))
	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/32767.0 {
			t.Errorf("Sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}
}

func TestFloatToPCM16_ClipsOutOfRange(t *testing.T) {
	out := PCM16ToFloat(FloatToPCM16([]float32{1.5, -1.5}))

	if math.Abs(float64(out[0]-1.0)) > 1.0/32767.0 {
		t.Errorf("Expected positive overdrive clipped to 1.0, got %f", out[0])
	}
	if math.Abs(float64(out[1]+1.0)) > 1.0/32767.0 {
		t.Errorf("Expected negative overdrive clipped to -1.0, got %f", out[1])
	}
}

func TestFloatToInt16(t *testing.T) {
	out := FloatToInt16([]float32{0, 0.5, -1.0, 1.0})

	expected := []int{0, 16383, -32767, 32767}
	for i, want := range expected {
		if out[i] != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, out[i])
		}
	}
}

func TestPCM16ToFloat_OddTrailingByte(t *testing.T) {
	out := PCM16ToFloat([]byte{0x00, 0x40, 0x7F})
	if len(out) != 1 {
		t.Errorf("Expected 1 sample from 3 bytes, got %d", len(out))
	}
}

func TestFloatToPCM16_Empty(t *testing.T) {
	if got := FloatToPCM16(nil); len(got) != 0 {
		t.Errorf("Expected no bytes, got %d", len(got))
	}
	if got := PCM16ToFloat(nil); len(got) != 0 {
		t.Errorf("Expected no samples, got %d", len(got))
	}
}
