package audio

import (
	"math"
	"testing"
)

// burstBuffer builds silence + tone burst + silence at the given rate.
func burstBuffer(rate int, leadSec, burstSec, tailSec, amp float64, freq float64) Buffer {
	samples := append([]float32{}, genSilence(int(leadSec*float64(rate)))...)
	samples = append(samples, genSine(freq, rate, burstSec, amp)...)
	samples = append(samples, genSilence(int(tailSec*float64(rate)))...)
	return Buffer{Samples: samples, Rate: rate}
}

func TestTrimSilence_AllSilence(t *testing.T) {
	in := Buffer{Samples: genSilence(16000), Rate: 16000}
	out := TrimSilence(in, DefaultTrimConfig())

	if !out.Empty() {
		t.Errorf("Expected empty buffer for pure silence, got %d samples", len(out.Samples))
	}
	if out.Rate != 16000 {
		t.Errorf("Expected rate 16000, got %d", out.Rate)
	}
}

func TestTrimSilence_BelowThreshold(t *testing.T) {
	// A hum well under the minimum energy threshold with a low ZCR.
	in := Buffer{Samples: genSine(440, 16000, 1.0, 0.001), Rate: 16000}
	out := TrimSilence(in, DefaultTrimConfig())

	if !out.Empty() {
		t.Errorf("Expected empty buffer for sub-threshold signal, got %d samples", len(out.Samples))
	}
}

func TestTrimSilence_KeepsBurstWithPadding(t *testing.T) {
	cfg := DefaultTrimConfig()
	rate := 16000
	in := burstBuffer(rate, 1.0, 0.5, 1.0, 0.3, 440)
	out := TrimSilence(in, cfg)

	if out.Empty() {
		t.Fatal("Expected non-empty result for audible burst")
	}

	frame := rate * cfg.FrameMs / 1000
	want := int((0.5 + cfg.PreRollSec + cfg.PostRollSec) * float64(rate))
	if len(out.Samples) < want-2*frame || len(out.Samples) > want+2*frame {
		t.Errorf("Expected length near %d (burst plus padding), got %d", want, len(out.Samples))
	}

	var peak float64
	for _, s := range out.Samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak < 0.29 {
		t.Errorf("Expected burst peak near 0.3 inside kept region, got %.4f", peak)
	}
}

func TestTrimSilence_ConsonantRescue(t *testing.T) {
	// Alternating-sign signal between the consonant and energy
	// thresholds: energy gating alone would drop it, the ZCR clause
	// keeps it.
	rate := 16000
	lead := genSilence(rate / 2)
	burst := make([]float32, rate/4)
	for i := range burst {
		if i%2 == 0 {
			burst[i] = 0.003
		} else {
			burst[i] = -0.003
		}
	}
	tail := genSilence(rate / 2)

	samples := append(append(append([]float32{}, lead...), burst...), tail...)
	out := TrimSilence(Buffer{Samples: samples, Rate: rate}, DefaultTrimConfig())

	if out.Empty() {
		t.Fatal("Expected fricative-like burst to survive trimming")
	}
}

func TestTrimSilence_AdaptiveFloorClamped(t *testing.T) {
	// A loud low-frequency hum raises the noise estimate to the clamp
	// ceiling; the hum itself must still be trimmed while a real burst
	// above the ceiling survives.
	rate := 16000
	hum := genSine(60, rate, 1.0, 0.07)
	burst := genSine(440, rate, 0.5, 0.3)
	tailHum := genSine(60, rate, 1.0, 0.07)

	samples := append(append(append([]float32{}, hum...), burst...), tailHum...)
	out := TrimSilence(Buffer{Samples: samples, Rate: rate}, DefaultTrimConfig())

	if out.Empty() {
		t.Fatal("Expected burst above clamped threshold to survive")
	}

	cfg := DefaultTrimConfig()
	frame := rate * cfg.FrameMs / 1000
	want := int((0.5 + cfg.PreRollSec + cfg.PostRollSec) * float64(rate))
	if len(out.Samples) < want-2*frame || len(out.Samples) > want+2*frame {
		t.Errorf("Expected hum trimmed to length near %d, got %d", want, len(out.Samples))
	}
}

func TestTrimSilence_AllSpeech(t *testing.T) {
	in := Buffer{Samples: genSine(440, 16000, 1.0, 0.5), Rate: 16000}
	out := TrimSilence(in, DefaultTrimConfig())

	if len(out.Samples) != len(in.Samples) {
		t.Errorf("Expected full length %d for all-speech input, got %d", len(in.Samples), len(out.Samples))
	}
}

func TestTrimSilence_CustomPadding(t *testing.T) {
	cfg := DefaultTrimConfig()
	cfg.PreRollSec = 0
	cfg.PostRollSec = 0

	rate := 16000
	in := burstBuffer(rate, 1.0, 0.5, 1.0, 0.3, 440)
	out := TrimSilence(in, cfg)

	frame := rate * cfg.FrameMs / 1000
	want := rate / 2
	if len(out.Samples) < want-2*frame || len(out.Samples) > want+2*frame {
		t.Errorf("Expected length near %d without padding, got %d", want, len(out.Samples))
	}
}

func TestTrimSilence_Empty(t *testing.T) {
	out := TrimSilence(Buffer{Rate: 16000}, DefaultTrimConfig())
	if !out.Empty() {
		t.Errorf("Expected empty output for empty input, got %d samples", len(out.Samples))
	}
}
