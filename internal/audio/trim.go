package audio

// TrimConfig carries the tuning knobs for silence trimming. The
// defaults were chosen empirically against desktop microphone input;
// they are parameters, not correctness requirements.
type TrimConfig struct {
	FrameMs            int     // analysis window length, ms
	NoiseWindowSec     float64 // leading span used for the noise estimate
	NoiseMultiplier    float64 // energy threshold = noise RMS * this
	MinEnergyThreshold float64 // clamp floor for the energy threshold
	MaxEnergyThreshold float64 // clamp ceiling for the energy threshold
	ConsonantRatio     float64 // consonant threshold = energy threshold * this
	MinZCR             float64 // zero-crossing floor for the consonant rescue
	PreRollSec         float64 // audio kept before the first speech frame
	PostRollSec        float64 // audio kept after the last speech frame
}

// DefaultTrimConfig returns the stock trimming parameters.
func DefaultTrimConfig() TrimConfig {
	return TrimConfig{
		FrameMs:            15,
		NoiseWindowSec:     0.25,
		NoiseMultiplier:    2.5,
		MinEnergyThreshold: 0.0035,
		MaxEnergyThreshold: 0.08,
		ConsonantRatio:     0.6,
		MinZCR:             0.12,
		PreRollSec:         0.3,
		PostRollSec:        0.5,
	}
}

// speechSpan marks the first and last analysis frame classified as
// speech; it never escapes TrimSilence.
type speechSpan struct {
	first, last int
	found       bool
}

// TrimSilence drops leading and trailing non-speech audio. Frames pass
// as speech on energy alone, or on moderate energy combined with a
// high zero-crossing rate, which keeps low-energy fricatives that pure
// energy gating would clip. The kept region is padded by the
// configured pre/post roll so word onsets and tails survive.
//
// An input with no speech frames at all returns an empty buffer; the
// caller treats that as "no speech detected", not as an error. If the
// padded region degenerates, the input is returned unchanged.
func TrimSilence(b Buffer, cfg TrimConfig) Buffer {
	n := len(b.Samples)
	if n == 0 || b.Rate <= 0 {
		return b
	}

	frameLen := b.Rate * cfg.FrameMs / 1000
	if frameLen < 1 {
		frameLen = 1
	}

	noiseLen := int(cfg.NoiseWindowSec * float64(b.Rate))
	if noiseLen > n {
		noiseLen = n
	}
	noiseRMS := RMS(b.Samples[:noiseLen])

	energyThreshold := clamp(noiseRMS*cfg.NoiseMultiplier, cfg.MinEnergyThreshold, cfg.MaxEnergyThreshold)
	consonantThreshold := energyThreshold * cfg.ConsonantRatio

	span := speechSpan{}
	for start, idx := 0, 0; start < n; start, idx = start+frameLen, idx+1 {
		end := start + frameLen
		if end > n {
			end = n // last frame may be short
		}
		frame := b.Samples[start:end]
		rms := RMS(frame)
		if rms >= energyThreshold || (rms >= consonantThreshold && ZeroCrossingRate(frame) >= cfg.MinZCR) {
			if !span.found {
				span.first = idx
				span.found = true
			}
			span.last = idx
		}
	}

	if !span.found {
		return Buffer{Rate: b.Rate}
	}

	startSample := span.first*frameLen - int(cfg.PreRollSec*float64(b.Rate))
	if startSample < 0 {
		startSample = 0
	}
	endSample := (span.last+1)*frameLen + int(cfg.PostRollSec*float64(b.Rate))
	if endSample > n {
		endSample = n
	}
	if endSample <= startSample {
		return b
	}

	out := make([]float32, endSample-startSample)
	copy(out, b.Samples[startSample:endSample])
	return Buffer{Samples: out, Rate: b.Rate}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
