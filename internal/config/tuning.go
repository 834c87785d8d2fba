package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GodBoii/voicepipe/internal/audio"
)

// Tuning carries the signal-processing knobs. Every value has an
// empirically chosen default; a YAML file can override any subset.
type Tuning struct {
	TargetRate         int     `yaml:"target_sample_rate"`
	PeakTarget         float64 `yaml:"peak_target"`
	MinSamples         int     `yaml:"min_samples"` // shorter trimmed results are rejected as "no speech"
	FrameMs            int     `yaml:"frame_ms"`
	NoiseWindowSec     float64 `yaml:"noise_window_sec"`
	NoiseMultiplier    float64 `yaml:"noise_multiplier"`
	MinEnergyThreshold float64 `yaml:"min_energy_threshold"`
	MaxEnergyThreshold float64 `yaml:"max_energy_threshold"`
	ConsonantRatio     float64 `yaml:"consonant_ratio"`
	MinZCR             float64 `yaml:"min_zcr"`
	PreRollSec         float64 `yaml:"pre_roll_sec"`
	PostRollSec        float64 `yaml:"post_roll_sec"`
}

// DefaultTuning returns the stock parameters: 16 kHz output, 0.95
// peak, 125 ms minimum utterance, and the trim defaults.
func DefaultTuning() Tuning {
	trim := audio.DefaultTrimConfig()
	return Tuning{
		TargetRate:         16000,
		PeakTarget:         audio.DefaultPeakTarget,
		MinSamples:         2000,
		FrameMs:            trim.FrameMs,
		NoiseWindowSec:     trim.NoiseWindowSec,
		NoiseMultiplier:    trim.NoiseMultiplier,
		MinEnergyThreshold: trim.MinEnergyThreshold,
		MaxEnergyThreshold: trim.MaxEnergyThreshold,
		ConsonantRatio:     trim.ConsonantRatio,
		MinZCR:             trim.MinZCR,
		PreRollSec:         trim.PreRollSec,
		PostRollSec:        trim.PostRollSec,
	}
}

// LoadTuning reads YAML overrides on top of the defaults. An empty
// path returns the defaults unchanged.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse tuning file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects values outside their sane ranges.
func (t Tuning) Validate() error {
	if t.TargetRate <= 0 {
		return fmt.Errorf("target_sample_rate must be positive, got %d", t.TargetRate)
	}
	if t.PeakTarget <= 0 || t.PeakTarget > 1 {
		return fmt.Errorf("peak_target must be in (0, 1], got %g", t.PeakTarget)
	}
	if t.MinSamples < 0 {
		return fmt.Errorf("min_samples must not be negative, got %d", t.MinSamples)
	}
	if t.FrameMs <= 0 {
		return fmt.Errorf("frame_ms must be positive, got %d", t.FrameMs)
	}
	if t.MinEnergyThreshold > t.MaxEnergyThreshold {
		return fmt.Errorf("min_energy_threshold %g exceeds max_energy_threshold %g",
			t.MinEnergyThreshold, t.MaxEnergyThreshold)
	}
	if t.PreRollSec < 0 || t.PostRollSec < 0 {
		return fmt.Errorf("pre/post roll must not be negative")
	}
	return nil
}

// TrimConfig maps the tuning values onto the trim stage configuration.
func (t Tuning) TrimConfig() audio.TrimConfig {
	return audio.TrimConfig{
		FrameMs:            t.FrameMs,
		NoiseWindowSec:     t.NoiseWindowSec,
		NoiseMultiplier:    t.NoiseMultiplier,
		MinEnergyThreshold: t.MinEnergyThreshold,
		MaxEnergyThreshold: t.MaxEnergyThreshold,
		ConsonantRatio:     t.ConsonantRatio,
		MinZCR:             t.MinZCR,
		PreRollSec:         t.PreRollSec,
		PostRollSec:        t.PostRollSec,
	}
}
