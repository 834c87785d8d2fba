package stt

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/GodBoii/voicepipe/internal/audio"
)

// VoskEngine recognizes speech with a Vosk acoustic model.
type VoskEngine struct {
	mu         sync.Mutex
	model      *vosk.VoskModel
	recognizer *vosk.VoskRecognizer
}

type voskResult struct {
	Text string `json:"text"`
}

// NewVoskEngine loads a Vosk model directory. The recognizer is fixed
// at 16kHz to match the processing pipeline output.
func NewVoskEngine(modelPath string) (*VoskEngine, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("vosk model not found: %s", modelPath)
	}

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vosk model: %w", err)
	}

	rec, err := vosk.NewRecognizer(model, 16000.0)
	if err != nil {
		model.Free()
		return nil, err
	}

	return &VoskEngine{
		model:      model,
		recognizer: rec,
	}, nil
}

// Name returns the engine name.
func (v *VoskEngine) Name() string {
	return "vosk"
}

// Transcribe feeds the samples through the recognizer. Vosk takes
// little-endian PCM16, so samples are clipped and converted first.
func (v *VoskEngine) Transcribe(samples []float32) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.recognizer == nil {
		return "", fmt.Errorf("vosk recognizer is closed")
	}

	v.recognizer.AcceptWaveform(audio.FloatToPCM16(samples))
	resultJSON := v.recognizer.FinalResult()

	// Reset so the recognizer is reusable for the next utterance.
	v.recognizer.Reset()

	var result voskResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", fmt.Errorf("failed to parse vosk result: %w", err)
	}
	return result.Text, nil
}

// Close releases the recognizer and the model.
func (v *VoskEngine) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.recognizer != nil {
		v.recognizer.Free()
		v.recognizer = nil
	}
	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
	return nil
}
