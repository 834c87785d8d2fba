package stt

import (
	"fmt"

	"github.com/GodBoii/voicepipe/internal/models"
)

// Engine transcribes 16kHz mono float32 audio. Implementations are not
// required to be safe for concurrent use; the engine host serializes
// calls.
type Engine interface {
	// Transcribe recognizes one utterance. An empty string with a nil
	// error means the engine heard no speech.
	Transcribe(samples []float32) (string, error)

	// Close releases the model.
	Close() error

	// Name returns the engine name for logging.
	Name() string
}

// NewEngine constructs the recognition engine for a model on disk.
func NewEngine(engine models.Engine, modelPath, language string) (Engine, error) {
	switch engine {
	case models.EngineWhisper:
		return NewWhisperEngine(modelPath, language)
	case models.EngineVosk:
		return NewVoskEngine(modelPath)
	default:
		return nil, fmt.Errorf("unknown engine: %s", engine)
	}
}
