package stt

import (
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperEngine recognizes speech with whisper.cpp.
type WhisperEngine struct {
	mu       sync.Mutex
	model    whisper.Model
	language string
}

// NewWhisperEngine loads a ggml model file. language may be empty for
// auto-detection.
func NewWhisperEngine(modelPath, language string) (*WhisperEngine, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	return &WhisperEngine{
		model:    model,
		language: language,
	}, nil
}

// Name returns the engine name.
func (w *WhisperEngine) Name() string {
	return "whisper"
}

// Transcribe runs the model over the samples and joins the resulting
// segments into one string.
func (w *WhisperEngine) Transcribe(samples []float32) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return "", fmt.Errorf("whisper model is closed")
	}

	ctx, err := w.model.NewContext()
	if err != nil {
		return "", err
	}

	// Transcription only, never translation.
	ctx.SetTranslate(false)
	if w.language != "" {
		if err := ctx.SetLanguage(w.language); err != nil {
			return "", err
		}
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", err
	}

	var result strings.Builder
	for {
		segment, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		result.WriteString(segment.Text)
	}

	return strings.TrimSpace(result.String()), nil
}

// Close releases the model.
func (w *WhisperEngine) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}
