// Package models manages speech recognition model files: a registry of
// known models and a manager that downloads and stores them locally.
package models

import "fmt"

// Engine identifies a recognition engine.
type Engine string

const (
	EngineWhisper Engine = "whisper"
	EngineVosk    Engine = "vosk"
)

// ModelInfo describes one downloadable model.
type ModelInfo struct {
	ID       string // Unique identifier: "whisper-base-q5"
	Engine   Engine // Engine the model belongs to
	Name     string // Display name: "Base Q5"
	Filename string // File (whisper) or directory (vosk) name on disk
	URL      string // Download URL
	Size     int64  // Approximate size in bytes, used for progress
	IsZip    bool   // Whether the download needs unpacking
}

// Registry holds all known models.
var Registry = []ModelInfo{
	// Whisper, quantized (recommended for CPU)
	{
		ID:       "whisper-tiny-q5",
		Engine:   EngineWhisper,
		Name:     "Tiny Q5",
		Filename: "ggml-tiny-q5_1.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny-q5_1.bin",
		Size:     32 * 1024 * 1024,
	},
	{
		ID:       "whisper-base-q5",
		Engine:   EngineWhisper,
		Name:     "Base Q5",
		Filename: "ggml-base-q5_1.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base-q5_1.bin",
		Size:     60 * 1024 * 1024,
	},
	{
		ID:       "whisper-small-q5",
		Engine:   EngineWhisper,
		Name:     "Small Q5",
		Filename: "ggml-small-q5_1.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small-q5_1.bin",
		Size:     190 * 1024 * 1024,
	},
	// Whisper, English-only variants (smaller vocab, better for en)
	{
		ID:       "whisper-tiny-en-q5",
		Engine:   EngineWhisper,
		Name:     "Tiny English Q5",
		Filename: "ggml-tiny.en-q5_1.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en-q5_1.bin",
		Size:     32 * 1024 * 1024,
	},
	{
		ID:       "whisper-base-en-q5",
		Engine:   EngineWhisper,
		Name:     "Base English Q5",
		Filename: "ggml-base.en-q5_1.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en-q5_1.bin",
		Size:     60 * 1024 * 1024,
	},
	// Whisper, full precision
	{
		ID:       "whisper-base",
		Engine:   EngineWhisper,
		Name:     "Base",
		Filename: "ggml-base.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		Size:     142 * 1024 * 1024,
	},
	{
		ID:       "whisper-small",
		Engine:   EngineWhisper,
		Name:     "Small",
		Filename: "ggml-small.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		Size:     466 * 1024 * 1024,
	},
	{
		ID:       "whisper-turbo",
		Engine:   EngineWhisper,
		Name:     "Large v3 Turbo Q5",
		Filename: "ggml-large-v3-turbo-q5_0.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo-q5_0.bin",
		Size:     574 * 1024 * 1024,
	},
	// Vosk
	{
		ID:       "vosk-en-small",
		Engine:   EngineVosk,
		Name:     "English Small",
		Filename: "vosk-model-small-en-us-0.15",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-small-en-us-0.15.zip",
		Size:     40 * 1024 * 1024,
		IsZip:    true,
	},
	{
		ID:       "vosk-en",
		Engine:   EngineVosk,
		Name:     "English Large",
		Filename: "vosk-model-en-us-0.22",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-en-us-0.22.zip",
		Size:     1800 * 1024 * 1024,
		IsZip:    true,
	},
}

// DefaultModelID is the model used when none is configured.
func DefaultModelID() string {
	return "whisper-base-q5"
}

// GetModel returns the registry entry for the given ID.
func GetModel(id string) (ModelInfo, bool) {
	for _, m := range Registry {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// GetModelsByEngine returns all registry models for an engine.
func GetModelsByEngine(engine Engine) []ModelInfo {
	var result []ModelInfo
	for _, m := range Registry {
		if m.Engine == engine {
			result = append(result, m)
		}
	}
	return result
}

// ResolveModel looks up a model ID and verifies it belongs to the
// requested engine.
func ResolveModel(id string, engine Engine) (ModelInfo, error) {
	info, ok := GetModel(id)
	if !ok {
		return ModelInfo{}, fmt.Errorf("unknown model %q", id)
	}
	if info.Engine != engine {
		var ids []string
		for _, m := range GetModelsByEngine(engine) {
			ids = append(ids, m.ID)
		}
		return ModelInfo{}, fmt.Errorf("model %q belongs to engine %q, not %q (available: %v)", id, info.Engine, engine, ids)
	}
	return info, nil
}
