// Package archive persists processed utterances as WAV files so
// recognition results can be compared against what was actually heard.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/audio"
	"github.com/GodBoii/voicepipe/internal/observability"
)

// Store writes utterances into a directory, one file per session.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates the archive directory if needed. An empty dir
// disables archiving; the returned nil store is safe to use.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: observability.WithComponent("archive"),
	}, nil
}

// WriteUtterance persists one utterance as 16-bit mono PCM and returns
// the file path. Empty buffers and nil stores write nothing.
func (s *Store) WriteUtterance(sessionID string, buf audio.Buffer) (string, error) {
	if s == nil || buf.Empty() {
		return "", nil
	}

	name := fmt.Sprintf("%s-%s.wav", time.Now().Format("20060102-150405"), sessionID)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, buf.Rate, 16, 1, 1)
	intBuf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  buf.Rate,
		},
		Data:           audio.FloatToInt16(buf.Samples),
		SourceBitDepth: 16,
	}

	if err := enc.Write(intBuf); err != nil {
		enc.Close()
		return "", fmt.Errorf("failed to write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize wav: %w", err)
	}

	s.logger.Debug().
		Str("session_id", sessionID).
		Str("path", path).
		Int("samples", len(buf.Samples)).
		Msg("Utterance archived")
	return path, nil
}
