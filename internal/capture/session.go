package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/audio"
	"github.com/GodBoii/voicepipe/internal/observability"
)

// Session tracks one recording run on a Device and flattens the result
// for the processing pipeline.
type Session struct {
	device Device
	logger zerolog.Logger

	mu        sync.Mutex
	recording bool
	id        string
	startedAt time.Time
}

// NewSession creates a session wrapper around a capture device.
func NewSession(device Device) *Session {
	return &Session{
		device: device,
		logger: observability.WithComponent("capture"),
	}
}

// Start begins a capture run and returns its session ID.
func (s *Session) Start(onAutoStop func()) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		return "", fmt.Errorf("session already recording")
	}

	if err := s.device.StartCapture(onAutoStop); err != nil {
		return "", fmt.Errorf("failed to start capture: %w", err)
	}

	s.recording = true
	s.id = observability.NewSessionID()
	s.startedAt = time.Now()

	s.logger.Info().Str("session_id", s.id).Msg("Recording started")
	return s.id, nil
}

// Stop ends the run and returns the flattened capture. Stopping an idle
// session returns an empty buffer.
func (s *Session) Stop() (audio.Buffer, error) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return audio.Buffer{}, nil
	}
	s.recording = false
	id := s.id
	startedAt := s.startedAt
	s.mu.Unlock()

	result, err := s.device.StopCapture()
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to stop capture: %w", err)
	}

	buf := audio.Flatten(result.Chunks, result.SampleRate)
	observability.RecordAudioSeconds("captured", buf.Duration().Seconds())

	s.logger.Info().
		Str("session_id", id).
		Dur("elapsed", time.Since(startedAt)).
		Float64("audio_seconds", buf.Duration().Seconds()).
		Msg("Recording stopped")
	return buf, nil
}

// Abort ends the run and discards anything captured.
func (s *Session) Abort() {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return
	}
	s.recording = false
	id := s.id
	s.mu.Unlock()

	if _, err := s.device.StopCapture(); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("Capture stop failed during abort")
	}
	s.logger.Info().Str("session_id", id).Msg("Recording aborted")
}

// ID returns the current or most recent session ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// IsRecording reports whether a capture run is active.
func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}
