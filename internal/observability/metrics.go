package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recording metrics
	recordingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicepipe_recordings_total",
		Help: "Total number of recordings started",
	})

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicepipe_recording_duration_seconds",
		Help:    "Duration of recordings in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// Pipeline metrics
	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicepipe_pipeline_duration_seconds",
		Help:    "Resample/normalize/trim processing time in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	audioSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepipe_audio_seconds_total",
		Help: "Seconds of audio handled per stage",
	}, []string{"stage"}) // stage: "captured" or "submitted"

	// Transcription metrics
	transcriptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepipe_transcriptions_total",
		Help: "Total number of finished transcription attempts",
	}, []string{"status"}) // status: "success", "error" or "no_speech"

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicepipe_transcription_latency_seconds",
		Help:    "Engine processing latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Controller state (0=idle, 1=recording, 2=processing)
	controllerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicepipe_controller_state",
		Help: "Controller state (0=idle, 1=recording, 2=processing)",
	})

	// Model metrics
	modelLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicepipe_model_loaded",
		Help: "Whether the speech model is loaded (0 or 1)",
	})

	modelDownloadProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicepipe_model_download_progress",
		Help: "Model download progress in percent",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepipe_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Engine breaker state (0=closed, 1=open, 2=half-open)
	engineBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicepipe_engine_breaker_state",
		Help: "Engine circuit breaker state (0=closed, 1=open, 2=half-open)",
	})
)

// Metrics tracks timings for one recording session
type Metrics struct {
	sessionID          string
	recordingStart     time.Time
	transcriptionStart time.Time
	mu                 sync.Mutex
}

// NewSessionMetrics creates a metrics tracker for a recording session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{sessionID: sessionID}
}

// RecordRecordingStart records the start of a recording
func (m *Metrics) RecordRecordingStart() {
	m.mu.Lock()
	m.recordingStart = time.Now()
	m.mu.Unlock()
	recordingsTotal.Inc()
}

// RecordRecordingEnd records the end of a recording
func (m *Metrics) RecordRecordingEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.recordingStart.IsZero() {
		recordingDuration.Observe(time.Since(m.recordingStart).Seconds())
		m.recordingStart = time.Time{}
	}
}

// RecordPipelineDuration records one DSP pass
func (m *Metrics) RecordPipelineDuration(d time.Duration) {
	pipelineDuration.Observe(d.Seconds())
}

// RecordTranscriptionStart marks the hand-off to the engine
func (m *Metrics) RecordTranscriptionStart() {
	m.mu.Lock()
	m.transcriptionStart = time.Now()
	m.mu.Unlock()
}

// RecordTranscriptionEnd finishes the attempt with the given status:
// "success", "error" or "no_speech"
func (m *Metrics) RecordTranscriptionEnd(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.transcriptionStart.IsZero() {
		transcriptionLatency.Observe(time.Since(m.transcriptionStart).Seconds())
		m.transcriptionStart = time.Time{}
	}
	transcriptionsTotal.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioSeconds adds handled audio time for a stage
func RecordAudioSeconds(stage string, seconds float64) {
	audioSeconds.WithLabelValues(stage).Add(seconds)
}

// SetControllerState publishes the controller state gauge
func SetControllerState(state int) {
	controllerState.Set(float64(state))
}

// SetModelLoaded publishes model residency
func SetModelLoaded(loaded bool) {
	if loaded {
		modelLoaded.Set(1)
	} else {
		modelLoaded.Set(0)
	}
}

// SetDownloadProgress publishes model download progress in percent
func SetDownloadProgress(percent int) {
	modelDownloadProgress.Set(float64(percent))
}

// SetEngineBreakerState publishes the engine breaker state
func SetEngineBreakerState(state int) {
	engineBreakerState.Set(float64(state))
}
