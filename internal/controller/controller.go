// Package controller drives the capture-process-transcribe cycle. It
// owns the Idle/Recording/Processing state machine, gates recording on
// model readiness, and fans results out to the attached UI adapters.
package controller

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/archive"
	"github.com/GodBoii/voicepipe/internal/audio"
	"github.com/GodBoii/voicepipe/internal/config"
	"github.com/GodBoii/voicepipe/internal/observability"
	"github.com/GodBoii/voicepipe/internal/stt"
)

// ErrDestroyed is returned for operations after Destroy.
var ErrDestroyed = errors.New("controller destroyed")

// errNoSpeech marks a pipeline run that left nothing worth
// transcribing. A benign outcome, not a failure.
var errNoSpeech = errors.New("no speech detected")

// State is the controller's position in the recording cycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// UI receives user-facing output from the controller. Implementations
// must not block; slow sinks should buffer internally.
type UI interface {
	OnStateChange(state State)
	OnTranscript(text string)
	OnNotification(message string, level Level)
	OnDownloadProgress(percent int)
}

// RecordingSession abstracts the capture session.
type RecordingSession interface {
	Start(onAutoStop func()) (string, error)
	Stop() (audio.Buffer, error)
	Abort()
}

// TranscriptionClient abstracts the engine host.
type TranscriptionClient interface {
	Check() error
	Load() error
	Transcribe(samples []float32) error
	Events() <-chan stt.Event
	Terminate()
}

// Controller coordinates one recording cycle at a time.
type Controller struct {
	cfg     *config.Config
	tuning  config.Tuning
	session RecordingSession
	client  TranscriptionClient
	store   *archive.Store
	ui      UI
	logger  zerolog.Logger

	mu         sync.Mutex
	state      State
	modelReady bool
	destroyed  bool
	sessionID  string
	metrics    *observability.Metrics

	done chan struct{}
}

// NewController wires the capture session, engine host, archive and UI
// together. store may be nil to disable archiving.
func NewController(
	cfg *config.Config,
	tuning config.Tuning,
	session RecordingSession,
	client TranscriptionClient,
	store *archive.Store,
	ui UI,
) *Controller {
	observability.SetControllerState(int(StateIdle))
	return &Controller{
		cfg:     cfg,
		tuning:  tuning,
		session: session,
		client:  client,
		store:   store,
		ui:      ui,
		logger:  observability.WithComponent("controller"),
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// Run consumes engine host events until Destroy. Call it in its own
// goroutine.
func (c *Controller) Run() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.client.Events():
			if !ok {
				c.handleEngineGone()
				return
			}
			c.handleEvent(ev)
		}
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ModelReady reports whether the speech model is loaded.
func (c *Controller) ModelReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelReady
}

// CheckModel asks the engine host whether the model is on disk. The
// answer feeds the auto-download decision.
func (c *Controller) CheckModel() {
	if err := c.client.Check(); err != nil {
		c.logger.Warn().Err(err).Msg("Model check failed")
	}
}

// StartRecording moves Idle to Recording. Before the model is ready it
// kicks a load and tells the user to wait.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Str("state", state.String()).Msg("Start ignored")
		return nil
	}
	if !c.modelReady {
		c.mu.Unlock()
		if err := c.client.Load(); err != nil {
			c.logger.Warn().Err(err).Msg("Model load kick failed")
		}
		c.ui.OnNotification("Speech model is still loading", LevelInfo)
		return nil
	}

	id, err := c.session.Start(c.autoStop)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("Capture start failed")
		c.ui.OnNotification("Could not start recording", LevelWarning)
		return err
	}

	c.state = StateRecording
	c.sessionID = id
	c.metrics = observability.NewSessionMetrics(id)
	c.metrics.RecordRecordingStart()
	c.mu.Unlock()

	observability.SetControllerState(int(StateRecording))
	c.ui.OnStateChange(StateRecording)
	c.logger.Info().Str("session_id", id).Msg("Recording")
	return nil
}

// autoStop is handed to the capture device; it funnels silence-trig
// stops through the same path as manual ones.
func (c *Controller) autoStop() {
	c.logger.Info().Msg("Auto-stop after trailing silence")
	c.StopRecording()
}

// StopRecording moves Recording to Processing, runs the pipeline and
// hands the utterance to the engine host. Safe to call from the
// auto-stop watchdog and the user at the same time; only the first
// caller acts.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	if c.destroyed || c.state != StateRecording {
		c.mu.Unlock()
		return nil
	}
	c.state = StateProcessing
	metrics := c.metrics
	sessionID := c.sessionID
	c.mu.Unlock()

	metrics.RecordRecordingEnd()
	observability.SetControllerState(int(StateProcessing))
	c.ui.OnStateChange(StateProcessing)

	raw, err := c.session.Stop()
	if err != nil {
		c.logger.Error().Err(err).Msg("Capture stop failed")
		metrics.RecordError("capture", "controller")
		c.ui.OnNotification("Recording failed", LevelWarning)
		c.toIdle()
		return err
	}

	utterance, err := c.process(raw, metrics)
	if errors.Is(err, errNoSpeech) {
		metrics.RecordTranscriptionEnd("no_speech")
		c.ui.OnNotification("No speech detected", LevelWarning)
		c.toIdle()
		return nil
	}
	if err != nil {
		metrics.RecordTranscriptionEnd("error")
		c.ui.OnNotification("Processing failed", LevelError)
		c.toIdle()
		return err
	}

	if path, err := c.store.WriteUtterance(sessionID, utterance); err != nil {
		// Archiving is best effort, the transcription still runs.
		c.logger.Warn().Err(err).Msg("Archive write failed")
		metrics.RecordError("archive", "controller")
	} else if path != "" {
		c.logger.Debug().Str("path", path).Msg("Utterance archived")
	}

	metrics.RecordTranscriptionStart()
	if err := c.client.Transcribe(utterance.Samples); err != nil {
		c.logger.Error().Err(err).Msg("Transcription submit failed")
		metrics.RecordTranscriptionEnd("error")
		metrics.RecordError("submit", "controller")
		c.ui.OnNotification("Transcription failed", LevelError)
		c.toIdle()
		return err
	}
	return nil
}

// process runs resample, normalize and trim. It returns errNoSpeech
// when nothing worth transcribing remains.
func (c *Controller) process(raw audio.Buffer, metrics *observability.Metrics) (out audio.Buffer, err error) {
	// A malformed capture must not take the controller down.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("Pipeline fault")
			metrics.RecordError("pipeline", "controller")
			out, err = audio.Buffer{}, fmt.Errorf("pipeline fault: %v", r)
		}
	}()

	if raw.Empty() {
		return audio.Buffer{}, errNoSpeech
	}

	start := time.Now()
	buf := audio.Resample(raw, c.tuning.TargetRate)
	buf = audio.Normalize(buf, c.tuning.PeakTarget)
	buf = audio.TrimSilence(buf, c.tuning.TrimConfig())
	elapsed := time.Since(start)

	metrics.RecordPipelineDuration(elapsed)
	c.logger.Debug().
		Dur("elapsed", elapsed).
		Float64("in_seconds", raw.Duration().Seconds()).
		Float64("out_seconds", buf.Duration().Seconds()).
		Msg("Pipeline finished")

	if buf.Empty() || len(buf.Samples) < c.tuning.MinSamples {
		return audio.Buffer{}, errNoSpeech
	}

	observability.RecordAudioSeconds("submitted", buf.Duration().Seconds())
	return buf, nil
}

// Toggle starts or stops depending on state. While processing it does
// nothing.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateIdle:
		return c.StartRecording()
	case StateRecording:
		return c.StopRecording()
	default:
		c.logger.Debug().Msg("Toggle ignored while processing")
		return nil
	}
}

// Destroy tears the controller down: any active recording is discarded,
// the engine host is terminated and late events are ignored.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	wasRecording := c.state == StateRecording
	c.state = StateIdle
	c.mu.Unlock()

	close(c.done)

	if wasRecording {
		c.session.Abort()
	}
	c.client.Terminate()

	observability.SetControllerState(int(StateIdle))
	c.logger.Info().Msg("Controller destroyed")
}

func (c *Controller) toIdle() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()

	observability.SetControllerState(int(StateIdle))
	c.ui.OnStateChange(StateIdle)
}

func (c *Controller) handleEvent(ev stt.Event) {
	switch ev.Type {
	case stt.EvtStatus:
		c.handleModelStatus(ev.Downloaded)
	case stt.EvtDownload:
		c.ui.OnDownloadProgress(ev.Progress)
	case stt.EvtReady:
		c.mu.Lock()
		first := !c.modelReady
		c.modelReady = true
		c.mu.Unlock()
		if first {
			c.logger.Info().Msg("Model ready")
			c.ui.OnNotification("Speech model ready", LevelSuccess)
		}
	case stt.EvtResult:
		c.handleResult(ev.Text)
	case stt.EvtError:
		c.handleError(ev.Message)
	default:
		c.logger.Warn().Str("event", string(ev.Type)).Msg("Unknown event")
	}
}

func (c *Controller) handleModelStatus(downloaded bool) {
	if downloaded || c.cfg.AutoDownload {
		if err := c.client.Load(); err != nil {
			c.logger.Warn().Err(err).Msg("Model load kick failed")
		}
		return
	}
	c.ui.OnNotification("Speech model is missing and auto-download is off", LevelWarning)
}

func (c *Controller) handleResult(text string) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	processing := c.state == StateProcessing
	metrics := c.metrics
	c.mu.Unlock()

	if !processing {
		c.logger.Debug().Msg("Result outside processing, dropping")
		return
	}

	if text == "" {
		// The engine heard nothing in what the trimmer let through.
		if metrics != nil {
			metrics.RecordTranscriptionEnd("no_speech")
		}
		c.ui.OnNotification("No speech detected", LevelWarning)
		c.toIdle()
		return
	}

	if metrics != nil {
		metrics.RecordTranscriptionEnd("success")
	}
	c.logger.Info().Int("chars", len(text)).Msg("Transcript delivered")
	c.ui.OnTranscript(text)
	c.toIdle()
}

// handleEngineGone fires when the engine host's event stream closes
// underneath the controller. An in-flight request is failed so the
// controller never stays parked in Processing.
func (c *Controller) handleEngineGone() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	processing := c.state == StateProcessing
	metrics := c.metrics
	c.mu.Unlock()

	if !processing {
		return
	}

	c.logger.Error().Msg("Engine host went away mid-request")
	if metrics != nil {
		metrics.RecordTranscriptionEnd("error")
		metrics.RecordError("engine_gone", "stt")
	}
	c.ui.OnNotification("Transcription engine stopped unexpectedly", LevelError)
	c.toIdle()
}

func (c *Controller) handleError(message string) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	processing := c.state == StateProcessing
	metrics := c.metrics
	c.mu.Unlock()

	if metrics != nil {
		metrics.RecordError("engine", "stt")
		if processing {
			metrics.RecordTranscriptionEnd("error")
		}
	}

	if message == "" {
		message = "Something went wrong"
	}
	c.ui.OnNotification(message, LevelError)

	if processing {
		c.toIdle()
	}
}
