package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/config"
	"github.com/GodBoii/voicepipe/internal/models"
	"github.com/GodBoii/voicepipe/internal/observability"
	"github.com/GodBoii/voicepipe/internal/resilience"
)

var (
	// ErrBusy is returned when a transcription is already outstanding.
	ErrBusy = errors.New("transcription already in progress")

	// ErrNotLoaded is returned when no model is loaded yet.
	ErrNotLoaded = errors.New("model not loaded")

	// ErrClosed is returned after Terminate.
	ErrClosed = errors.New("stt client is closed")
)

// EngineFactory builds a recognition engine from a model on disk.
// Replaceable in tests.
type EngineFactory func(modelPath string) (Engine, error)

// Client owns the engine host goroutine. Commands go in through the
// public methods, results come back on Events. At most one
// transcription is outstanding at a time.
type Client struct {
	engine   models.Engine
	modelID  string
	language string
	manager  *models.Manager
	breaker  *resilience.Breaker
	factory  EngineFactory
	logger   zerolog.Logger

	cmds   chan Command
	events chan Event

	mu      sync.RWMutex
	started bool
	loaded  bool
	pending bool
	closed  bool

	// rec is only touched by the run goroutine.
	rec Engine

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates an engine host for the configured engine and model.
func NewClient(cfg *config.Config, manager *models.Manager) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	engine := models.Engine(cfg.Engine)
	language := cfg.Language

	c := &Client{
		engine:   engine,
		modelID:  cfg.ModelID,
		language: language,
		manager:  manager,
		breaker: resilience.NewBreaker(
			"engine",
			cfg.EngineMaxFailures,
			time.Duration(cfg.EngineCooldownSec)*time.Second,
		),
		logger: observability.WithComponent("stt"),
		cmds:   make(chan Command, 100),
		events: make(chan Event, 100),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.factory = func(modelPath string) (Engine, error) {
		return NewEngine(engine, modelPath, language)
	}
	return c
}

// Start launches the engine host goroutine.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return fmt.Errorf("stt client already started")
	}
	c.started = true

	go c.run()
	return nil
}

// Events returns the event stream from the engine host. The channel is
// closed when the host exits.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the engine host goroutine has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// IsLoaded reports whether a model is loaded and ready to transcribe.
func (c *Client) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Check asks the engine host whether the configured model is on disk.
// Answered with an EvtStatus event.
func (c *Client) Check() error {
	return c.send(Command{Type: CmdCheck})
}

// Load asks the engine host to fetch the model if needed and load it.
// Progress arrives as EvtDownload events, completion as EvtReady.
// Loading an already loaded model re-emits EvtReady.
func (c *Client) Load() error {
	return c.send(Command{Type: CmdLoad})
}

// Transcribe submits one utterance. The outcome arrives as EvtResult or
// EvtError. Returns ErrBusy while a previous submission is outstanding.
func (c *Client) Transcribe(samples []float32) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.loaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	if c.pending {
		c.mu.Unlock()
		return ErrBusy
	}
	c.pending = true
	c.mu.Unlock()

	if err := c.send(Command{Type: CmdTranscribe, Audio: samples}); err != nil {
		c.clearPending()
		return err
	}
	return nil
}

// Terminate shuts the engine host down and releases the model. Safe to
// call more than once. Done reports when the host has exited.
func (c *Client) Terminate() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	select {
	case c.cmds <- Command{Type: CmdTerminate}:
	default:
	}
	c.cancel()
}

func (c *Client) send(cmd Command) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed && cmd.Type != CmdTerminate {
		return ErrClosed
	}

	select {
	case c.cmds <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn().Str("event", string(ev.Type)).Msg("Event channel full, dropping event")
	}
}

func (c *Client) clearPending() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

func (c *Client) run() {
	defer close(c.done)
	defer close(c.events)
	defer c.shutdownEngine()

	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.cmds:
			switch cmd.Type {
			case CmdCheck:
				c.handleCheck()
			case CmdLoad:
				c.handleLoad()
			case CmdTranscribe:
				c.handleTranscribe(cmd.Audio)
			case CmdTerminate:
				return
			default:
				c.logger.Warn().Str("command", string(cmd.Type)).Msg("Unknown command")
			}
		}
	}
}

func (c *Client) handleCheck() {
	info, err := models.ResolveModel(c.modelID, c.engine)
	if err != nil {
		c.emit(Event{Type: EvtError, Message: err.Error()})
		return
	}
	c.emit(Event{Type: EvtStatus, Downloaded: c.manager.IsDownloaded(info)})
}

func (c *Client) handleLoad() {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		c.emit(Event{Type: EvtReady})
		return
	}

	info, err := models.ResolveModel(c.modelID, c.engine)
	if err != nil {
		c.emit(Event{Type: EvtError, Message: err.Error()})
		return
	}

	progress := make(chan models.Progress, 100)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		lastPct := -1
		for p := range progress {
			// One event per whole percent, not per 32KB chunk.
			pct := p.Percent()
			if pct == lastPct && !p.Done {
				continue
			}
			lastPct = pct
			observability.SetDownloadProgress(pct)
			c.emit(Event{Type: EvtDownload, Progress: pct})
		}
	}()

	err = c.manager.EnsureLocal(c.ctx, info, progress)
	close(progress)
	<-drained
	if err != nil {
		c.logger.Error().Err(err).Str("model_id", info.ID).Msg("Model download failed")
		c.emit(Event{Type: EvtError, Message: "failed to fetch model"})
		return
	}

	modelPath := c.manager.Path(info)
	var rec Engine
	err = c.breaker.Call(func() error {
		var cerr error
		rec, cerr = c.factory(modelPath)
		return cerr
	})
	observability.SetEngineBreakerState(int(c.breaker.State()))
	if err != nil {
		c.logger.Error().Err(err).Str("model_id", info.ID).Msg("Engine initialization failed")
		c.emit(Event{Type: EvtError, Message: "failed to load model"})
		return
	}

	c.rec = rec
	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
	observability.SetModelLoaded(true)

	c.logger.Info().
		Str("engine", rec.Name()).
		Str("model_id", info.ID).
		Msg("Model loaded")
	c.emit(Event{Type: EvtReady})
}

func (c *Client) handleTranscribe(audio []float32) {
	if c.rec == nil {
		c.clearPending()
		c.emit(Event{Type: EvtError, Message: "model not loaded"})
		return
	}

	start := time.Now()
	var text string
	err := c.breaker.Call(func() (ferr error) {
		// An engine fault must not take the host down.
		defer func() {
			if r := recover(); r != nil {
				ferr = fmt.Errorf("engine panic: %v", r)
			}
		}()
		var terr error
		text, terr = c.rec.Transcribe(audio)
		return terr
	})
	observability.SetEngineBreakerState(int(c.breaker.State()))

	c.clearPending()

	if err != nil {
		c.logger.Error().
			Err(err).
			Dur("elapsed", time.Since(start)).
			Msg("Transcription failed")
		if errors.Is(err, resilience.ErrBreakerOpen) {
			c.emit(Event{Type: EvtError, Message: "speech engine disabled after repeated faults, retrying soon"})
			return
		}
		// The engine's message goes to the UI as-is; the controller
		// treats it as non-fatal.
		c.emit(Event{Type: EvtError, Message: err.Error()})
		return
	}

	c.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("samples", len(audio)).
		Msg("Transcription finished")
	c.emit(Event{Type: EvtResult, Text: text})
}

func (c *Client) shutdownEngine() {
	c.mu.Lock()
	c.loaded = false
	c.closed = true
	c.mu.Unlock()

	if c.rec != nil {
		if err := c.rec.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Engine close failed")
		}
		c.rec = nil
	}
	observability.SetModelLoaded(false)
	c.logger.Info().Msg("Engine host stopped")
}
