package stt

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/GodBoii/voicepipe/internal/config"
	"github.com/GodBoii/voicepipe/internal/models"
	"github.com/GodBoii/voicepipe/internal/resilience"
)

// stubEngine is a controllable Engine for exercising the host loop.
type stubEngine struct {
	mu        sync.Mutex
	calls     int
	result    string
	err       error
	delay     time.Duration
	panicking bool
	closed    bool
}

func (s *stubEngine) Transcribe(samples []float32) (string, error) {
	s.mu.Lock()
	s.calls++
	delay, panicking := s.delay, s.panicking
	result, err := s.result, s.err
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if panicking {
		panic("engine blew up")
	}
	return result, err
}

func (s *stubEngine) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubEngine) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func testConfig() *config.Config {
	return &config.Config{
		Engine:            "whisper",
		ModelID:           "whisper-tiny-q5",
		Language:          "en",
		EngineMaxFailures: 3,
		EngineCooldownSec: 60,
	}
}

// newTestClient builds a started client whose model file is already on
// disk, so Load never touches the network.
func newTestClient(t *testing.T, eng *stubEngine) *Client {
	t.Helper()

	mgr, err := models.NewManager(t.TempDir(), resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2.0,
	})
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	info, ok := models.GetModel("whisper-tiny-q5")
	if !ok {
		t.Fatal("whisper-tiny-q5 missing from registry")
	}
	if err := os.WriteFile(mgr.Path(info), []byte("model"), 0644); err != nil {
		t.Fatalf("Failed to seed model file: %v", err)
	}

	c := NewClient(testConfig(), mgr)
	c.factory = func(modelPath string) (Engine, error) {
		return eng, nil
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(c.Terminate)
	return c
}

// waitEvent consumes events until one of the wanted type arrives.
func waitEvent(t *testing.T, c *Client, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("Event channel closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %s event", want)
		}
	}
}

func loadModel(t *testing.T, c *Client) {
	t.Helper()
	if err := c.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	waitEvent(t, c, EvtReady)
}

func TestClient_CheckReportsDownloaded(t *testing.T) {
	c := newTestClient(t, &stubEngine{})

	if err := c.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	ev := waitEvent(t, c, EvtStatus)
	if !ev.Downloaded {
		t.Error("Expected model to be reported as downloaded")
	}
}

func TestClient_CheckReportsMissing(t *testing.T) {
	mgr, err := models.NewManager(t.TempDir(), resilience.DefaultRetryConfig())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	c := NewClient(testConfig(), mgr)
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(c.Terminate)

	if err := c.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	ev := waitEvent(t, c, EvtStatus)
	if ev.Downloaded {
		t.Error("Expected model to be reported as missing")
	}
}

func TestClient_LoadEmitsReady(t *testing.T) {
	c := newTestClient(t, &stubEngine{})

	if c.IsLoaded() {
		t.Fatal("Client should not be loaded before Load")
	}

	loadModel(t, c)
	if !c.IsLoaded() {
		t.Error("Expected IsLoaded after ready event")
	}

	// Loading again is idempotent and re-announces readiness.
	loadModel(t, c)
}

func TestClient_TranscribeBeforeLoad(t *testing.T) {
	c := newTestClient(t, &stubEngine{})

	err := c.Transcribe([]float32{0.1, 0.2})
	if !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}
}

func TestClient_TranscribeSuccess(t *testing.T) {
	eng := &stubEngine{result: "hello world"}
	c := newTestClient(t, eng)
	loadModel(t, c)

	if err := c.Transcribe(make([]float32, 4000)); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	ev := waitEvent(t, c, EvtResult)
	if ev.Text != "hello world" {
		t.Errorf("Expected 'hello world', got %q", ev.Text)
	}
	if got := eng.callCount(); got != 1 {
		t.Errorf("Expected 1 engine call, got %d", got)
	}
}

func TestClient_TranscribeEmptyResult(t *testing.T) {
	c := newTestClient(t, &stubEngine{result: ""})
	loadModel(t, c)

	if err := c.Transcribe(make([]float32, 4000)); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	// Silence is a result, not an error.
	ev := waitEvent(t, c, EvtResult)
	if ev.Text != "" {
		t.Errorf("Expected empty text, got %q", ev.Text)
	}
}

func TestClient_SingleOutstandingTranscription(t *testing.T) {
	eng := &stubEngine{result: "first", delay: 100 * time.Millisecond}
	c := newTestClient(t, eng)
	loadModel(t, c)

	if err := c.Transcribe(make([]float32, 4000)); err != nil {
		t.Fatalf("First Transcribe failed: %v", err)
	}
	if err := c.Transcribe(make([]float32, 4000)); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for overlapping submission, got %v", err)
	}

	waitEvent(t, c, EvtResult)

	// Slot is free again once the result is out.
	if err := c.Transcribe(make([]float32, 4000)); err != nil {
		t.Errorf("Transcribe after result failed: %v", err)
	}
	waitEvent(t, c, EvtResult)
}

func TestClient_EngineErrorSurfacedVerbatim(t *testing.T) {
	eng := &stubEngine{err: errors.New("ggml tensor mismatch at layer 7")}
	c := newTestClient(t, eng)
	loadModel(t, c)

	if err := c.Transcribe(make([]float32, 4000)); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	ev := waitEvent(t, c, EvtError)
	if ev.Message != "ggml tensor mismatch at layer 7" {
		t.Errorf("Expected the engine's own message, got %q", ev.Message)
	}
}

func TestClient_EnginePanicRecovered(t *testing.T) {
	eng := &stubEngine{panicking: true}
	c := newTestClient(t, eng)
	loadModel(t, c)

	if err := c.Transcribe(make([]float32, 4000)); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	waitEvent(t, c, EvtError)

	// The host survived and keeps serving.
	eng.mu.Lock()
	eng.panicking = false
	eng.result = "recovered"
	eng.mu.Unlock()

	if err := c.Transcribe(make([]float32, 4000)); err != nil {
		t.Fatalf("Transcribe after panic failed: %v", err)
	}
	ev := waitEvent(t, c, EvtResult)
	if ev.Text != "recovered" {
		t.Errorf("Expected 'recovered', got %q", ev.Text)
	}
}

func TestClient_BreakerOpensAfterRepeatedFaults(t *testing.T) {
	eng := &stubEngine{err: errors.New("engine fault")}
	c := newTestClient(t, eng)
	loadModel(t, c)

	for i := 0; i < 3; i++ {
		if err := c.Transcribe(make([]float32, 4000)); err != nil {
			t.Fatalf("Transcribe %d failed: %v", i, err)
		}
		waitEvent(t, c, EvtError)
	}

	if got := c.breaker.State(); got != resilience.BreakerOpen {
		t.Fatalf("Expected open breaker after 3 faults, got %v", got)
	}

	// With the breaker open the engine is no longer invoked.
	if err := c.Transcribe(make([]float32, 4000)); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	waitEvent(t, c, EvtError)
	if got := eng.callCount(); got != 3 {
		t.Errorf("Expected 3 engine calls, got %d", got)
	}
}

func TestClient_Terminate(t *testing.T) {
	eng := &stubEngine{}
	c := newTestClient(t, eng)
	loadModel(t, c)

	c.Terminate()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for engine host to exit")
	}

	if !eng.isClosed() {
		t.Error("Expected engine to be closed")
	}
	if err := c.Transcribe(make([]float32, 4000)); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after terminate, got %v", err)
	}

	// The event stream ends.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for event channel to close")
		}
	}
}

func TestNewEngine_UnknownEngine(t *testing.T) {
	if _, err := NewEngine("decoder-9000", "/tmp/model", "en"); err == nil {
		t.Error("Expected error for unknown engine")
	}
}
