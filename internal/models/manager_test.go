package models

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GodBoii/voicepipe/internal/resilience"
)

func fastRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
		Jitter:         0,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(t.TempDir(), fastRetryConfig())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return mgr
}

func TestEnsureLocal_DownloadsFile(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 96*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	mgr := newTestManager(t)
	info := ModelInfo{
		ID:       "test-model",
		Engine:   EngineWhisper,
		Filename: "ggml-test.bin",
		URL:      srv.URL,
		Size:     int64(len(payload)),
	}

	if mgr.IsDownloaded(info) {
		t.Fatal("Model should not be downloaded yet")
	}

	progress := make(chan Progress, 100)
	if err := mgr.EnsureLocal(context.Background(), info, progress); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	close(progress)

	if !mgr.IsDownloaded(info) {
		t.Error("Expected model to be downloaded")
	}

	data, err := os.ReadFile(mgr.Path(info))
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if len(data) != len(payload) {
		t.Errorf("Expected %d bytes on disk, got %d", len(payload), len(data))
	}

	var last Progress
	count := 0
	for p := range progress {
		last = p
		count++
	}
	if count == 0 {
		t.Fatal("Expected progress updates")
	}
	if !last.Done {
		t.Error("Expected final progress to be Done")
	}
	if last.Percent() != 100 {
		t.Errorf("Expected 100 percent, got %d", last.Percent())
	}
}

func TestEnsureLocal_AlreadyDownloaded(t *testing.T) {
	mgr := newTestManager(t)
	info := ModelInfo{
		ID:       "test-model",
		Engine:   EngineWhisper,
		Filename: "ggml-test.bin",
		URL:      "http://127.0.0.1:0/never-contacted",
		Size:     4,
	}

	if err := os.WriteFile(mgr.Path(info), []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to seed model file: %v", err)
	}

	progress := make(chan Progress, 1)
	if err := mgr.EnsureLocal(context.Background(), info, progress); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}

	p := <-progress
	if !p.Done {
		t.Error("Expected immediate Done progress for cached model")
	}
}

func TestEnsureLocal_RetriesTransientFailures(t *testing.T) {
	payload := []byte("model-bytes")
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	mgr := newTestManager(t)
	info := ModelInfo{
		ID:       "test-model",
		Engine:   EngineWhisper,
		Filename: "ggml-test.bin",
		URL:      srv.URL,
		Size:     int64(len(payload)),
	}

	if err := mgr.EnsureLocal(context.Background(), info, nil); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
	if !mgr.IsDownloaded(info) {
		t.Error("Expected model to be downloaded after retries")
	}
}

func TestEnsureLocal_NonRetryableStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	mgr := newTestManager(t)
	info := ModelInfo{
		ID:       "test-model",
		Engine:   EngineWhisper,
		Filename: "ggml-test.bin",
		URL:      srv.URL,
		Size:     10,
	}

	if err := mgr.EnsureLocal(context.Background(), info, nil); err == nil {
		t.Fatal("Expected error for 404 response")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("Expected 1 attempt for non-retryable status, got %d", got)
	}
}

func TestEnsureLocal_ContextCancelled(t *testing.T) {
	mgr := newTestManager(t)
	info := ModelInfo{
		ID:       "test-model",
		Engine:   EngineWhisper,
		Filename: "ggml-test.bin",
		URL:      "http://127.0.0.1:0/never-contacted",
		Size:     10,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mgr.EnsureLocal(ctx, info, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func zipArchive(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to add zip entry: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("Failed to write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestEnsureLocal_UnpacksZip(t *testing.T) {
	archive := zipArchive(t, map[string][]byte{
		"vosk-model-test/README":       []byte("test model"),
		"vosk-model-test/am/final.mdl": []byte("acoustic"),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	mgr := newTestManager(t)
	info := ModelInfo{
		ID:       "vosk-test",
		Engine:   EngineVosk,
		Filename: "vosk-model-test",
		URL:      srv.URL,
		Size:     int64(len(archive)),
		IsZip:    true,
	}

	if err := mgr.EnsureLocal(context.Background(), info, nil); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}

	if !mgr.IsDownloaded(info) {
		t.Error("Expected unpacked model directory to count as downloaded")
	}

	data, err := os.ReadFile(filepath.Join(mgr.Path(info), "am", "final.mdl"))
	if err != nil {
		t.Fatalf("Failed to read unpacked file: %v", err)
	}
	if string(data) != "acoustic" {
		t.Errorf("Expected unpacked file contents 'acoustic', got %q", data)
	}
}

func TestUnzip_RejectsPathTraversal(t *testing.T) {
	archive := zipArchive(t, map[string][]byte{
		"../evil.txt": []byte("escape"),
	})
	tmp := filepath.Join(t.TempDir(), "evil.zip")
	if err := os.WriteFile(tmp, archive, 0644); err != nil {
		t.Fatalf("Failed to write zip: %v", err)
	}

	if err := unzip(tmp, t.TempDir()); err == nil {
		t.Error("Expected error for entry escaping destination")
	}
}

func TestDelete(t *testing.T) {
	mgr := newTestManager(t)
	info := ModelInfo{
		ID:       "test-model",
		Engine:   EngineWhisper,
		Filename: "ggml-test.bin",
		Size:     4,
	}

	if err := os.WriteFile(mgr.Path(info), []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to seed model file: %v", err)
	}
	if !mgr.IsDownloaded(info) {
		t.Fatal("Expected model to be present")
	}

	if err := mgr.Delete(info); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mgr.IsDownloaded(info) {
		t.Error("Expected model to be gone after delete")
	}

	if got := len(mgr.ListDownloaded()); got != 0 {
		t.Errorf("Expected no downloaded models, got %d", got)
	}
}
