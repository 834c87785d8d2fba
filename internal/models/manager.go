package models

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/observability"
	"github.com/GodBoii/voicepipe/internal/resilience"
)

// Progress reports download state for one model.
type Progress struct {
	ModelID    string
	Downloaded int64
	Total      int64
	Done       bool
}

// Percent returns completion as a whole percentage in [0,100].
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	pct := int(p.Downloaded * 100 / p.Total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Manager stores model files on disk and downloads missing ones.
type Manager struct {
	modelsDir string
	retryCfg  resilience.RetryConfig
	logger    zerolog.Logger
	mu        sync.Mutex
}

// NewManager creates a model manager rooted at dir. An empty dir places
// models under the user cache directory.
func NewManager(dir string, retryCfg resilience.RetryConfig) (*Manager, error) {
	if dir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		dir = filepath.Join(cacheDir, "voicepipe", "models")
	}

	for _, sub := range []string{"whisper", "vosk"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create models directory: %w", err)
		}
	}

	return &Manager{
		modelsDir: dir,
		retryCfg:  retryCfg,
		logger:    observability.WithComponent("models"),
	}, nil
}

// ModelsDir returns the root directory for stored models.
func (m *Manager) ModelsDir() string {
	return m.modelsDir
}

// Path returns the on-disk location for a model. Whisper models are
// single files, Vosk models are directories.
func (m *Manager) Path(info ModelInfo) string {
	switch info.Engine {
	case EngineWhisper:
		return filepath.Join(m.modelsDir, "whisper", info.Filename)
	case EngineVosk:
		return filepath.Join(m.modelsDir, "vosk", info.Filename)
	default:
		return filepath.Join(m.modelsDir, info.Filename)
	}
}

// IsDownloaded reports whether the model is present on disk.
func (m *Manager) IsDownloaded(info ModelInfo) bool {
	stat, err := os.Stat(m.Path(info))
	if err != nil {
		return false
	}
	if info.IsZip {
		return stat.IsDir()
	}
	return stat.Size() > 0
}

// ListDownloaded returns the registry models present on disk.
func (m *Manager) ListDownloaded() []ModelInfo {
	var downloaded []ModelInfo
	for _, model := range Registry {
		if m.IsDownloaded(model) {
			downloaded = append(downloaded, model)
		}
	}
	return downloaded
}

// EnsureLocal downloads the model unless it is already on disk,
// retrying transient network failures. progress may be nil; updates are
// sent non-blocking except the final Done.
func (m *Manager) EnsureLocal(ctx context.Context, info ModelInfo, progress chan<- Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsDownloaded(info) {
		if progress != nil {
			progress <- Progress{ModelID: info.ID, Downloaded: info.Size, Total: info.Size, Done: true}
		}
		return nil
	}

	m.logger.Info().
		Str("model_id", info.ID).
		Str("url", info.URL).
		Int64("size", info.Size).
		Msg("Downloading model")

	err := resilience.Retry(ctx, m.retryCfg, func(ctx context.Context) error {
		if info.IsZip {
			return m.downloadAndUnzip(ctx, info, progress)
		}
		return m.downloadFile(ctx, info, progress)
	}, resilience.IsTransientNetworkError)
	if err != nil {
		return fmt.Errorf("failed to download model %s: %w", info.ID, err)
	}

	m.logger.Info().Str("model_id", info.ID).Msg("Model downloaded")
	return nil
}

func (m *Manager) downloadFile(ctx context.Context, info ModelInfo, progress chan<- Progress) error {
	destPath := m.Path(info)

	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = info.Size
	}

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := copyWithProgress(ctx, file, resp.Body, info.ID, total, progress); err != nil {
		return err
	}

	// Close before rename so the destination file is complete on disk.
	file.Close()

	if err := os.Rename(tmpPath, destPath); err != nil {
		return err
	}

	if progress != nil {
		progress <- Progress{ModelID: info.ID, Downloaded: total, Total: total, Done: true}
	}
	return nil
}

func (m *Manager) downloadAndUnzip(ctx context.Context, info ModelInfo, progress chan<- Progress) error {
	destDir := m.Path(info)

	tmpZip, err := os.CreateTemp("", "voicepipe-model-*.zip")
	if err != nil {
		return err
	}
	tmpPath := tmpZip.Name()
	defer os.Remove(tmpPath)
	defer tmpZip.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = info.Size
	}

	if err := copyWithProgress(ctx, tmpZip, resp.Body, info.ID, total, progress); err != nil {
		return err
	}
	tmpZip.Close()

	// Vosk archives contain a single top-level directory matching
	// info.Filename, so unpacking into the parent lands at destDir.
	if err := unzip(tmpPath, filepath.Dir(destDir)); err != nil {
		return fmt.Errorf("failed to unpack model: %w", err)
	}

	if progress != nil {
		progress <- Progress{ModelID: info.ID, Downloaded: total, Total: total, Done: true}
	}
	return nil
}

// copyWithProgress streams body into dst in 32KB chunks, honouring ctx
// and sending non-blocking progress updates.
func copyWithProgress(ctx context.Context, dst io.Writer, body io.Reader, modelID string, total int64, progress chan<- Progress) error {
	var downloaded int64
	buf := make([]byte, 32*1024)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			downloaded += int64(n)

			if progress != nil {
				select {
				case progress <- Progress{ModelID: modelID, Downloaded: downloaded, Total: total}:
				default:
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func unzip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	cleanDest := filepath.Clean(destDir)
	for _, f := range r.File {
		fpath := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(fpath, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
			return err
		}

		outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			outFile.Close()
			return err
		}

		_, err = io.Copy(outFile, rc)
		outFile.Close()
		rc.Close()

		if err != nil {
			return err
		}
	}

	return nil
}

// Delete removes a model from disk.
func (m *Manager) Delete(info ModelInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return os.RemoveAll(m.Path(info))
}
