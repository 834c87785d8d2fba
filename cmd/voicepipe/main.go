package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GodBoii/voicepipe/internal/archive"
	"github.com/GodBoii/voicepipe/internal/capture"
	"github.com/GodBoii/voicepipe/internal/config"
	"github.com/GodBoii/voicepipe/internal/controller"
	"github.com/GodBoii/voicepipe/internal/models"
	"github.com/GodBoii/voicepipe/internal/observability"
	"github.com/GodBoii/voicepipe/internal/resilience"
	"github.com/GodBoii/voicepipe/internal/stt"
	"github.com/GodBoii/voicepipe/internal/ui"
)

// lateController lets the bridge be constructed before the controller
// it drives; the pointer is set before the bridge starts serving.
type lateController struct {
	ctrl *controller.Controller
}

func (l *lateController) Toggle() error         { return l.ctrl.Toggle() }
func (l *lateController) StartRecording() error { return l.ctrl.StartRecording() }
func (l *lateController) StopRecording() error  { return l.ctrl.StopRecording() }

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("engine", cfg.Engine).
		Str("model", cfg.ModelID).
		Str("language", cfg.Language).
		Int("capture_rate", cfg.CaptureRate).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("VoicePipe starting")

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load tuning file")
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.DownloadMaxAttempts
	retryCfg.InitialBackoff = time.Duration(cfg.DownloadBackoffMs) * time.Millisecond

	manager, err := models.NewManager(cfg.ModelsDir, retryCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare models directory")
	}

	// Engine host: owns the speech engine in its own goroutine
	client := stt.NewClient(cfg, manager)
	if err := client.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start engine host")
	}

	device, err := capture.NewPortAudioDevice(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open audio device")
	}
	session := capture.NewSession(device)

	store, err := archive.NewStore(cfg.ArchiveDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare archive directory")
	}

	// UI sinks: notifications, clipboard, and the WebSocket bridge
	var sinks ui.Multi
	if cfg.Notifications {
		sinks = append(sinks, ui.NewNotifier())
	}
	if cfg.ClipboardCopy {
		sinks = append(sinks, ui.NewClipboard())
	}

	late := &lateController{}
	var bridge *ui.Bridge
	if cfg.BridgeEnabled {
		bridge = ui.NewBridge(cfg.BridgeAddr, late)
		sinks = append(sinks, bridge)
	}

	ctrl := controller.NewController(cfg, tuning, session, client, store, sinks)
	late.ctrl = ctrl

	go ctrl.Run()

	// Kick off the model check; the controller loads or reports from the status
	ctrl.CheckModel()

	// Ops endpoints: health, readiness, Prometheus metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	modelCheck := func(ctx context.Context) (bool, error) {
		if !client.IsLoaded() {
			return false, fmt.Errorf("speech model not loaded")
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"model": modelCheck,
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	opsServer := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.OpsAddr).Msg("Ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Ops server failed to start")
		}
	}()

	if bridge != nil {
		go func() {
			if err := bridge.Run(); err != nil {
				logger.Fatal().Err(err).Msg("UI bridge failed to start")
			}
		}()
	}

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	ctrl.Destroy()

	// Give the engine host a moment to wind down
	select {
	case <-client.Done():
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("Engine host did not stop in time")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if bridge != nil {
		if err := bridge.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("Bridge shutdown failed")
		}
	}
	if err := opsServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Ops server forced to shutdown")
	}

	if err := device.Close(); err != nil {
		logger.Warn().Err(err).Msg("Audio device close failed")
	}

	logger.Info().Msg("VoicePipe exited gracefully")
}
