package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voicepipe daemon
type Config struct {
	// Ops endpoint (health, readiness, Prometheus metrics)
	OpsAddr        string `envconfig:"OPS_ADDR" default:"127.0.0.1:9090"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`

	// Local UI bridge: WebSocket event stream + toggle commands
	BridgeEnabled bool   `envconfig:"UI_BRIDGE_ENABLED" default:"true"`
	BridgeAddr    string `envconfig:"UI_BRIDGE_ADDR" default:"127.0.0.1:8765"`

	// Speech engine configuration
	Engine       string `envconfig:"STT_ENGINE" default:"whisper"`          // whisper, vosk
	ModelID      string `envconfig:"STT_MODEL" default:"whisper-base-q5"`   // see internal/models registry
	ModelsDir    string `envconfig:"MODELS_DIR" default:""`                 // empty: user cache dir
	Language     string `envconfig:"STT_LANGUAGE" default:"en"`             // passed to the engine; "auto" enables detection
	AutoDownload bool   `envconfig:"MODEL_AUTO_DOWNLOAD" default:"true"`    // fetch the model on load when missing

	// Capture configuration
	CaptureRate        int `envconfig:"CAPTURE_SAMPLE_RATE" default:"44100"`    // device rate; converted to 16 kHz downstream
	FramesPerBuffer    int `envconfig:"CAPTURE_FRAMES_PER_BUFFER" default:"1024"`
	AutoStopSilenceSec int `envconfig:"AUTO_STOP_SILENCE_SEC" default:"5"`      // trailing silence before auto-stop, 0 disables

	// Transcript delivery
	ClipboardCopy bool   `envconfig:"CLIPBOARD_COPY" default:"false"`     // copy transcripts to the clipboard
	Notifications bool   `envconfig:"DESKTOP_NOTIFICATIONS" default:"true"`
	ArchiveDir    string `envconfig:"ARCHIVE_DIR" default:""`             // WAV dump of submitted utterances, empty disables

	// DSP tuning overrides (YAML, see Tuning)
	TuningFile string `envconfig:"TUNING_FILE" default:""`

	// Resilience configuration
	DownloadMaxAttempts int `envconfig:"DOWNLOAD_MAX_ATTEMPTS" default:"4"`   // model download retries
	DownloadBackoffMs   int `envconfig:"DOWNLOAD_BACKOFF_MS" default:"500"`   // initial backoff in milliseconds
	EngineMaxFailures   int `envconfig:"ENGINE_MAX_FAILURES" default:"3"`     // failures before the engine breaker opens
	EngineCooldownSec   int `envconfig:"ENGINE_COOLDOWN_SEC" default:"30"`    // seconds before an engine retry probe

	// Observability configuration
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load reads configuration from the environment, merging an optional
// .env file first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Engine {
	case "whisper", "vosk":
	default:
		return fmt.Errorf("unknown STT_ENGINE %q (want whisper or vosk)", c.Engine)
	}
	if c.ModelID == "" {
		return fmt.Errorf("STT_MODEL must not be empty")
	}
	if c.CaptureRate <= 0 {
		return fmt.Errorf("CAPTURE_SAMPLE_RATE must be positive, got %d", c.CaptureRate)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("CAPTURE_FRAMES_PER_BUFFER must be positive, got %d", c.FramesPerBuffer)
	}
	if c.AutoStopSilenceSec < 0 {
		return fmt.Errorf("AUTO_STOP_SILENCE_SEC must not be negative, got %d", c.AutoStopSilenceSec)
	}
	return nil
}
