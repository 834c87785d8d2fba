package ui

import (
	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/controller"
	"github.com/GodBoii/voicepipe/internal/observability"
)

// Clipboard copies finished transcripts to the system clipboard so the
// user can paste them wherever the cursor is.
type Clipboard struct {
	logger zerolog.Logger
}

func NewClipboard() *Clipboard {
	return &Clipboard{logger: observability.WithComponent("clipboard")}
}

func (c *Clipboard) OnTranscript(text string) {
	if text == "" {
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to copy transcript to clipboard")
		return
	}
	c.logger.Debug().Int("chars", len(text)).Msg("Transcript copied to clipboard")
}

func (c *Clipboard) OnStateChange(state controller.State) {}

func (c *Clipboard) OnNotification(message string, level controller.Level) {}

func (c *Clipboard) OnDownloadProgress(percent int) {}
