package ui

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/controller"
	"github.com/GodBoii/voicepipe/internal/observability"
)

const appName = "VoicePipe"

// maxNotifyLen keeps transcripts readable inside a popup.
const maxNotifyLen = 100

// Notifier shows controller output as desktop notifications.
type Notifier struct {
	logger zerolog.Logger
}

func NewNotifier() *Notifier {
	return &Notifier{logger: observability.WithComponent("notifier")}
}

// OnStateChange pops a notification on the recording edge only;
// processing is brief and idle is the default.
func (n *Notifier) OnStateChange(state controller.State) {
	if state == controller.StateRecording {
		n.post(appName, "Recording started")
	}
}

// OnTranscript shows the recognized text, truncated to popup size.
func (n *Notifier) OnTranscript(text string) {
	n.post(appName, truncate(text, maxNotifyLen))
}

// OnNotification relays controller messages, marking errors in the title.
func (n *Notifier) OnNotification(message string, level controller.Level) {
	title := appName
	if level == controller.LevelError {
		title = appName + ": Error"
	}
	n.post(title, truncate(message, maxNotifyLen))
}

// OnDownloadProgress is a no-op; per-chunk progress is popup spam.
// The bridge carries it for front ends that can render a bar.
func (n *Notifier) OnDownloadProgress(percent int) {}

func (n *Notifier) post(title, message string) {
	// Best effort. A missed popup costs nothing downstream.
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug().Err(err).Msg("Desktop notification failed")
	}
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
