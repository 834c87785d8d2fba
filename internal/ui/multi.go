package ui

import "github.com/GodBoii/voicepipe/internal/controller"

// Multi fans controller callbacks out to several sinks.
type Multi []controller.UI

func (m Multi) OnStateChange(state controller.State) {
	for _, u := range m {
		u.OnStateChange(state)
	}
}

func (m Multi) OnTranscript(text string) {
	for _, u := range m {
		u.OnTranscript(text)
	}
}

func (m Multi) OnNotification(message string, level controller.Level) {
	for _, u := range m {
		u.OnNotification(message, level)
	}
}

func (m Multi) OnDownloadProgress(percent int) {
	for _, u := range m {
		u.OnDownloadProgress(percent)
	}
}
