// Package stt hosts the speech recognition engine in its own goroutine
// and talks to it over a command/event message protocol, keeping model
// loading and transcription off the caller's path.
package stt

// CommandType identifies a command sent to the engine host.
type CommandType string

const (
	// CmdCheck asks whether the configured model is present on disk.
	CmdCheck CommandType = "check"

	// CmdLoad fetches the model if needed and loads it into memory.
	CmdLoad CommandType = "load"

	// CmdTranscribe submits one utterance for recognition.
	CmdTranscribe CommandType = "transcribe"

	// CmdTerminate shuts the engine host down.
	CmdTerminate CommandType = "terminate"
)

// EventType identifies an event emitted by the engine host.
type EventType string

const (
	// EvtStatus answers CmdCheck.
	EvtStatus EventType = "status"

	// EvtDownload reports model download progress.
	EvtDownload EventType = "download"

	// EvtReady signals the model is loaded and transcription can start.
	EvtReady EventType = "ready"

	// EvtResult carries a finished transcription. Text may be empty when
	// the engine heard nothing.
	EvtResult EventType = "result"

	// EvtError reports a failed command.
	EvtError EventType = "error"
)

// Command is a message to the engine host.
type Command struct {
	Type CommandType

	// Audio carries 16kHz mono samples for CmdTranscribe.
	Audio []float32
}

// Event is a message from the engine host.
type Event struct {
	Type EventType

	// Downloaded is set on EvtStatus.
	Downloaded bool

	// Progress is the download percentage on EvtDownload.
	Progress int

	// Text is the transcription on EvtResult.
	Text string

	// Message is the user-facing description on EvtError.
	Message string
}
