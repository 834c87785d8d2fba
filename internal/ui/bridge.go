// Package ui delivers controller output to the desktop: system
// notifications, the clipboard, and a WebSocket bridge that external
// front ends (tray icons, overlays, editors) connect to.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/controller"
	"github.com/GodBoii/voicepipe/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The bridge binds to loopback; anything that can reach it is
		// already on this machine.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// BridgeEvent is pushed to every connected front end.
type BridgeEvent struct {
	Type    string `json:"type"` // state, transcript, notification, download
	State   string `json:"state,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
	Level   string `json:"level,omitempty"`
	Percent int    `json:"percent,omitempty"`
}

// BridgeCommand is what a front end may send back.
type BridgeCommand struct {
	Type string `json:"type"` // toggle, start, stop
}

// Commander is the slice of the controller the bridge drives.
type Commander interface {
	Toggle() error
	StartRecording() error
	StopRecording() error
}

// Bridge fans controller events out to WebSocket clients and feeds
// their commands back into the controller.
type Bridge struct {
	commander Commander
	server    *http.Server
	logger    zerolog.Logger

	mu        sync.RWMutex
	clients   map[*bridgeClient]struct{}
	lastState string
}

type bridgeClient struct {
	conn *websocket.Conn
	send chan BridgeEvent
}

// NewBridge creates a bridge serving ws://<addr>/ws.
func NewBridge(addr string, commander Commander) *Bridge {
	b := &Bridge{
		commander: commander,
		clients:   make(map[*bridgeClient]struct{}),
		logger:    observability.WithComponent("bridge"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.Handler())
	b.server = &http.Server{
		Addr:    addr,
		Handler: mux,
		// No ReadTimeout: bridge connections are long-lived and mostly idle.
		ReadHeaderTimeout: 5 * time.Second,
	}
	return b
}

// Run serves the bridge endpoint until Shutdown.
func (b *Bridge) Run() error {
	b.logger.Info().Str("addr", b.server.Addr).Msg("UI bridge listening")
	if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge server failed: %w", err)
	}
	return nil
}

// Shutdown hangs up on every client and stops the listener.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	for client := range b.clients {
		delete(b.clients, client)
		close(client.send)
	}
	b.mu.Unlock()
	return b.server.Shutdown(ctx)
}

// Handler upgrades an HTTP request and serves the client until it
// hangs up. Exposed so tests and embedders can mount it themselves.
func (b *Bridge) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}

		client := &bridgeClient{conn: conn, send: make(chan BridgeEvent, 32)}

		b.mu.Lock()
		b.clients[client] = struct{}{}
		state := b.lastState
		count := len(b.clients)
		b.mu.Unlock()

		b.logger.Info().Int("clients", count).Msg("Front end connected")

		// Late joiners need to know where the controller stands.
		if state != "" {
			client.send <- BridgeEvent{Type: "state", State: state}
		}

		go b.writePump(client)
		b.readPump(client)
	}
}

func (b *Bridge) readPump(client *bridgeClient) {
	defer b.drop(client)

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var cmd BridgeCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to parse bridge command")
			continue
		}
		b.dispatch(cmd)
	}
}

func (b *Bridge) dispatch(cmd BridgeCommand) {
	var err error
	switch cmd.Type {
	case "toggle":
		err = b.commander.Toggle()
	case "start":
		err = b.commander.StartRecording()
	case "stop":
		err = b.commander.StopRecording()
	default:
		b.logger.Warn().Str("type", cmd.Type).Msg("Unknown bridge command")
		return
	}
	if err != nil {
		b.logger.Warn().Err(err).Str("type", cmd.Type).Msg("Bridge command rejected")
	}
}

func (b *Bridge) writePump(client *bridgeClient) {
	defer client.conn.Close()

	for event := range client.send {
		if err := client.conn.WriteJSON(event); err != nil {
			// The read side notices the closed connection and
			// unregisters the client.
			return
		}
	}
}

func (b *Bridge) drop(client *bridgeClient) {
	b.mu.Lock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.send)
	}
	remaining := len(b.clients)
	b.mu.Unlock()

	b.logger.Info().Int("clients", remaining).Msg("Front end disconnected")
}

func (b *Bridge) broadcast(event BridgeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		select {
		case client.send <- event:
		default:
			b.logger.Warn().Str("type", event.Type).Msg("Client send queue full, dropping event")
		}
	}
}

// OnStateChange broadcasts the controller state.
func (b *Bridge) OnStateChange(state controller.State) {
	b.mu.Lock()
	b.lastState = state.String()
	b.mu.Unlock()
	b.broadcast(BridgeEvent{Type: "state", State: state.String()})
}

// OnTranscript broadcasts a finished transcript.
func (b *Bridge) OnTranscript(text string) {
	b.broadcast(BridgeEvent{Type: "transcript", Text: text})
}

// OnNotification broadcasts a user-facing message.
func (b *Bridge) OnNotification(message string, level controller.Level) {
	b.broadcast(BridgeEvent{Type: "notification", Message: message, Level: string(level)})
}

// OnDownloadProgress broadcasts model download progress.
func (b *Bridge) OnDownloadProgress(percent int) {
	b.broadcast(BridgeEvent{Type: "download", Percent: percent})
}
