package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/app"
)

// clientBuffer is the number of updates queued per client before updates are dropped.
const clientBuffer = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler streams live capture session updates via WebSocket.
type EventsHandler struct {
	app *app.App
}

// NewEventsHandler creates a new EventsHandler for the given app.
func NewEventsHandler(a *app.App) *EventsHandler {
	return &EventsHandler{app: a}
}

// ServeHTTP upgrades the connection and writes one JSON message per update.
// The current session state is sent first.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("server: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates := make(chan app.Update, clientBuffer)
	unsubscribe := h.app.Subscribe(func(u app.Update) {
		select {
		case updates <- u:
		default:
			// Slow client; the next update carries the full session state.
		}
	})
	defer unsubscribe()

	if err := conn.WriteJSON(h.app.Current()); err != nil {
		return
	}

	// Reader goroutine detects the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case u := <-updates:
			msg, err := json.Marshal(u)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
