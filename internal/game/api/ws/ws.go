// Package ws streams session events to WebSocket subscribers.
package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Plabrum/trackstar/internal/game/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler upgrades subscribers and bridges them onto the broker.
type Handler struct {
	broker   *pubsub.Broker
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the WebSocket bridge for a broker.
func NewHandler(broker *pubsub.Broker, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		broker: broker,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Session events are not privileged; tokens guard mutations.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades the connection and forwards the session's events until
// the client disconnects.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sessionID := params.ByName("id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade: %v", err)
		return
	}

	events, cancel := h.broker.Subscribe(sessionID)
	defer cancel()
	defer conn.Close()

	// Reader drains client frames so pings are answered and closes are seen.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
