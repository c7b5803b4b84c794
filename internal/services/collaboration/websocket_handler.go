package collaboration

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: validate origin once the frontend gets a fixed host
		return true
	},
}

// WebSocketHandler upgrades HTTP connections and wires each one into the
// hub and the event dispatcher.
type WebSocketHandler struct {
	hub    *Hub
	events *EventHandler
}

func NewWebSocketHandler(hub *Hub, events *EventHandler) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, events: events}
}

// HandleConnection is the single websocket endpoint. Rooms are joined by
// event, not by URL, so one connection serves the lobby and the room.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade websocket: %v", err)
		return
	}

	client := NewClient(uuid.New().String(), conn, h.hub, h.events)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Printf("✓ participant %s connected", client.ID)
}
