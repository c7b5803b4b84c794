package collaboration

import (
	"encoding/json"
	"log"
	"sync"

	"typeduet/internal/models"
)

// Hub tracks every connected participant and which room each one has
// joined. It implements the engine's Emitter: all room-state, lobby and
// per-participant events fan out through here.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // participant id -> connection
	rooms   map[string]map[string]*Client // room id -> participant id -> connection
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds a freshly upgraded connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister drops a connection, removing it from its room first. The send
// channel is closed here so the write pump exits. Returns the room the
// participant was in, or "".
func (h *Hub) Unregister(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return ""
	}
	delete(h.clients, c.ID)

	roomID := c.roomID
	if roomID != "" {
		h.removeFromRoomLocked(roomID, c)
	}
	close(c.send)
	return roomID
}

// JoinRoom places a participant into a room channel. A participant is in at
// most one room at a time.
func (h *Hub) JoinRoom(participantID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[participantID]
	if !ok {
		return
	}
	if c.roomID != "" {
		h.removeFromRoomLocked(c.roomID, c)
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][participantID] = c
	c.roomID = roomID
}

// LeaveRoom removes a participant from their room channel and returns the
// room they were in, or "".
func (h *Hub) LeaveRoom(participantID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[participantID]
	if !ok || c.roomID == "" {
		return ""
	}
	roomID := c.roomID
	h.removeFromRoomLocked(roomID, c)
	return roomID
}

// RoomOf reports which room a participant has joined.
func (h *Hub) RoomOf(participantID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[participantID]; ok {
		return c.roomID
	}
	return ""
}

func (h *Hub) removeFromRoomLocked(roomID string, c *Client) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	c.roomID = ""
}

// EmitToRoom sends an event to every participant in a room.
func (h *Hub) EmitToRoom(roomID, event string, payload any) {
	h.emitRoom(roomID, "", event, payload)
}

// EmitToRoomExceptCaller sends an event to everyone in a room except the
// caller, who already holds the state locally.
func (h *Hub) EmitToRoomExceptCaller(roomID, callerID, event string, payload any) {
	h.emitRoom(roomID, callerID, event, payload)
}

func (h *Hub) emitRoom(roomID, skipID, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		log.Printf("failed to encode %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.rooms[roomID] {
		if id == skipID {
			continue
		}
		h.push(c, event, msg)
	}
}

// EmitToParticipant sends an event to a single participant.
func (h *Hub) EmitToParticipant(participantID, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		log.Printf("failed to encode %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[participantID]; ok {
		h.push(c, event, msg)
	}
}

// EmitGlobal sends an event to every connected participant, in or out of a
// room. Used for lobby directory refreshes.
func (h *Hub) EmitGlobal(event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		log.Printf("failed to encode %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.push(c, event, msg)
	}
}

// ForceLeaveRoom empties a room channel without closing connections. The
// participants stay connected and fall back to the lobby.
func (h *Hub) ForceLeaveRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.rooms[roomID] {
		c.roomID = ""
	}
	delete(h.rooms, roomID)
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
}

// push queues a message without blocking. A full buffer means the client is
// slow or dead; the message is dropped and the read pump will notice the
// broken connection.
func (h *Hub) push(c *Client, event string, msg []byte) {
	select {
	case c.send <- msg:
	default:
		log.Printf("participant %s: send buffer full, dropping %s", c.ID, event)
	}
}

func encode(event string, payload any) ([]byte, error) {
	env := models.Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}
