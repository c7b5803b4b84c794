package collaboration

import (
	"context"
	"encoding/json"
	"log"

	"typeduet/internal/middleware"
	"typeduet/internal/models"
	"typeduet/internal/services/engine"

	"go.opentelemetry.io/otel/attribute"
)

// EventHandler maps incoming websocket events onto engine operations and
// routes the results back through the hub. Every event is handled at this
// boundary: a panic or error aborts that one event only.
type EventHandler struct {
	hub       *Hub
	sync      *engine.Synchronizer
	directory *engine.Directory
}

func NewEventHandler(hub *Hub, sync *engine.Synchronizer, directory *engine.Directory) *EventHandler {
	return &EventHandler{hub: hub, sync: sync, directory: directory}
}

// Dispatch routes one event envelope. Unknown events are logged and dropped.
func (h *EventHandler) Dispatch(ctx context.Context, c *Client, env models.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("participant %s: panic handling %s: %v", c.ID, env.Event, r)
		}
	}()

	ctx, span := middleware.StartSpan(ctx, "Event."+env.Event,
		attribute.String("participant.id", c.ID),
	)
	defer span.End()

	switch env.Event {
	case models.EventRequestDirectory:
		h.sendDirectory(ctx, c)
	case models.EventCreateRoom:
		h.handleCreateRoom(ctx, c, env.Data)
	case models.EventEnterRoom:
		h.handleEnterRoom(ctx, c, env.Data)
	case models.EventUpdateBuffer:
		h.handleUpdateBuffer(ctx, c, env.Data)
	case models.EventPassTurn:
		if roomID, ok := roomIDOf(env.Data); ok {
			h.sync.PassTurn(ctx, roomID, c.ID)
		}
	case models.EventClearContent:
		if roomID, ok := roomIDOf(env.Data); ok {
			h.sync.ClearContent(ctx, roomID)
		}
	case models.EventToggleTranslation:
		if roomID, ok := roomIDOf(env.Data); ok {
			h.sync.ToggleTranslation(ctx, roomID)
		}
	case models.EventDropLeadingToken:
		if roomID, ok := roomIDOf(env.Data); ok {
			h.sync.DropOpponentLeadingToken(ctx, roomID, c.ID)
		}
	case models.EventDeleteRoom:
		h.handleDeleteRoom(ctx, c, env.Data)
	default:
		log.Printf("participant %s: unknown event %q", c.ID, env.Event)
	}
}

// HandleDisconnect runs when a connection drops for any reason. The member
// is removed from their room and the lobby is refreshed.
func (h *EventHandler) HandleDisconnect(ctx context.Context, c *Client) {
	roomID := h.hub.Unregister(c)
	if roomID == "" {
		return
	}
	h.sync.LeaveMember(ctx, roomID, c.ID)
	h.broadcastDirectory(ctx)
}

func (h *EventHandler) handleCreateRoom(ctx context.Context, c *Client, data json.RawMessage) {
	var req models.CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.hub.EmitToParticipant(c.ID, models.EventRoomCreationError, models.ErrorPayload{Message: "malformed request"})
		return
	}

	room, err := h.sync.CreateRoom(ctx, req)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		h.hub.EmitToParticipant(c.ID, models.EventRoomCreationError, models.ErrorPayload{Message: err.Error()})
		return
	}

	h.hub.EmitToParticipant(c.ID, models.EventRoomCreated, models.RoomCreatedPayload{
		RoomID:      room.ID,
		DisplayName: req.DisplayName,
		Role:        models.RoleWriter,
	})
	h.broadcastDirectory(ctx)
}

func (h *EventHandler) handleEnterRoom(ctx context.Context, c *Client, data json.RawMessage) {
	var req models.EnterRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.hub.EmitToParticipant(c.ID, models.EventRoomEntryError, models.ErrorPayload{Message: "malformed request"})
		return
	}

	// Join the room channel first so the entry broadcast reaches the caller.
	h.hub.JoinRoom(c.ID, req.RoomID)

	if err := h.sync.EnterRoom(ctx, c.ID, req); err != nil {
		middleware.AddSpanError(ctx, err)
		h.hub.LeaveRoom(c.ID)
		h.hub.EmitToParticipant(c.ID, models.EventRoomEntryError, models.ErrorPayload{Message: err.Error()})
		return
	}

	h.broadcastDirectory(ctx)
}

func (h *EventHandler) handleUpdateBuffer(ctx context.Context, c *Client, data json.RawMessage) {
	var req models.UpdateBufferRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	h.sync.UpdateBuffer(ctx, c.ID, req)
}

func (h *EventHandler) handleDeleteRoom(ctx context.Context, c *Client, data json.RawMessage) {
	roomID, ok := roomIDOf(data)
	if !ok {
		h.hub.EmitToParticipant(c.ID, models.EventRoomDeletionError, models.ErrorPayload{Message: "malformed request"})
		return
	}

	if err := h.sync.DeleteRoom(ctx, roomID); err != nil {
		middleware.AddSpanError(ctx, err)
		h.hub.EmitToParticipant(c.ID, models.EventRoomDeletionError, models.ErrorPayload{Message: err.Error()})
		return
	}
	h.broadcastDirectory(ctx)
}

func (h *EventHandler) sendDirectory(ctx context.Context, c *Client) {
	listing, err := h.directory.ListRooms(ctx)
	if err != nil {
		log.Printf("failed to build directory: %v", err)
		return
	}
	h.hub.EmitToParticipant(c.ID, models.EventDirectoryUpdated, listing)
}

func (h *EventHandler) broadcastDirectory(ctx context.Context) {
	listing, err := h.directory.ListRooms(ctx)
	if err != nil {
		log.Printf("failed to build directory: %v", err)
		return
	}
	h.hub.EmitGlobal(models.EventDirectoryUpdated, listing)
}

func roomIDOf(data json.RawMessage) (string, bool) {
	var req models.RoomIDRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		return "", false
	}
	return req.RoomID, true
}
