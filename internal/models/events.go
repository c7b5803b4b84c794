package models

import "encoding/json"

// Client-sent event names.
const (
	EventRequestDirectory  = "requestDirectory"
	EventCreateRoom        = "createRoom"
	EventEnterRoom         = "enterRoom"
	EventUpdateBuffer      = "updateBuffer"
	EventPassTurn          = "passTurn"
	EventClearContent      = "clearContent"
	EventToggleTranslation = "toggleTranslation"
	EventDropLeadingToken  = "dropOpponentLeadingToken"
	EventDeleteRoom        = "deleteRoom"
)

// Server-sent event names.
const (
	EventDirectoryUpdated        = "directoryUpdated"
	EventRoomStateUpdated        = "roomStateUpdated"
	EventRoomCreated             = "roomCreated"
	EventRoomEntryError          = "roomEntryError"
	EventRoomCreationError       = "roomCreationError"
	EventForcedBufferReplacement = "forcedBufferReplacement"
	EventRoomDeleted             = "roomDeleted"
	EventRoomDeletionError       = "roomDeletionError"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type CreateRoomRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Password    string   `json:"password,omitempty"`
	Kind        RoomKind `json:"kind"`
}

type EnterRoomRequest struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	Password    string `json:"password,omitempty"`
}

type UpdateBufferRequest struct {
	RoomID  string `json:"roomId"`
	Text    string `json:"text"`
	Version int64  `json:"version"`
}

// RoomIDRequest covers the events whose payload is just a room identity.
type RoomIDRequest struct {
	RoomID string `json:"roomId"`
}

type RoomCreatedPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type ForcedBufferPayload struct {
	Text string `json:"text"`
}
