package engine

import (
	"context"

	"typeduet/internal/models"
)

// The engine declares the collaborator interfaces it needs; the concrete
// implementations (GORM repository, websocket hub, DeepL client) don't know
// about them.

// RoomStore is the durable record of rooms. It is the source of truth for
// cold rooms; hot rooms are written back on the commit points defined by the
// turn protocol.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) (string, error)
	Load(ctx context.Context, id string) (*models.Room, error)
	Replace(ctx context.Context, id string, room *models.Room) error
	Delete(ctx context.Context, id string) error
	ListExcept(ctx context.Context, excludeIDs []string) ([]*models.Room, error)
}

// Emitter fans room and lobby events out to connected participants.
type Emitter interface {
	EmitToRoom(roomID, event string, payload any)
	EmitToRoomExceptCaller(roomID, callerID, event string, payload any)
	EmitToParticipant(participantID, event string, payload any)
	EmitGlobal(event string, payload any)
	ForceLeaveRoom(roomID string)
}

// Translator is the outbound translation collaborator.
type Translator interface {
	Configured() bool
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
