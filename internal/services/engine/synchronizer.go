package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
	"unicode"

	"typeduet/internal/models"
	"typeduet/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// Synchronizer is the turn and buffer state machine. Every mutation of a hot
// room happens under that room's cache lock, so operations on one room are
// serialized while different rooms proceed independently.
type Synchronizer struct {
	store      RoomStore
	cache      *RoomCache
	emit       Emitter
	translator Translator
	pipeline   *Pipeline
}

func NewSynchronizer(store RoomStore, cache *RoomCache, emit Emitter, translator Translator, pipeline *Pipeline) *Synchronizer {
	return &Synchronizer{
		store:      store,
		cache:      cache,
		emit:       emit,
		translator: translator,
		pipeline:   pipeline,
	}
}

// commit writes a hot room back to the durable store. A failed write is
// logged and ignored: the hot copy stays authoritative and the next commit
// point overwrites stale durable state.
func (s *Synchronizer) commit(ctx context.Context, room *models.Room) {
	if err := s.store.Replace(ctx, room.ID, room); err != nil {
		log.Printf("room %s: durable commit failed: %v", room.ID, err)
	}
}

// CreateRoom validates the request and persists a new room immediately. The
// creator is granted the writer role when they subsequently enter.
func (s *Synchronizer) CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error) {
	if req.Name == "" || req.DisplayName == "" {
		return nil, &ValidationError{Message: "room name and display name are both required"}
	}
	if req.Kind != models.KindPlain && req.Kind != models.KindTranslated {
		return nil, &ValidationError{Message: "invalid room kind"}
	}
	if req.Kind == models.KindTranslated && !s.translator.Configured() {
		return nil, &ValidationError{Message: "translation is not configured on this server"}
	}

	room := &models.Room{
		Name:               req.Name,
		Kind:               req.Kind,
		Members:            models.MemberMap{},
		FinalizedLog:       models.StringList{},
		TranslationEnabled: req.Kind == models.KindTranslated,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, &ValidationError{Message: "failed to process room password"}
		}
		room.PasswordHash = string(hash)
		room.HasPassword = true
	}

	if _, err := s.store.Create(ctx, room); err != nil {
		log.Printf("failed to create room %q: %v", req.Name, err)
		return nil, &ValidationError{Message: "failed to create room"}
	}
	return room, nil
}

// lockOrLoad acquires the entry for a room, cold-loading it into the cache
// first when needed. The returned entry is locked; the caller must unlock.
func (s *Synchronizer) lockOrLoad(ctx context.Context, roomID string) (*roomEntry, error) {
	for {
		if entry := s.cache.lockRoom(roomID); entry != nil {
			return entry, nil
		}

		room, err := s.store.Load(ctx, roomID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "this room does not exist or has been deleted"}
		}
		if err != nil {
			log.Printf("room %s: load failed: %v", roomID, err)
			return nil, &NotFoundError{Message: "this room could not be loaded"}
		}

		candidate := s.cache.putIfAbsent(roomID, room)
		candidate.mu.Lock()
		if !candidate.dead {
			return candidate, nil
		}
		candidate.mu.Unlock()
	}
}

// releaseRejected unlocks an entry after a failed entry attempt. A rejection
// must not pin a memberless room hot, so the entry is evicted if nobody else
// got in meanwhile.
func (s *Synchronizer) releaseRejected(entry *roomEntry, roomID string) {
	empty := len(entry.room.Members) == 0
	entry.mu.Unlock()
	if empty {
		s.cache.evictIfEmpty(roomID)
	}
}

// EnterRoom loads the room into the hot cache if it is cold, adds the member
// and grants the turn when no active writer exists. The resulting state is
// broadcast to the whole room.
func (s *Synchronizer) EnterRoom(ctx context.Context, callerID string, req models.EnterRoomRequest) error {
	entry, err := s.lockOrLoad(ctx, req.RoomID)
	if err != nil {
		return err
	}
	room := entry.room

	if room.HasPassword {
		if bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(req.Password)) != nil {
			s.releaseRejected(entry, req.RoomID)
			return &AuthError{Message: "wrong password"}
		}
	}

	role := req.Role
	if role != models.RoleWriter {
		role = models.RoleObserver
	}
	if role == models.RoleWriter && room.WriterCount() >= models.MaxWriters {
		s.releaseRejected(entry, req.RoomID)
		return &CapacityError{Message: "both writer seats are taken; join as an observer or try again later"}
	}

	room.Members[callerID] = models.Member{DisplayName: req.DisplayName, Role: role}
	if role == models.RoleWriter && room.ActiveWriterID == "" {
		room.ActiveWriterID = callerID
	}

	s.commit(ctx, room)
	s.emit.EmitToRoom(room.ID, models.EventRoomStateUpdated, room.Snapshot())
	entry.mu.Unlock()
	return nil
}

// UpdateBuffer applies a keystroke-level buffer replacement. The target
// buffer is chosen by caller identity, stale versions are discarded, and the
// write never touches the durable store. Active-writer updates feed the
// translation pipeline.
func (s *Synchronizer) UpdateBuffer(ctx context.Context, callerID string, req models.UpdateBufferRequest) {
	if req.Version == 0 {
		return
	}
	entry := s.cache.lockRoom(req.RoomID)
	if entry == nil {
		// Cold room: the caller never entered, or everyone already left.
		return
	}

	room := entry.room
	isActive := callerID == room.ActiveWriterID
	if isActive {
		if req.Version <= room.ActiveBufferVersion {
			entry.mu.Unlock()
			return
		}
		room.ActiveBuffer = req.Text
		room.ActiveBufferVersion = req.Version
	} else {
		if req.Version <= room.InactiveBufferVersion {
			entry.mu.Unlock()
			return
		}
		room.InactiveBuffer = req.Text
		room.InactiveBufferVersion = req.Version
	}
	entry.mu.Unlock()

	if isActive && s.pipeline.MaybeTranslate(ctx, req.RoomID) {
		// The pipeline already put the post-translation state on the wire.
		return
	}

	entry = s.cache.lockRoom(req.RoomID)
	if entry == nil {
		return
	}
	defer entry.mu.Unlock()
	// While a translation is in flight the pipeline owns state broadcasts.
	if !entry.room.TranslationInFlight {
		s.emit.EmitToRoomExceptCaller(req.RoomID, callerID, models.EventRoomStateUpdated, entry.room.Snapshot())
	}
}

// PassTurn hands the turn to the opposing writer. In plain rooms the active
// buffer is committed to the finalized log first. No-op for non-active
// callers and while a translation is in flight.
func (s *Synchronizer) PassTurn(ctx context.Context, roomID, callerID string) {
	entry := s.cache.lockRoom(roomID)
	if entry == nil {
		return
	}

	room := entry.room
	if room.ActiveWriterID != callerID || room.TranslationInFlight {
		entry.mu.Unlock()
		return
	}

	if room.Kind == models.KindPlain {
		if text := strings.TrimSpace(room.ActiveBuffer); text != "" {
			room.FinalizedLog = append(room.FinalizedLog, text)
		}
	}

	if opponentID, ok := room.OpponentWriterID(callerID); ok {
		room.ActiveWriterID = opponentID
		room.ActiveBuffer = room.InactiveBuffer
		room.InactiveBuffer = ""
	} else {
		room.ActiveBuffer = ""
		room.InactiveBuffer = ""
	}

	room.LastProcessedPrefix = ""
	room.ActiveBufferVersion = 0
	room.InactiveBufferVersion = 0

	s.commit(ctx, room)
	entry.mu.Unlock()

	if s.pipeline.MaybeTranslate(ctx, roomID) {
		return
	}

	entry = s.cache.lockRoom(roomID)
	if entry == nil {
		return
	}
	defer entry.mu.Unlock()
	s.emit.EmitToRoom(roomID, models.EventRoomStateUpdated, entry.room.Snapshot())
}

// ClearContent wipes the transcript and both buffers. It also forces the
// in-flight guard off, which is the operational escape hatch for a pipeline
// stuck on a translation that never returned.
func (s *Synchronizer) ClearContent(ctx context.Context, roomID string) {
	entry := s.cache.lockRoom(roomID)
	if entry == nil {
		return
	}
	defer entry.mu.Unlock()
	room := entry.room

	room.FinalizedLog = models.StringList{}
	room.ActiveBuffer = ""
	room.InactiveBuffer = ""
	room.LastProcessedPrefix = ""
	room.TranslationInFlight = false
	room.ActiveBufferVersion = 0
	room.InactiveBufferVersion = 0

	s.commit(ctx, room)
	s.emit.EmitToRoom(roomID, models.EventRoomStateUpdated, room.Snapshot())
}

// ToggleTranslation flips the translation switch of a translated-kind room
// and resets the processed watermark. No-op for plain rooms and while a
// translation is in flight.
func (s *Synchronizer) ToggleTranslation(ctx context.Context, roomID string) {
	entry := s.cache.lockRoom(roomID)
	if entry == nil {
		return
	}
	defer entry.mu.Unlock()
	room := entry.room
	if room.Kind != models.KindTranslated || room.TranslationInFlight {
		return
	}

	room.TranslationEnabled = !room.TranslationEnabled
	room.LastProcessedPrefix = ""

	s.commit(ctx, room)
	s.emit.EmitToRoom(roomID, models.EventRoomStateUpdated, room.Snapshot())
}

// DropOpponentLeadingToken removes the first whitespace-delimited token from
// the opponent writer's pending buffer, pushes the replacement straight to
// that writer and broadcasts the room state. Only the active writer may use
// it.
func (s *Synchronizer) DropOpponentLeadingToken(ctx context.Context, roomID, callerID string) {
	entry := s.cache.lockRoom(roomID)
	if entry == nil {
		return
	}
	defer entry.mu.Unlock()
	room := entry.room
	if room.ActiveWriterID != callerID {
		return
	}
	opponentID, ok := room.OpponentWriterID(callerID)
	if !ok {
		return
	}

	newText := dropLeadingToken(room.InactiveBuffer)
	room.InactiveBuffer = newText
	room.InactiveBufferVersion = time.Now().UnixMilli()

	s.commit(ctx, room)
	s.emit.EmitToParticipant(opponentID, models.EventForcedBufferReplacement, models.ForcedBufferPayload{Text: newText})
	s.emit.EmitToRoom(roomID, models.EventRoomStateUpdated, room.Snapshot())
}

// dropLeadingToken trims leading whitespace, then removes everything up to
// and including the first space or newline, whichever comes first. Without a
// separator the whole buffer is consumed.
func dropLeadingToken(text string) string {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	space := strings.IndexByte(trimmed, ' ')
	newline := strings.IndexByte(trimmed, '\n')

	sep := space
	if sep == -1 || (newline != -1 && newline < sep) {
		sep = newline
	}
	if sep == -1 {
		return ""
	}
	return strings.TrimLeftFunc(trimmed[sep+1:], unicode.IsSpace)
}

// LeaveMember removes a member on disconnect. A departing active writer
// hands the turn to the remaining writer if one exists. The membership
// removal is always committed; a room left empty is evicted, unless someone
// re-entered it in the meantime.
func (s *Synchronizer) LeaveMember(ctx context.Context, roomID, callerID string) {
	entry := s.cache.lockRoom(roomID)
	if entry == nil {
		return
	}

	room := entry.room
	if _, ok := room.Members[callerID]; !ok {
		entry.mu.Unlock()
		return
	}

	delete(room.Members, callerID)
	if room.ActiveWriterID == callerID {
		if remainingID, ok := room.OpponentWriterID(callerID); ok {
			room.ActiveWriterID = remainingID
		} else {
			room.ActiveWriterID = ""
		}
	}

	empty := len(room.Members) == 0
	s.commit(ctx, room)
	if !empty {
		s.emit.EmitToRoom(roomID, models.EventRoomStateUpdated, room.Snapshot())
	}
	entry.mu.Unlock()

	if empty {
		s.cache.evictIfEmpty(roomID)
	}
}

// DeleteRoom permanently erases a room, notifies its participants and forces
// them back to the lobby.
func (s *Synchronizer) DeleteRoom(ctx context.Context, roomID string) error {
	err := s.store.Delete(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "this room was already deleted or never existed"}
	}
	if err != nil {
		log.Printf("room %s: delete failed: %v", roomID, err)
		return &NotFoundError{Message: "this room could not be deleted"}
	}

	s.emit.EmitToRoom(roomID, models.EventRoomDeleted, models.ErrorPayload{
		Message: "this room was deleted; returning to the lobby",
	})
	s.emit.ForceLeaveRoom(roomID)
	s.cache.evict(roomID)
	return nil
}
