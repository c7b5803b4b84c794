package engine

import (
	"context"
	"fmt"
	"sync"

	"typeduet/internal/models"
	"typeduet/internal/repository"
)

// In-memory fakes for the engine's collaborators. The store clones rooms on
// the way in and out so the hot cache never aliases durable state, matching
// how a real database behaves.

type fakeStore struct {
	mu     sync.Mutex
	rooms  map[string]*models.Room
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: make(map[string]*models.Room)}
}

func cloneRoom(r *models.Room) *models.Room {
	clone := *r
	clone.Members = make(models.MemberMap, len(r.Members))
	for id, m := range r.Members {
		clone.Members[id] = m
	}
	clone.FinalizedLog = make(models.StringList, len(r.FinalizedLog))
	copy(clone.FinalizedLog, r.FinalizedLog)
	return &clone
}

func (s *fakeStore) Create(ctx context.Context, room *models.Room) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	room.ID = fmt.Sprintf("room-%d", s.nextID)
	s.rooms[room.ID] = cloneRoom(room)
	return room.ID, nil
}

func (s *fakeStore) Load(ctx context.Context, id string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRoom(room), nil
}

func (s *fakeStore) Replace(ctx context.Context, id string, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return repository.ErrNotFound
	}
	s.rooms[id] = cloneRoom(room)
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

func (s *fakeStore) ListExcept(ctx context.Context, excludeIDs []string) ([]*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []*models.Room
	for id, room := range s.rooms {
		if !excluded[id] {
			out = append(out, cloneRoom(room))
		}
	}
	return out, nil
}

type emittedEvent struct {
	scope    string // room, roomExcept, participant, global
	roomID   string
	targetID string
	event    string
	payload  any
}

type fakeEmitter struct {
	mu           sync.Mutex
	events       []emittedEvent
	forcedLeaves []string
}

func (e *fakeEmitter) EmitToRoom(roomID, event string, payload any) {
	e.record(emittedEvent{scope: "room", roomID: roomID, event: event, payload: payload})
}

func (e *fakeEmitter) EmitToRoomExceptCaller(roomID, callerID, event string, payload any) {
	e.record(emittedEvent{scope: "roomExcept", roomID: roomID, targetID: callerID, event: event, payload: payload})
}

func (e *fakeEmitter) EmitToParticipant(participantID, event string, payload any) {
	e.record(emittedEvent{scope: "participant", targetID: participantID, event: event, payload: payload})
}

func (e *fakeEmitter) EmitGlobal(event string, payload any) {
	e.record(emittedEvent{scope: "global", event: event, payload: payload})
}

func (e *fakeEmitter) ForceLeaveRoom(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.forcedLeaves = append(e.forcedLeaves, roomID)
}

func (e *fakeEmitter) record(ev emittedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *fakeEmitter) byEvent(event string) []emittedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emittedEvent
	for _, ev := range e.events {
		if ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (e *fakeEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
	e.forcedLeaves = nil
}

type fakeTranslator struct {
	mu         sync.Mutex
	configured bool
	fail       bool
	result     string
	inputs     []string

	// onTranslate runs mid-call, while the pipeline holds no room lock.
	onTranslate func()
}

func (t *fakeTranslator) Configured() bool { return t.configured }

func (t *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	t.mu.Lock()
	t.inputs = append(t.inputs, text)
	fail, result, hook := t.fail, t.result, t.onTranslate
	t.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return "", fmt.Errorf("simulated translator failure")
	}
	if result != "" {
		return result, nil
	}
	return "[EN] " + text, nil
}

func (t *fakeTranslator) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inputs)
}

type testEngine struct {
	sync       *Synchronizer
	pipeline   *Pipeline
	directory  *Directory
	store      *fakeStore
	emitter    *fakeEmitter
	translator *fakeTranslator
	cache      *RoomCache
}

func newTestEngine() *testEngine {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	translator := &fakeTranslator{configured: true}
	cache := NewRoomCache()
	pipeline := NewPipeline(store, cache, emitter, translator)
	return &testEngine{
		sync:       NewSynchronizer(store, cache, emitter, translator, pipeline),
		pipeline:   pipeline,
		directory:  NewDirectory(store, cache),
		store:      store,
		emitter:    emitter,
		translator: translator,
		cache:      cache,
	}
}

// mustRoom creates a room and enters the given members; writers first so the
// first writer holds the turn.
func (te *testEngine) mustRoom(kind models.RoomKind, writers, observers []string) string {
	room, err := te.sync.CreateRoom(context.Background(), models.CreateRoomRequest{
		Name:        "test room",
		DisplayName: "creator",
		Kind:        kind,
	})
	if err != nil {
		panic(err)
	}
	for _, id := range writers {
		if err := te.sync.EnterRoom(context.Background(), id, models.EnterRoomRequest{
			RoomID:      room.ID,
			DisplayName: id,
			Role:        models.RoleWriter,
		}); err != nil {
			panic(err)
		}
	}
	for _, id := range observers {
		if err := te.sync.EnterRoom(context.Background(), id, models.EnterRoomRequest{
			RoomID:      room.ID,
			DisplayName: id,
			Role:        models.RoleObserver,
		}); err != nil {
			panic(err)
		}
	}
	return room.ID
}

// hotRoom fetches the live cached room for assertions.
func (te *testEngine) hotRoom(roomID string) *models.Room {
	entry := te.cache.get(roomID)
	if entry == nil {
		return nil
	}
	return entry.room
}
