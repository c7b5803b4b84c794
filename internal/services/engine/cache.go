package engine

import (
	"sync"

	"typeduet/internal/models"
)

// roomEntry pairs a hot room with the mutex that serializes every operation
// touching it. Concurrent operations on different rooms never contend.
type roomEntry struct {
	mu   sync.Mutex
	room *models.Room

	// dead marks an entry that was evicted from the cache. A locker that
	// raced the eviction sees it after acquiring mu and must retry against
	// the cache instead of mutating the orphan.
	dead bool
}

// RoomCache is the process-wide registry of live rooms. A room is present
// exactly while it has at least one connected participant; an absent entry
// means the room is cold and the durable store is authoritative.
type RoomCache struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

func NewRoomCache() *RoomCache {
	return &RoomCache{rooms: make(map[string]*roomEntry)}
}

func (c *RoomCache) get(id string) *roomEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[id]
}

// lockRoom returns the entry for a hot room with its mutex held, or nil when
// the room is cold. Tombstoned entries are skipped and the lookup retried, so
// the caller always lands on the entry the cache currently serves.
func (c *RoomCache) lockRoom(id string) *roomEntry {
	for {
		entry := c.get(id)
		if entry == nil {
			return nil
		}
		entry.mu.Lock()
		if !entry.dead {
			return entry
		}
		entry.mu.Unlock()
	}
}

// putIfAbsent inserts a freshly loaded room unless another goroutine won the
// race, in which case the existing entry is returned.
func (c *RoomCache) putIfAbsent(id string, room *models.Room) *roomEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.rooms[id]; ok {
		return existing
	}
	entry := &roomEntry{room: room}
	c.rooms[id] = entry
	return entry
}

// evict unconditionally removes a room and tombstones its entry. Used when
// the room itself is gone from the durable store.
func (c *RoomCache) evict(id string) {
	c.mu.Lock()
	entry, ok := c.rooms[id]
	delete(c.rooms, id)
	c.mu.Unlock()

	if ok {
		entry.mu.Lock()
		entry.dead = true
		entry.mu.Unlock()
	}
}

// evictIfEmpty removes a room only if it still has no members. The decision
// is made under the entry lock, so an entrant that raced the last leave keeps
// the room hot instead of being stranded on an orphaned entry.
func (c *RoomCache) evictIfEmpty(id string) {
	entry := c.lockRoom(id)
	if entry == nil {
		return
	}
	defer entry.mu.Unlock()
	if len(entry.room.Members) != 0 {
		return
	}

	c.mu.Lock()
	delete(c.rooms, id)
	c.mu.Unlock()
	entry.dead = true
}

// summaries snapshots the lobby view of every hot room. Each entry lock is
// taken briefly so counts are never torn.
func (c *RoomCache) summaries() map[string]models.Summary {
	c.mu.RLock()
	entries := make(map[string]*roomEntry, len(c.rooms))
	for id, e := range c.rooms {
		entries[id] = e
	}
	c.mu.RUnlock()

	out := make(map[string]models.Summary, len(entries))
	for id, e := range entries {
		e.mu.Lock()
		out[id] = e.room.Summarize()
		e.mu.Unlock()
	}
	return out
}
