package engine

import (
	"testing"

	"typeduet/internal/models"
)

func TestEvictTombstonesEntry(t *testing.T) {
	cache := NewRoomCache()
	entry := cache.putIfAbsent("r1", &models.Room{ID: "r1"})

	cache.evict("r1")

	entry.mu.Lock()
	dead := entry.dead
	entry.mu.Unlock()
	if !dead {
		t.Fatal("evicted entry must be tombstoned")
	}
	if cache.lockRoom("r1") != nil {
		t.Fatal("lockRoom must treat an evicted room as cold")
	}
}

func TestEvictIfEmptySparesOccupiedRooms(t *testing.T) {
	cache := NewRoomCache()
	room := &models.Room{
		ID:      "r1",
		Members: models.MemberMap{"a": {DisplayName: "a", Role: models.RoleWriter}},
	}
	cache.putIfAbsent("r1", room)

	cache.evictIfEmpty("r1")
	if cache.get("r1") == nil {
		t.Fatal("a room with members must stay hot")
	}

	room.Members = models.MemberMap{}
	cache.evictIfEmpty("r1")
	if cache.get("r1") != nil {
		t.Fatal("an empty room must be evicted")
	}
}

func TestLockRoomLandsOnLiveEntry(t *testing.T) {
	// A locker holding a reference from before an eviction must end up on
	// the replacement entry, never the orphan.
	cache := NewRoomCache()
	stale := cache.putIfAbsent("r1", &models.Room{ID: "r1"})
	cache.evict("r1")
	fresh := cache.putIfAbsent("r1", &models.Room{ID: "r1"})

	got := cache.lockRoom("r1")
	if got == stale {
		t.Fatal("lockRoom returned the evicted entry")
	}
	if got != fresh {
		t.Fatal("lockRoom must return the live entry")
	}
	got.mu.Unlock()
}
