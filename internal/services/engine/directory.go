package engine

import (
	"context"
	"fmt"

	"typeduet/internal/models"
)

// Directory produces the lobby listing. Hot-cached rooms contribute live
// counts; the durable store fills in the cold rooms, excluded by id so a
// stale stored copy never shadows a live one.
type Directory struct {
	store RoomStore
	cache *RoomCache
}

func NewDirectory(store RoomStore, cache *RoomCache) *Directory {
	return &Directory{store: store, cache: cache}
}

// ListRooms returns a mapping from room identity to its lobby summary. No
// ordering is guaranteed.
func (d *Directory) ListRooms(ctx context.Context) (map[string]models.Summary, error) {
	out := d.cache.summaries()

	hotIDs := make([]string, 0, len(out))
	for id := range out {
		hotIDs = append(hotIDs, id)
	}

	cold, err := d.store.ListExcept(ctx, hotIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list cold rooms: %w", err)
	}
	for _, room := range cold {
		if _, dup := out[room.ID]; dup {
			// The exclusion filter should make this impossible.
			continue
		}
		out[room.ID] = room.Summarize()
	}
	return out, nil
}
