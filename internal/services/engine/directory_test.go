package engine

import (
	"context"
	"testing"

	"typeduet/internal/models"
)

func TestListRoomsMergesHotAndCold(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	// hot: one member connected; cold: created but never entered
	hotID := te.mustRoom(models.KindPlain, []string{"w1", "w2"}, []string{"o1"})
	cold, err := te.sync.CreateRoom(ctx, models.CreateRoomRequest{
		Name: "cold room", DisplayName: "x", Kind: models.KindTranslated,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	listing, err := te.directory.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listing) != 2 {
		t.Fatalf("listing has %d rooms, want 2", len(listing))
	}

	hot := listing[hotID]
	if hot.WriterCount != 2 || hot.ObserverCount != 1 {
		t.Fatalf("hot counts = (%d, %d), want live (2, 1)", hot.WriterCount, hot.ObserverCount)
	}
	coldSummary := listing[cold.ID]
	if coldSummary.WriterCount != 0 || coldSummary.Kind != models.KindTranslated {
		t.Fatalf("cold summary = %+v", coldSummary)
	}
}

func TestListRoomsPrefersHotCounts(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	roomID := te.mustRoom(models.KindPlain, []string{"w1"}, nil)

	// Make the durable copy stale: wipe its membership behind the cache's back
	stored, err := te.store.Load(ctx, roomID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	stored.Members = models.MemberMap{}
	if err := te.store.Replace(ctx, roomID, stored); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	listing, err := te.directory.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if got := listing[roomID].WriterCount; got != 1 {
		t.Fatalf("writer count = %d, hot cache must win over the stale store", got)
	}
	if len(listing) != 1 {
		t.Fatalf("listing has %d entries for one room", len(listing))
	}
}
