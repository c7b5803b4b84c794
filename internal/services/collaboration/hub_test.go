package collaboration

import (
	"encoding/json"
	"testing"

	"typeduet/internal/models"
)

// testClient builds a connectionless client; the send channel stands in for
// the wire.
func testClient(hub *Hub, id string) *Client {
	return NewClient(id, nil, hub, nil)
}

func drain(t *testing.T, c *Client) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for {
		select {
		case msg := <-c.send:
			var env models.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				t.Fatalf("malformed envelope on %s: %v", c.ID, err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestEmitToRoomReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub()
	a := testClient(hub, "a")
	b := testClient(hub, "b")
	outsider := testClient(hub, "c")
	for _, c := range []*Client{a, b, outsider} {
		hub.Register(c)
	}
	hub.JoinRoom("a", "room-1")
	hub.JoinRoom("b", "room-1")

	hub.EmitToRoom("room-1", models.EventRoomStateUpdated, map[string]string{"name": "x"})

	for _, c := range []*Client{a, b} {
		got := drain(t, c)
		if len(got) != 1 || got[0].Event != models.EventRoomStateUpdated {
			t.Fatalf("%s received %v, want one state update", c.ID, got)
		}
	}
	if got := drain(t, outsider); len(got) != 0 {
		t.Fatalf("outsider received %v, want nothing", got)
	}
}

func TestEmitToRoomExceptCallerSkipsCaller(t *testing.T) {
	hub := NewHub()
	caller := testClient(hub, "caller")
	peer := testClient(hub, "peer")
	hub.Register(caller)
	hub.Register(peer)
	hub.JoinRoom("caller", "room-1")
	hub.JoinRoom("peer", "room-1")

	hub.EmitToRoomExceptCaller("room-1", "caller", models.EventRoomStateUpdated, nil)

	if got := drain(t, caller); len(got) != 0 {
		t.Fatalf("caller received %v, want nothing", got)
	}
	if got := drain(t, peer); len(got) != 1 {
		t.Fatalf("peer received %d envelopes, want 1", len(got))
	}
}

func TestEmitToParticipant(t *testing.T) {
	hub := NewHub()
	a := testClient(hub, "a")
	b := testClient(hub, "b")
	hub.Register(a)
	hub.Register(b)

	hub.EmitToParticipant("a", models.EventForcedBufferReplacement, models.ForcedBufferPayload{Text: "rest"})

	got := drain(t, a)
	if len(got) != 1 {
		t.Fatalf("a received %d envelopes, want 1", len(got))
	}
	var payload models.ForcedBufferPayload
	if err := json.Unmarshal(got[0].Data, &payload); err != nil || payload.Text != "rest" {
		t.Fatalf("payload = %s (err %v)", got[0].Data, err)
	}
	if got := drain(t, b); len(got) != 0 {
		t.Fatalf("b received %v, want nothing", got)
	}
}

func TestEmitGlobalReachesLobbyAndRooms(t *testing.T) {
	hub := NewHub()
	inRoom := testClient(hub, "in")
	lobby := testClient(hub, "lobby")
	hub.Register(inRoom)
	hub.Register(lobby)
	hub.JoinRoom("in", "room-1")

	hub.EmitGlobal(models.EventDirectoryUpdated, nil)

	for _, c := range []*Client{inRoom, lobby} {
		if got := drain(t, c); len(got) != 1 {
			t.Fatalf("%s received %d envelopes, want 1", c.ID, len(got))
		}
	}
}

func TestJoinRoomMovesBetweenRooms(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, "a")
	hub.Register(c)

	hub.JoinRoom("a", "room-1")
	hub.JoinRoom("a", "room-2")

	if got := hub.RoomOf("a"); got != "room-2" {
		t.Fatalf("RoomOf = %q, want room-2", got)
	}
	hub.EmitToRoom("room-1", models.EventRoomStateUpdated, nil)
	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("still receiving from the old room: %v", got)
	}
}

func TestUnregisterReportsRoomAndClosesSend(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, "a")
	hub.Register(c)
	hub.JoinRoom("a", "room-1")

	if got := hub.Unregister(c); got != "room-1" {
		t.Fatalf("Unregister = %q, want room-1", got)
	}
	if _, open := <-c.send; open {
		t.Fatal("send channel must be closed on unregister")
	}
	// A second unregister of the same connection is a no-op
	if got := hub.Unregister(c); got != "" {
		t.Fatalf("repeat Unregister = %q, want empty", got)
	}
}

func TestForceLeaveRoomKeepsConnections(t *testing.T) {
	hub := NewHub()
	a := testClient(hub, "a")
	b := testClient(hub, "b")
	hub.Register(a)
	hub.Register(b)
	hub.JoinRoom("a", "doomed")
	hub.JoinRoom("b", "doomed")

	hub.ForceLeaveRoom("doomed")

	if hub.RoomOf("a") != "" || hub.RoomOf("b") != "" {
		t.Fatal("participants must be out of the room")
	}
	// Still connected: global emits reach them
	hub.EmitGlobal(models.EventDirectoryUpdated, nil)
	if len(drain(t, a)) != 1 || len(drain(t, b)) != 1 {
		t.Fatal("forced-out participants must stay connected")
	}
}

func TestPushDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, "slow")
	c.send = make(chan []byte, 1)
	hub.Register(c)
	hub.JoinRoom("slow", "room-1")

	hub.EmitToRoom("room-1", models.EventRoomStateUpdated, nil)
	hub.EmitToRoom("room-1", models.EventRoomStateUpdated, nil) // dropped, must not block

	if got := drain(t, c); len(got) != 1 {
		t.Fatalf("buffered %d envelopes, want 1 with the overflow dropped", len(got))
	}
}
