package server

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/inkboard/inkboard/internal/services/realtime/token"
)

func newTestConn(id string, username string) *boardConn {
	return &boardConn{
		id:       id,
		identity: token.Identity{Username: username},
		peer:     newWSPeer(json.NewEncoder(io.Discard)),
	}
}

func TestHubJoinCreatesRoomLazily(t *testing.T) {
	t.Parallel()

	hub := newRoomHub()
	alice := newTestConn("conn-1", "alice")

	room, previous := hub.join(7, alice)
	if room == nil {
		t.Fatal("expected room for board 7")
	}
	if previous != nil {
		t.Fatalf("previous room = %v, want nil", previous)
	}
	room.admit(alice, "")

	if got := hub.members(7); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("members = %v, want [alice]", got)
	}
	if hub.roomOf(alice) != room {
		t.Fatal("roomOf should return the joined room")
	}
}

func TestHubJoinEnforcesOneRoomPerConnection(t *testing.T) {
	t.Parallel()

	hub := newRoomHub()
	alice := newTestConn("conn-1", "alice")

	first, _ := hub.join(1, alice)
	first.admit(alice, "")

	second, previous := hub.join(2, alice)
	if previous != first {
		t.Fatal("join should report the prior room")
	}
	previous.dismiss(alice)
	second.admit(alice, "")

	if got := hub.members(1); len(got) != 0 {
		t.Fatalf("board 1 members = %v, want empty", got)
	}
	if got := hub.members(2); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("board 2 members = %v, want [alice]", got)
	}
	if hub.roomOf(alice) != second {
		t.Fatal("roomOf should track the latest room")
	}
}

func TestHubRejoinSameBoardKeepsSingleMembership(t *testing.T) {
	t.Parallel()

	hub := newRoomHub()
	alice := newTestConn("conn-1", "alice")

	room, _ := hub.join(7, alice)
	room.admit(alice, "")
	again, previous := hub.join(7, alice)
	if again != room {
		t.Fatal("rejoin should resolve to the same room")
	}
	if previous != room {
		t.Fatal("previous room should be the same room on rejoin")
	}
	again.admit(alice, "")

	if got := hub.members(7); len(got) != 1 {
		t.Fatalf("members = %v, want single alice entry", got)
	}
}

func TestHubLeaveClearsMembership(t *testing.T) {
	t.Parallel()

	hub := newRoomHub()
	alice := newTestConn("conn-1", "alice")

	room, _ := hub.join(7, alice)
	room.admit(alice, "")

	left := hub.leave(alice)
	if left != room {
		t.Fatal("leave should return the departed room")
	}
	left.dismiss(alice)

	if hub.roomOf(alice) != nil {
		t.Fatal("roomOf should be nil after leave")
	}
	if got := hub.members(7); len(got) != 0 {
		t.Fatalf("members = %v, want empty", got)
	}
	if hub.leave(alice) != nil {
		t.Fatal("second leave should be a no-op")
	}
}

func TestRoomDismissIgnoresNonMembers(t *testing.T) {
	t.Parallel()

	room := newBoardRoom(7)
	alice := newTestConn("conn-1", "alice")
	stranger := newTestConn("conn-2", "bob")

	room.admit(alice, "")
	room.dismiss(stranger)

	if got := room.usernames(); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("usernames = %v, want [alice]", got)
	}
}

func TestHubMembersUnknownBoardIsEmpty(t *testing.T) {
	t.Parallel()

	hub := newRoomHub()
	if got := hub.members(99); len(got) != 0 {
		t.Fatalf("members = %v, want empty", got)
	}
}
