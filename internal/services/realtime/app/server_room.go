package server

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/inkboard/inkboard/internal/services/realtime/token"
)

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// boardConn is one live connection with its verified identity. The identity
// is set once after verification and never reassigned.
type boardConn struct {
	id       string
	identity token.Identity
	peer     *wsPeer
}

// roomHub is the room directory: boardID to room, plus the reverse membership
// map that enforces one room per connection. The hub mutex is never held
// while writing to a peer.
type roomHub struct {
	mu         sync.Mutex
	rooms      map[int64]*boardRoom
	membership map[*boardConn]*boardRoom
}

func newRoomHub() *roomHub {
	return &roomHub{
		rooms:      make(map[int64]*boardRoom),
		membership: make(map[*boardConn]*boardRoom),
	}
}

// join points the connection's membership at the board's room, creating the
// room lazily, and returns the new room plus the previous one (nil when the
// connection was roomless). The caller dismisses the previous room so its
// members get a departure notice.
func (h *roomHub) join(boardID int64, c *boardConn) (room *boardRoom, previous *boardRoom) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[boardID]
	if !ok {
		room = newBoardRoom(boardID)
		h.rooms[boardID] = room
	}
	previous = h.membership[c]
	h.membership[c] = room
	return room, previous
}

// leave clears the connection's membership and returns the room it was in,
// if any. Safe to call for a connection that never joined.
func (h *roomHub) leave(c *boardConn) *boardRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.membership[c]
	delete(h.membership, c)
	return room
}

func (h *roomHub) roomOf(c *boardConn) *boardRoom {
	h.mu.Lock()
	room := h.membership[c]
	h.mu.Unlock()
	return room
}

// members returns a username snapshot for a board. Unknown boards and empty
// rooms both report an empty roster; emptiness is not an error state.
func (h *roomHub) members(boardID int64) []string {
	h.mu.Lock()
	room := h.rooms[boardID]
	h.mu.Unlock()

	if room == nil {
		return nil
	}
	return room.usernames()
}

// boardRoom is the set of connections viewing one board. All notices and
// broadcasts are written while holding the room mutex so every member
// observes one total order per room, and a joiner always receives the
// snapshot before any later broadcast.
type boardRoom struct {
	mu      sync.Mutex
	boardID int64
	members map[*boardConn]struct{}
}

func newBoardRoom(boardID int64) *boardRoom {
	return &boardRoom{
		boardID: boardID,
		members: make(map[*boardConn]struct{}),
	}
}

// admit delivers the snapshot to the joiner, announces the join to the rest
// of the room, adds the joiner to the member set, and answers with the
// roster (joiner included). Rejoining the same board resends the snapshot
// and roster without a duplicate join notice.
func (r *boardRoom) admit(c *boardConn, canvas string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = c.peer.writeFrame(wsFrame{
		Type:    frameCanvasLoad,
		Payload: mustJSON(canvasPayload{BoardID: r.boardID, Canvas: canvas}),
	})

	if _, ok := r.members[c]; !ok {
		joined := wsFrame{
			Type:    frameUserJoined,
			Payload: mustJSON(presencePayload{BoardID: r.boardID, Username: c.identity.Username}),
		}
		for member := range r.members {
			_ = member.peer.writeFrame(joined)
		}
		r.members[c] = struct{}{}
	}

	names := make([]string, 0, len(r.members))
	for member := range r.members {
		names = append(names, member.identity.Username)
	}
	sort.Strings(names)
	_ = c.peer.writeFrame(wsFrame{
		Type:    frameCurrentUsers,
		Payload: mustJSON(rosterPayload{BoardID: r.boardID, Usernames: names}),
	})
}

// broadcastUpdate fans the persisted canvas out to every member except the
// sender. Delivery to a peer that disconnects mid-broadcast is best-effort;
// it resyncs on its next join.
func (r *boardRoom) broadcastUpdate(sender *boardConn, canvas string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frame := wsFrame{
		Type:    frameCanvasUpdate,
		Payload: mustJSON(canvasPayload{BoardID: r.boardID, Canvas: canvas}),
	}
	for member := range r.members {
		if member == sender {
			continue
		}
		_ = member.peer.writeFrame(frame)
	}
}

// dismiss removes the connection and notifies the remaining members.
// No-op for a non-member.
func (r *boardRoom) dismiss(c *boardConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[c]; !ok {
		return
	}
	delete(r.members, c)

	left := wsFrame{
		Type:    frameUserLeft,
		Payload: mustJSON(presencePayload{BoardID: r.boardID, Username: c.identity.Username}),
	}
	for member := range r.members {
		_ = member.peer.writeFrame(left)
	}
}

func (r *boardRoom) usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.members))
	for member := range r.members {
		names = append(names, member.identity.Username)
	}
	sort.Strings(names)
	return names
}
