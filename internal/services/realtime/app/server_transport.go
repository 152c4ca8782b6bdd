package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/inkboard/inkboard/internal/platform/timeouts"
	"github.com/inkboard/inkboard/internal/services/realtime/storage"
	"github.com/inkboard/inkboard/internal/services/realtime/token"
)

const (
	tokenCookieName = "ib_token"

	maxFramePayloadBytes   = 256 * 1024
	maxFramesPerSecond     = 60
	maxDecodeErrorsPerConn = 3
)

// Frame types exchanged with whiteboard clients.
const (
	frameJoin             = "board.join"
	frameCanvasUpdate     = "board.update"
	frameCanvasLoad       = "board.canvas"
	frameCurrentUsers     = "board.users"
	frameUserJoined       = "board.user_joined"
	frameUserLeft         = "board.user_left"
	frameSessionDuplicate = "session.duplicate"
	frameError            = "board.error"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type joinPayload struct {
	BoardID int64 `json:"board_id"`
}

type updatePayload struct {
	Canvas string `json:"canvas"`
}

type canvasPayload struct {
	BoardID int64  `json:"board_id"`
	Canvas  string `json:"canvas"`
}

type rosterPayload struct {
	BoardID   int64    `json:"board_id"`
	Usernames []string `json:"usernames"`
}

type presencePayload struct {
	BoardID  int64  `json:"board_id"`
	Username string `json:"username"`
}

type noticePayload struct {
	Message string `json:"message"`
}

// coordinator owns the mutable session state. Presence and rooms are only
// mutated from connection handlers acting on one event at a time.
type coordinator struct {
	hub      *roomHub
	presence *presenceRegistry
	store    storage.BoardStore
}

type wsIdentityContextKey struct{}

// NewHandler creates realtime routes with websocket identity checks disabled;
// the caller identity comes from query parameters. Used by tests and offline
// paths.
func NewHandler(store storage.BoardStore) http.Handler {
	return newHandler(store, nil, false)
}

// NewHandlerWithVerifier creates realtime routes with enforced credential
// verification at upgrade time.
func NewHandlerWithVerifier(store storage.BoardStore, verifier *token.Verifier) http.Handler {
	return newHandler(store, verifier, true)
}

func newHandler(store storage.BoardStore, verifier *token.Verifier, requireAuth bool) http.Handler {
	coord := &coordinator{
		hub:      newRoomHub(),
		presence: newPresenceRegistry(),
		store:    store,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, coord)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		identity, err := resolveIdentity(r, verifier, requireAuth)
		if err != nil {
			if errors.Is(err, token.ErrMissingToken) {
				log.Printf("realtime: websocket unauthorized: missing credential for remote=%s path=%q", r.RemoteAddr, r.URL.Path)
			} else {
				log.Printf("realtime: websocket unauthorized: credential rejected for remote=%s path=%q err=%v", r.RemoteAddr, r.URL.Path, err)
			}
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), wsIdentityContextKey{}, identity)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	return mux
}

// resolveIdentity authenticates the upgrade request. With auth disabled the
// identity comes from query parameters so tests can impersonate users.
func resolveIdentity(r *http.Request, verifier *token.Verifier, requireAuth bool) (token.Identity, error) {
	if !requireAuth {
		username := strings.TrimSpace(r.URL.Query().Get("username"))
		if username == "" {
			username = "guest"
		}
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		return token.Identity{ID: userID, Username: username}, nil
	}
	if verifier == nil {
		return token.Identity{}, errors.New("websocket auth is not configured")
	}
	return verifier.Verify(credentialFromRequest(r))
}

func credentialFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if rest, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

func handleWSConn(conn *websocket.Conn, coord *coordinator) {
	defer func() {
		_ = conn.Close()
	}()

	peer := newWSPeer(json.NewEncoder(conn))
	identity, ok := identityFromConn(conn)
	if !ok {
		return
	}
	c := &boardConn{id: uuid.NewString(), identity: identity, peer: peer}

	if !coord.presence.tryRegister(identity.Username, c.id) {
		log.Printf("realtime: duplicate session refused for user=%q", identity.Username)
		_ = peer.writeFrame(wsFrame{
			Type:    frameSessionDuplicate,
			Payload: mustJSON(noticePayload{Message: "username already has an active session"}),
		})
		return
	}
	log.Printf("realtime: user connected user=%q conn=%s", identity.Username, c.id)

	// Unconditional cleanup path: runs for clean and abrupt disconnects alike.
	defer func() {
		coord.presence.unregister(identity.Username)
		if room := coord.hub.leave(c); room != nil {
			room.dismiss(c)
		}
		log.Printf("realtime: user disconnected user=%q conn=%s", identity.Username, c.id)
	}()

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", "INVALID_ARGUMENT", "invalid frame payload", false)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large", false)
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded", false)
			return
		}

		switch frame.Type {
		case frameJoin:
			handleJoinFrame(conn.Request().Context(), coord, c, frame)
		case frameCanvasUpdate:
			handleUpdateFrame(conn.Request().Context(), coord, c, frame)
		default:
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type", false)
		}
	}
}

func identityFromConn(conn *websocket.Conn) (token.Identity, bool) {
	request := conn.Request()
	if request == nil {
		return token.Identity{}, false
	}
	identity, ok := request.Context().Value(wsIdentityContextKey{}).(token.Identity)
	return identity, ok
}

func handleJoinFrame(ctx context.Context, coord *coordinator, c *boardConn, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(c.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload", false)
		return
	}
	if payload.BoardID <= 0 {
		_ = writeWSError(c.peer, frame.RequestID, "INVALID_ARGUMENT", "board_id must be a positive integer", false)
		return
	}

	// Snapshot is fetched before touching the room so no registry lock is
	// held across store I/O. A board with no persisted snapshot loads empty.
	readCtx, cancel := context.WithTimeout(ctx, timeouts.CanvasRead)
	canvas, err := coord.store.GetCanvas(readCtx, payload.BoardID)
	cancel()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("realtime: canvas read failed board=%d user=%q err=%v", payload.BoardID, c.identity.Username, err)
		_ = writeWSError(c.peer, frame.RequestID, "UNAVAILABLE", "canvas snapshot unavailable", true)
		return
	}

	room, previous := coord.hub.join(payload.BoardID, c)
	if previous != nil && previous != room {
		previous.dismiss(c)
	}
	room.admit(c, canvas)
	log.Printf("realtime: user=%q joined board=%d", c.identity.Username, payload.BoardID)
}

func handleUpdateFrame(ctx context.Context, coord *coordinator, c *boardConn, frame wsFrame) {
	var payload updatePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(c.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid update payload", false)
		return
	}

	room := coord.hub.roomOf(c)
	if room == nil {
		_ = writeWSError(c.peer, frame.RequestID, "FAILED_PRECONDITION", "join a board before sending updates", false)
		return
	}

	// Persist before broadcast: an update that was not durably saved must
	// never reach peers. The sender may resubmit after a failure.
	writeCtx, cancel := context.WithTimeout(ctx, timeouts.CanvasWrite)
	err := coord.store.SetCanvas(writeCtx, room.boardID, payload.Canvas)
	cancel()
	if err != nil {
		log.Printf("realtime: canvas write failed board=%d user=%q err=%v", room.boardID, c.identity.Username, err)
		_ = writeWSError(c.peer, frame.RequestID, "UNAVAILABLE", "failed to save canvas", true)
		return
	}

	room.broadcastUpdate(c, payload.Canvas)
}

func writeWSError(peer *wsPeer, requestID string, code string, message string, retryable bool) error {
	return peer.writeFrame(wsFrame{
		Type:      frameError,
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:      code,
				Message:   message,
				Retryable: retryable,
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
