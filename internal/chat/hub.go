package chat

import (
	"context"
	"log/slog"
)

type joinRequest struct {
	client *Client
	roomID int64
}

type userJoinRequest struct {
	userID int64
	roomID int64
}

type delivery struct {
	payload []byte
	target  Target
}

// Hub owns all live sessions, the room maps and presence emission. A single
// goroutine (Run) serializes every mutation, so registry updates and their
// presence broadcasts happen in one step and snapshots are never torn.
type Hub struct {
	registry *Registry
	log      *slog.Logger

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	joinUser   chan userJoinRequest
	deliver    chan delivery

	// sessions: session id -> client. rooms: group id -> session id -> client.
	sessions map[string]*Client
	rooms    map[int64]map[string]*Client
}

func NewHub(registry *Registry, log *slog.Logger) *Hub {
	return &Hub{
		registry:   registry,
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		joinUser:   make(chan userJoinRequest),
		deliver:    make(chan delivery, 64),
		sessions:   make(map[string]*Client),
		rooms:      make(map[int64]map[string]*Client),
	}
}

// Register hands a freshly upgraded connection to the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a closed connection.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Join adds the client's session to a group room. Idempotent, and harmless
// for a session that already disconnected: the room entry is keyed by
// session id and swept away with the session.
func (h *Hub) Join(c *Client, roomID int64) { h.join <- joinRequest{client: c, roomID: roomID} }

// JoinUser joins the user's current session, if online, to a room. Used when
// a group is created or members are added while sessions are already live.
func (h *Hub) JoinUser(userID, roomID int64) { h.joinUser <- userJoinRequest{userID: userID, roomID: roomID} }

// Deliver routes a persisted message to its target sessions. Best effort:
// an offline receiver simply isn't pushed to, and picks the message up on
// the next conversation fetch.
func (h *Hub) Deliver(m *Message, t Target) {
	h.deliver <- delivery{payload: encodeEvent(EventNewMessage, m), target: t}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.sessions {
				close(c.send)
			}
			h.sessions = make(map[string]*Client)
			h.rooms = make(map[int64]map[string]*Client)
			return

		case c := <-h.register:
			h.sessions[c.sessionID] = c
			h.registry.Register(c.userID, c.sessionID)
			h.log.Info("user connected", "user", c.userID, "session", c.sessionID)
			// Profile fact first, then the refreshed snapshot.
			h.broadcastAll(encodeEvent(EventContactAdded, c.profile))
			h.broadcastAll(encodeEvent(EventOnlineUsers, h.registry.Snapshot()))

		case c := <-h.unregister:
			if _, ok := h.sessions[c.sessionID]; ok {
				h.dropSession(c.sessionID)
				close(c.send)
			}
			h.log.Info("user disconnected", "user", c.userID, "session", c.sessionID)
			// Only a real registry mutation triggers a presence broadcast; a
			// stale session's disconnect after a reconnect changes nothing.
			if h.registry.UnregisterSession(c.userID, c.sessionID) {
				h.broadcastAll(encodeEvent(EventOnlineUsers, h.registry.Snapshot()))
			}

		case req := <-h.join:
			if _, ok := h.sessions[req.client.sessionID]; !ok {
				break
			}
			h.addToRoom(req.client, req.roomID)

		case req := <-h.joinUser:
			sessionID, ok := h.registry.Lookup(req.userID)
			if !ok {
				break
			}
			if c, ok := h.sessions[sessionID]; ok {
				h.addToRoom(c, req.roomID)
			}

		case d := <-h.deliver:
			h.route(d)
		}
	}
}

func (h *Hub) addToRoom(c *Client, roomID int64) {
	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[roomID] = room
	}
	room[c.sessionID] = c
}

func (h *Hub) route(d delivery) {
	if d.target.IsGroup() {
		for _, c := range h.rooms[d.target.ID] {
			h.trySend(c, d.payload)
		}
		return
	}

	sessionID, ok := h.registry.Lookup(d.target.ID)
	if !ok {
		return
	}
	if c, ok := h.sessions[sessionID]; ok {
		h.trySend(c, d.payload)
	}
}

func (h *Hub) broadcastAll(payload []byte) {
	for _, c := range h.sessions {
		h.trySend(c, payload)
	}
}

// trySend never blocks the hub: a client whose buffer is full is dropped
// from the session and room maps. Its registry entry stays until the dying
// socket's own unregister arrives, which then broadcasts the snapshot.
func (h *Hub) trySend(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.log.Warn("client send buffer full, dropping session", "user", c.userID)
		h.dropSession(c.sessionID)
		close(c.send)
	}
}

func (h *Hub) dropSession(sessionID string) {
	delete(h.sessions, sessionID)
	for roomID, room := range h.rooms {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}
