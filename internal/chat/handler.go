package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"murmur/internal/api"
	"murmur/internal/apperr"
	"murmur/internal/middleware"
	"murmur/internal/user"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the cors wrapper
	},
}

// UserFinder is what the gateway needs from the identity service.
type UserFinder interface {
	Me(ctx context.Context, id int64) (*user.User, error)
	Contacts(ctx context.Context) ([]user.User, error)
	ByIDs(ctx context.Context, ids []int64) ([]user.User, error)
}

// RoomResolver computes the rooms a connecting user belongs to.
type RoomResolver interface {
	RoomsForUser(ctx context.Context, userID int64) ([]int64, error)
}

type Handler struct {
	hub     *Hub
	service *Service
	users   UserFinder
	rooms   RoomResolver
	log     *slog.Logger
}

func NewHandler(hub *Hub, service *Service, users UserFinder, rooms RoomResolver, log *slog.Logger) *Handler {
	return &Handler{hub: hub, service: service, users: users, rooms: rooms, log: log}
}

// ServeWs upgrades an authenticated request to a websocket session,
// registers it for presence and joins it to its group rooms. A failed room
// resolution degrades to presence + direct messages only; the connection
// itself never aborts over it.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	u, err := h.users.Me(r.Context(), userID)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "user", userID, "error", err)
		return
	}

	client := &Client{
		hub:       h.hub,
		conn:      conn,
		log:       h.log,
		send:      make(chan []byte, 256),
		userID:    userID,
		sessionID: uuid.NewString(),
		profile: ContactPayload{
			ID:         u.ID,
			FullName:   u.FullName,
			ProfilePic: u.ProfilePic,
			Status:     u.Status,
		},
	}
	h.hub.Register(client)

	if roomIDs, err := h.rooms.RoomsForUser(r.Context(), userID); err != nil {
		h.log.Warn("room resolution failed, session degraded to direct messages", "user", userID, "error", err)
	} else {
		for _, roomID := range roomIDs {
			h.hub.Join(client, roomID)
		}
	}

	go client.writePump()
	go client.readPump()
}

func (h *Handler) GetContacts(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Contacts(r.Context())
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, users)
}

// GetChatPartners lists the users the caller has direct conversations with.
func (h *Handler) GetChatPartners(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}

	ids, err := h.service.PartnerIDs(r.Context(), userID)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	partners, err := h.users.ByIDs(r.Context(), ids)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, partners)
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}
	otherID, err := parseID(r, "id")
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	messages, err := h.service.Conversation(r.Context(), userID, otherID)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, messages)
}

func (h *Handler) GetGroupMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}
	groupID, err := parseID(r, "groupID")
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	messages, err := h.service.GroupMessages(r.Context(), userID, groupID)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, messages)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}
	targetID, err := parseID(r, "id")
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.log, apperr.Validation("invalid request body"))
		return
	}

	target := DirectTarget(targetID)
	if req.IsGroup {
		target = GroupTarget(targetID)
	}

	m, err := h.service.Send(r.Context(), userID, target, &req)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}
	targetID, err := parseID(r, "id")
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	var req struct {
		IsGroup bool `json:"isGroup"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	target := DirectTarget(targetID)
	if req.IsGroup {
		target = GroupTarget(targetID)
	}

	if _, err := h.service.MarkSeen(r.Context(), userID, target); err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "marked as seen"})
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}
	messageID, err := parseID(r, "id")
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	var req struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.log, apperr.Validation("invalid request body"))
		return
	}

	if err := h.service.Delete(r.Context(), userID, messageID, req.Scope); err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid %s", param)
	}
	return id, nil
}
