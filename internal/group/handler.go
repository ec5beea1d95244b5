package group

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"murmur/internal/api"
	"murmur/internal/apperr"
	"murmur/internal/middleware"
)

type Handler struct {
	service *Service
	log     *slog.Logger
}

func NewHandler(s *Service, log *slog.Logger) *Handler {
	return &Handler{service: s, log: log}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.log, apperr.Validation("invalid request body"))
		return
	}

	g, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, g)
}

func (h *Handler) MyGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}

	groups, err := h.service.MyGroups(r.Context(), userID)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, groups)
}

func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		api.WriteError(w, h.log, apperr.Forbidden("unauthorized"))
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
	if err != nil {
		api.WriteError(w, h.log, apperr.Validation("invalid group id"))
		return
	}

	var req AddMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.log, apperr.Validation("invalid request body"))
		return
	}

	g, err := h.service.AddMembers(r.Context(), groupID, userID, &req)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, g)
}
