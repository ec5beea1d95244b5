// Package api holds the small HTTP helpers shared by every handler.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"murmur/internal/apperr"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps the error's kind to a status code and a stable
// {"message": ...} body. Internal detail goes to the log, not the wire.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	}
	WriteJSON(w, status, map[string]string{"message": apperr.UserMessage(err)})
}
