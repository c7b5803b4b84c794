package api

import (
	"encoding/json"
	"net/http"

	"typeduet/internal/middleware"
	"typeduet/internal/services/engine"
)

// Handler serves the small read-only REST surface next to the websocket
// endpoint. Everything stateful goes over the socket.
type Handler struct {
	directory *engine.Directory
}

func NewHandler(directory *engine.Directory) *Handler {
	return &Handler{directory: directory}
}

// ListRooms returns the same lobby mapping the requestDirectory event does.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	listing, err := h.directory.ListRooms(r.Context())
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, "failed to list rooms", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing)
}
