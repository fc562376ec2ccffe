package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/repository"
)

// RoomHandler serves the room read model
type RoomHandler struct {
	repo repository.Repository
}

// NewRoomHandler creates a new room handler with the given repository
func NewRoomHandler(repo repository.Repository) *RoomHandler {
	return &RoomHandler{repo: repo}
}

// ListRooms handles GET /api/rooms
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.repo.ListRooms(r.Context())
	if err != nil {
		log.Errorf("Error listing rooms: %v", err)
		http.Error(w, "Error listing rooms", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// GetRoom handles GET /api/rooms/{roomId}
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	room, err := h.repo.GetRoom(r.Context(), roomID)
	if errors.Is(err, models.ErrRoomNotFound) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("Error getting room: %v", err)
		http.Error(w, "Error getting room", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, room)
}
