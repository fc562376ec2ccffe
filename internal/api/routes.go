package api

import (
	"github.com/gorilla/mux"
	"github.com/navikt/zspatial/internal/repository"
)

// Dependencies are the collaborators the HTTP API needs
type Dependencies struct {
	Repo          repository.Repository
	Rooms         RoomServicer
	Uploader      Uploader
	Health        *Health
	WebhookSecret string
}

// SetupRoutes registers the HTTP API on the router
func SetupRoutes(router *mux.Router, deps Dependencies) {
	health := deps.Health
	if health == nil {
		health = NewHealth()
	}

	// Health check endpoints for Kubernetes
	router.HandleFunc("/health/live", health.LiveHandler).Methods("GET")
	router.HandleFunc("/health/ready", health.ReadyHandler).Methods("GET")

	// Upload pipeline callback
	router.Handle("/upload-complete", NewUploadWebhookHandler(deps.Rooms, deps.WebhookSecret)).Methods("POST")

	// Room read model and upload tickets
	rooms := NewRoomHandler(deps.Repo)
	router.HandleFunc("/api/rooms", rooms.ListRooms).Methods("GET")
	router.HandleFunc("/api/rooms/{roomId}", rooms.GetRoom).Methods("GET")
	router.Handle("/api/rooms/{roomId}/uploads", NewUploadTicketHandler(deps.Uploader)).Methods("POST")
}
