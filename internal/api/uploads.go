package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/navikt/zspatial/internal/storage"
	"github.com/navikt/zspatial/internal/utils"
)

// UploadTicketRequest asks for a place to upload one audio file
type UploadTicketRequest struct {
	FileName string `json:"fileName"`
}

// UploadTicketHandler hands out pre-signed upload URLs
type UploadTicketHandler struct {
	uploader Uploader
}

// NewUploadTicketHandler creates the handler. A nil uploader means storage is disabled.
func NewUploadTicketHandler(uploader Uploader) *UploadTicketHandler {
	return &UploadTicketHandler{uploader: uploader}
}

// ServeHTTP handles POST /api/rooms/{roomId}/uploads
func (h *UploadTicketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		http.Error(w, "Uploads are not enabled", http.StatusServiceUnavailable)
		return
	}

	roomID := mux.Vars(r)["roomId"]

	var req UploadTicketRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ticket, err := h.uploader.PresignUpload(r.Context(), roomID, req.FileName)
	if errors.Is(err, storage.ErrInvalidKey) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Errorf("Error creating upload ticket for room %s: %v", utils.SanitizeLogString(roomID), err)
		http.Error(w, "Error creating upload URL", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, ticket)
}
