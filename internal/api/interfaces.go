package api

import (
	"context"

	"github.com/navikt/zspatial/internal/models"
)

// RoomServicer defines the room engine operations needed by API handlers
type RoomServicer interface {
	AnnounceAudioSource(roomID string, src models.AudioSource) error
}

// Uploader issues pre-signed upload URLs for audio assets
type Uploader interface {
	PresignUpload(ctx context.Context, roomID, fileName string) (*models.UploadTicket, error)
}
