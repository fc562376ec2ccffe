package web

import (
	"context"
	"encoding/json"

	"github.com/navikt/zspatial/internal/broadcast"
	"github.com/navikt/zspatial/internal/models"
)

// RoomEngine defines the room operations driven by participant connections
type RoomEngine interface {
	AddParticipant(ctx context.Context, roomID, name, participantID string, ch broadcast.Channel) error
	RemoveParticipant(ctx context.Context, roomID, participantID string)
	ReorderParticipants(ctx context.Context, roomID, participantID string) ([]models.ParticipantView, error)
	UpdateRTT(roomID, participantID string, rtt float64)
	SetListeningSource(ctx context.Context, roomID string, pos models.Position)
	MoveParticipant(ctx context.Context, roomID, participantID string, pos models.Position)
	SetTunables(roomID string, t models.Tunables) error
	StartOrbitGenerator(ctx context.Context, roomID string) bool
	StartSpiralGenerator(ctx context.Context, roomID string) bool
	StopSpatialAudio(ctx context.Context, roomID string) bool
	ScheduleCommand(roomID string, raw json.RawMessage) error
	AnnounceAudioSource(roomID string, src models.AudioSource) error
}
