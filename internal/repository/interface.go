// Package repository defines the storage contract for the room read model
package repository

import (
	"context"

	"github.com/navikt/zspatial/internal/models"
)

// Repository stores the latest snapshot of every live room.
// It is a read model for the HTTP API; the room engine never loads from it.
type Repository interface {
	SaveRoom(ctx context.Context, snapshot *models.RoomSnapshot) error
	GetRoom(ctx context.Context, id string) (*models.RoomSnapshot, error)
	ListRooms(ctx context.Context) ([]*models.RoomSnapshot, error)
	DeleteRoom(ctx context.Context, id string) error
	Close() error
}
