// Package memory provides an in-memory implementation of the repository interface
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/navikt/zspatial/internal/models"
)

// ErrNotFound is returned when a requested room is not stored
var ErrNotFound = models.ErrRoomNotFound

// Repository implements the repository interface with in-memory storage
type Repository struct {
	rooms map[string]*models.RoomSnapshot
	mu    sync.RWMutex
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{
		rooms: make(map[string]*models.RoomSnapshot),
	}
}

// SaveRoom stores a copy of the snapshot, replacing any previous one
func (r *Repository) SaveRoom(ctx context.Context, snapshot *models.RoomSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[snapshot.ID] = copySnapshot(snapshot)
	return nil
}

// GetRoom retrieves a room snapshot by ID
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.RoomSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, ok := r.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySnapshot(snapshot), nil
}

// ListRooms returns every stored snapshot ordered by room ID
func (r *Repository) ListRooms(ctx context.Context) ([]*models.RoomSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*models.RoomSnapshot, 0, len(r.rooms))
	for _, snapshot := range r.rooms {
		rooms = append(rooms, copySnapshot(snapshot))
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// DeleteRoom removes a room snapshot
func (r *Repository) DeleteRoom(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(r.rooms, id)
	return nil
}

// Close is a no-op for the in-memory repository
func (r *Repository) Close() error {
	return nil
}

func copySnapshot(s *models.RoomSnapshot) *models.RoomSnapshot {
	c := *s
	c.Participants = append([]models.ParticipantView(nil), s.Participants...)
	return &c
}
